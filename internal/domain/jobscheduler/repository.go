package jobscheduler

import "context"

// Repository persists dispatch events; events for one DispatchID are upserted.
type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
	ListByJob(ctx context.Context, jobID string) ([]DispatchEvent, error)
}
