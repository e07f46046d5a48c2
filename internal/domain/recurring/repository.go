package recurring

import (
	"context"
	"time"
)

// Repository describes recurring-template persistence needs from use cases.
type Repository interface {
	GetByID(ctx context.Context, id string) (RecurringGame, bool, error)
	ListByVenue(ctx context.Context, venueID string) ([]RecurringGame, error)
	ListByEntity(ctx context.Context, entityID string) ([]RecurringGame, error)
	Create(ctx context.Context, r RecurringGame) error
	Update(ctx context.Context, r RecurringGame) error
	Delete(ctx context.Context, id string) error
	// RecordOccurrence increments TotalOccurrences and widens the seen dates in one write.
	RecordOccurrence(ctx context.Context, id string, at time.Time) error
}
