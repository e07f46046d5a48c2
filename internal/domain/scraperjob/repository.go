package scraperjob

import (
	"context"
	"time"
)

// Filter narrows job listings; empty fields match everything.
type Filter struct {
	EntityID string
	Status   Status
	Since    *time.Time
	Limit    int
	Offset   int
}

// Repository is the persistent job store.
type Repository interface {
	Create(ctx context.Context, j Job) error
	GetByID(ctx context.Context, id string) (Job, bool, error)
	// Save overwrites progress and status unless the stored job is already terminal.
	Save(ctx context.Context, j Job) error
	// TransitionStatus sets next only when the stored status is one of from.
	TransitionStatus(ctx context.Context, id string, from []Status, next Status, reason string, at time.Time) (bool, error)
	List(ctx context.Context, filter Filter) ([]Job, error)
	HasActive(ctx context.Context, entityID string) (bool, error)
}

type StateRepository interface {
	Get(ctx context.Context, entityID string) (State, bool, error)
	Upsert(ctx context.Context, s State) error
}
