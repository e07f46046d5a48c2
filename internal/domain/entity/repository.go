package entity

import "context"

// Repository describes entity persistence needs from use cases.
type Repository interface {
	ListActive(ctx context.Context) ([]Entity, error)
	GetByID(ctx context.Context, entityID string) (Entity, bool, error)
}
