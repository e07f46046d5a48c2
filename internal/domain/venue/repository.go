package venue

import "context"

// Repository describes venue persistence needs from use cases.
type Repository interface {
	ListByEntity(ctx context.Context, entityID string) ([]Venue, error)
	GetByID(ctx context.Context, entityID, venueID string) (Venue, bool, error)
}
