package series

import (
	"context"
	"time"
)

type TitleRepository interface {
	ListTitles(ctx context.Context) ([]Title, error)
	GetTitleByID(ctx context.Context, titleID string) (Title, bool, error)
}

// Repository describes series-instance persistence needs from use cases.
type Repository interface {
	GetByID(ctx context.Context, seriesID string) (Series, bool, error)
	ListByTitle(ctx context.Context, titleID string) ([]Series, error)
	ListByYear(ctx context.Context, year int) ([]Series, error)
	Create(ctx context.Context, s Series) error
	// ExpandRange widens [StartDate, EndDate] to include at and increments EventCount in one write.
	ExpandRange(ctx context.Context, seriesID string, at time.Time) error
}
