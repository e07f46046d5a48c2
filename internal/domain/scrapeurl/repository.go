package scrapeurl

import (
	"context"
	"time"
)

// Repository describes scrape URL persistence needs from use cases.
type Repository interface {
	GetByURL(ctx context.Context, url string) (ScrapeURL, bool, error)
	GetByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (ScrapeURL, bool, error)
	Upsert(ctx context.Context, u ScrapeURL) error
	// ListByEntity queries the entity index.
	ListByEntity(ctx context.Context, entityID string, filter Filter) ([]ScrapeURL, error)
	// Scan walks every row matching filter, used when no single entity is given.
	Scan(ctx context.Context, filter Filter) ([]ScrapeURL, error)
	// ListStale returns scrapeable rows not scraped since before, oldest first.
	ListStale(ctx context.Context, entityID string, before time.Time, limit int) ([]ScrapeURL, error)
	// ListNotFoundIDs returns tournament ids whose last attempt was NOT_FOUND.
	ListNotFoundIDs(ctx context.Context, entityID string) ([]int64, error)
}

type AttemptRepository interface {
	Insert(ctx context.Context, a Attempt) error
	ListByURL(ctx context.Context, url string, limit int) ([]Attempt, error)
	CountByStatusSince(ctx context.Context, entityID string, since time.Time) (map[AttemptStatus]int, error)
}
