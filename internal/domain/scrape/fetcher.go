package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

// ErrPageNotFound is returned by a Fetcher when the source reports no such tournament.
var ErrPageNotFound = errors.New("tournament page not found")

// FetchResult is the raw response for one tournament page.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Latency    time.Duration
}

// Fetcher retrieves raw tournament pages. It does not parse or cache.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// PageStatus is what a parsed page turned out to contain.
type PageStatus string

const (
	PageOK           PageStatus = "OK"
	PageNotFound     PageStatus = "NOT_FOUND"
	PageBlank        PageStatus = "BLANK"
	PageNotPublished PageStatus = "NOT_PUBLISHED"
)

// ParseResult is the structured content extracted from a page.
type ParseResult struct {
	Status     PageStatus
	Game       game.Payload
	Players    game.PlayerList
	VenueName  string
	SeriesName string
}

// Parser turns page bytes into a ParseResult.
type Parser interface {
	Parse(ctx context.Context, body []byte, sourceURL string) (ParseResult, error)
}
