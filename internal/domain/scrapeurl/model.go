package scrapeurl

import (
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusDoNotScrape Status = "DO_NOT_SCRAPE"
	StatusError       Status = "ERROR"
	StatusNotFound    Status = "NOT_FOUND"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDoNotScrape, StatusError, StatusNotFound:
		return true
	}
	return false
}

// AttemptStatus is the outcome of one scrape of one URL.
type AttemptStatus string

const (
	AttemptSuccess      AttemptStatus = "SUCCESS"
	AttemptSkipped      AttemptStatus = "SKIPPED"
	AttemptNotFound     AttemptStatus = "NOT_FOUND"
	AttemptBlank        AttemptStatus = "BLANK"
	AttemptFetchError   AttemptStatus = "FETCH_ERROR"
	AttemptParseError   AttemptStatus = "PARSE_ERROR"
	AttemptSaveError    AttemptStatus = "SAVE_ERROR"
	AttemptNotPublished AttemptStatus = "NOT_PUBLISHED"
)

// Succeeded reports whether the attempt produced or confirmed a stored game.
func (s AttemptStatus) Succeeded() bool {
	return s == AttemptSuccess || s == AttemptSkipped || s == AttemptNotPublished
}

// ScrapeURL is the tracking row for one external tournament page.
type ScrapeURL struct {
	ID                  string
	URL                 string
	EntityID            string
	TournamentID        int64
	Status              Status
	LastScrapedAt       *time.Time
	LastAttemptStatus   AttemptStatus
	GameStatus          game.Status
	GameID              string
	DoNotScrape         bool
	ConsecutiveFailures int
	TimesScraped        int
	TimesSuccessful     int
	SuccessRate         float64
	LatestBlobKey       *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RecordAttempt folds one attempt outcome into the tracking counters.
func (u *ScrapeURL) RecordAttempt(status AttemptStatus, at time.Time) {
	scrapedAt := at
	u.LastScrapedAt = &scrapedAt
	u.LastAttemptStatus = status
	u.TimesScraped++
	if status.Succeeded() {
		u.TimesSuccessful++
		u.ConsecutiveFailures = 0
		if u.Status == StatusError || u.Status == StatusNotFound {
			u.Status = StatusActive
		}
	} else {
		u.ConsecutiveFailures++
		switch status {
		case AttemptNotFound:
			u.Status = StatusNotFound
		case AttemptFetchError, AttemptParseError, AttemptSaveError:
			u.Status = StatusError
		}
	}
	if u.DoNotScrape {
		u.Status = StatusDoNotScrape
	}
	u.SuccessRate = float64(u.TimesSuccessful) / float64(u.TimesScraped)
	u.UpdatedAt = at
}

// Attempt is the audit row written for every scrape of a URL.
type Attempt struct {
	ID               string
	ScrapeURLID      string
	URL              string
	EntityID         string
	TournamentID     int64
	JobID            string
	Status           AttemptStatus
	Action           string
	GameID           string
	ContentHash      string
	ErrorMessage     string
	ErrorFingerprint string
	Duration         time.Duration
	AttemptedAt      time.Time
}

// Filter narrows URL searches; empty fields match everything.
type Filter struct {
	EntityIDs []string
	Status    Status
	Limit     int
	Offset    int
}
