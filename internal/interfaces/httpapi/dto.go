package httpapi

import (
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/jobscheduler"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
)

type jobDTO struct {
	ID              string                `json:"id"`
	EntityID        string                `json:"entityId"`
	Status          string                `json:"status"`
	Mode            string                `json:"mode"`
	StartID         *int64                `json:"startId,omitempty"`
	EndID           *int64                `json:"endId,omitempty"`
	MaxID           *int64                `json:"maxId,omitempty"`
	GapIDs          []int64               `json:"gapIds,omitempty"`
	BulkCount       *int                  `json:"bulkCount,omitempty"`
	Thresholds      scraperjob.Thresholds `json:"thresholds"`
	Options         scraperjob.Options    `json:"options"`
	Counters        scraperjob.Counters   `json:"counters"`
	TriggeredBy     string                `json:"triggeredBy,omitempty"`
	StartTime       string                `json:"startTime"`
	EndTime         string                `json:"endTime,omitempty"`
	DurationSeconds *float64              `json:"durationSeconds,omitempty"`
	StopReason      string                `json:"stopReason,omitempty"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
}

type jobDetailDTO struct {
	jobDTO
	Dispatches []dispatchEventDTO `json:"dispatches,omitempty"`
}

type dispatchEventDTO struct {
	DispatchID   string `json:"dispatchId"`
	JobName      string `json:"jobName"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	OccurredAt   string `json:"occurredAt"`
	TraceID      string `json:"traceId,omitempty"`
}

type jobReportDTO struct {
	Items         []jobDTO       `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
	CountByStatus map[string]int `json:"countByStatus"`
}

type scrapeURLDTO struct {
	ID                  string  `json:"id"`
	URL                 string  `json:"url"`
	EntityID            string  `json:"entityId"`
	TournamentID        int64   `json:"tournamentId"`
	Status              string  `json:"status"`
	LastScrapedAt       string  `json:"lastScrapedAt,omitempty"`
	LastAttemptStatus   string  `json:"lastAttemptStatus,omitempty"`
	GameStatus          string  `json:"gameStatus,omitempty"`
	GameID              string  `json:"gameId,omitempty"`
	DoNotScrape         bool    `json:"doNotScrape"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	TimesScraped        int     `json:"timesScraped"`
	TimesSuccessful     int     `json:"timesSuccessful"`
	SuccessRate         float64 `json:"successRate"`
	LatestBlobKey       *string `json:"latestBlobKey,omitempty"`
	UpdatedAt           string  `json:"updatedAt"`
}

type scrapeURLPageDTO struct {
	Items         []scrapeURLDTO `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type updateCandidateDTO struct {
	scrapeURLDTO
	Priority float64 `json:"priority"`
}

type attemptDTO struct {
	ID               string `json:"id"`
	JobID            string `json:"jobId,omitempty"`
	Status           string `json:"status"`
	Action           string `json:"action,omitempty"`
	GameID           string `json:"gameId,omitempty"`
	ContentHash      string `json:"contentHash,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	ErrorFingerprint string `json:"errorFingerprint,omitempty"`
	DurationMS       int64  `json:"durationMs"`
	AttemptedAt      string `json:"attemptedAt"`
}

type scrapeURLDetailsDTO struct {
	ScrapeURL      scrapeURLDTO `json:"scrapeUrl"`
	RecentAttempts []attemptDTO `json:"recentAttempts"`
}

type gameSummaryDTO struct {
	ID                 string  `json:"id"`
	EntityID           string  `json:"entityId"`
	TournamentID       int64   `json:"tournamentId"`
	Name               string  `json:"name"`
	GameStatus         string  `json:"gameStatus"`
	GameStartDateTime  string  `json:"gameStartDateTime"`
	VenueID            string  `json:"venueId"`
	BuyIn              float64 `json:"buyIn"`
	TotalEntries       int     `json:"totalEntries"`
	TotalUniquePlayers int     `json:"totalUniquePlayers"`
	RecurringGameID    *string `json:"recurringGameId,omitempty"`
	SourceURL          string  `json:"sourceUrl,omitempty"`
	UpdatedAt          string  `json:"updatedAt"`
}

type gamePageDTO struct {
	Items         []gameSummaryDTO `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func jobToDTO(j scraperjob.Job) jobDTO {
	return jobDTO{
		ID:              j.ID,
		EntityID:        j.EntityID,
		Status:          string(j.Status),
		Mode:            string(j.Mode),
		StartID:         j.StartID,
		EndID:           j.EndID,
		MaxID:           j.MaxID,
		GapIDs:          j.GapIDs,
		BulkCount:       j.BulkCount,
		Thresholds:      j.Thresholds,
		Options:         j.Options,
		Counters:        j.Counters,
		TriggeredBy:     j.TriggeredBy,
		StartTime:       formatTime(j.StartTime),
		EndTime:         formatOptionalTime(j.EndTime),
		DurationSeconds: j.DurationSeconds,
		StopReason:      j.StopReason,
		CreatedAt:       formatTime(j.CreatedAt),
		UpdatedAt:       formatTime(j.UpdatedAt),
	}
}

func dispatchEventsToDTO(events []jobscheduler.DispatchEvent) []dispatchEventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]dispatchEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, dispatchEventDTO{
			DispatchID:   e.DispatchID,
			JobName:      e.JobName,
			Status:       string(e.Status),
			ErrorMessage: e.ErrorMessage,
			OccurredAt:   formatTime(e.OccurredAt),
			TraceID:      e.TraceID,
		})
	}
	return out
}

func scrapeURLToDTO(u scrapeurl.ScrapeURL) scrapeURLDTO {
	return scrapeURLDTO{
		ID:                  u.ID,
		URL:                 u.URL,
		EntityID:            u.EntityID,
		TournamentID:        u.TournamentID,
		Status:              string(u.Status),
		LastScrapedAt:       formatOptionalTime(u.LastScrapedAt),
		LastAttemptStatus:   string(u.LastAttemptStatus),
		GameStatus:          string(u.GameStatus),
		GameID:              u.GameID,
		DoNotScrape:         u.DoNotScrape,
		ConsecutiveFailures: u.ConsecutiveFailures,
		TimesScraped:        u.TimesScraped,
		TimesSuccessful:     u.TimesSuccessful,
		SuccessRate:         u.SuccessRate,
		LatestBlobKey:       u.LatestBlobKey,
		UpdatedAt:           formatTime(u.UpdatedAt),
	}
}

func scrapeURLsToDTO(items []scrapeurl.ScrapeURL) []scrapeURLDTO {
	out := make([]scrapeURLDTO, 0, len(items))
	for _, u := range items {
		out = append(out, scrapeURLToDTO(u))
	}
	return out
}

func attemptToDTO(a scrapeurl.Attempt) attemptDTO {
	return attemptDTO{
		ID:               a.ID,
		JobID:            a.JobID,
		Status:           string(a.Status),
		Action:           a.Action,
		GameID:           a.GameID,
		ContentHash:      a.ContentHash,
		ErrorMessage:     a.ErrorMessage,
		ErrorFingerprint: a.ErrorFingerprint,
		DurationMS:       a.Duration.Milliseconds(),
		AttemptedAt:      formatTime(a.AttemptedAt),
	}
}

func gameToSummaryDTO(g game.Game) gameSummaryDTO {
	return gameSummaryDTO{
		ID:                 g.ID,
		EntityID:           g.EntityID,
		TournamentID:       g.TournamentID,
		Name:               g.Name,
		GameStatus:         string(g.GameStatus),
		GameStartDateTime:  formatTime(g.GameStartDateTime),
		VenueID:            g.VenueID,
		BuyIn:              g.BuyIn,
		TotalEntries:       g.TotalEntries,
		TotalUniquePlayers: g.TotalUniquePlayers,
		RecurringGameID:    g.RecurringGameID,
		SourceURL:          g.SourceURL,
		UpdatedAt:          formatTime(g.UpdatedAt),
	}
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return formatTime(*v)
}
