package blob

import (
	"fmt"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

type Source string

const (
	SourceScrape Source = "SCRAPE"
	SourceManual Source = "MANUAL"
)

// Version is the retained summary of a superseded blob.
type Version struct {
	BlobKey       string      `json:"blobKey"`
	ContentHash   string      `json:"contentHash"`
	ContentSize   int         `json:"contentSize"`
	VersionNumber int         `json:"versionNumber"`
	GameStatus    game.Status `json:"gameStatus,omitempty"`
	StoredAt      time.Time   `json:"storedAt"`
}

// Record indexes the stored HTML versions of one tournament page.
type Record struct {
	ID           string
	ScrapeURLID  string
	URL          string
	EntityID     string
	TournamentID int64
	Source       Source

	BlobKey       string
	ContentHash   string
	ContentSize   int
	GameStatus    game.Status
	VersionNumber int
	TotalVersions int
	StoredAt      time.Time
	// PreviousVersions is newest first.
	PreviousVersions []Version

	IsParsed      bool
	ParseCount    int
	LastParsedAt  *time.Time
	DataChangedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Supersede pushes the current head onto PreviousVersions and installs a new head.
func (r *Record) Supersede(key, contentHash string, size int, status game.Status, at time.Time) {
	prev := Version{
		BlobKey:       r.BlobKey,
		ContentHash:   r.ContentHash,
		ContentSize:   r.ContentSize,
		VersionNumber: r.VersionNumber,
		GameStatus:    r.GameStatus,
		StoredAt:      r.StoredAt,
	}
	r.PreviousVersions = append([]Version{prev}, r.PreviousVersions...)
	r.BlobKey = key
	r.ContentHash = contentHash
	r.ContentSize = size
	r.GameStatus = status
	r.StoredAt = at
	r.VersionNumber++
	r.TotalVersions++
	r.IsParsed = false
	r.UpdatedAt = at
}

// Metadata is attached to every stored object.
type Metadata struct {
	ContentHash string    `json:"contentHash"`
	URL         string    `json:"url"`
	EntityID    string    `json:"entityId"`
	StoredAt    time.Time `json:"storedAt"`
}

// HTMLKey is the object key for scraped content.
func HTMLKey(entityID string, tournamentID int64, at time.Time, contentHash string) string {
	return fmt.Sprintf("entities/%s/html/%d/%s_tid%d_%s.html",
		entityID, tournamentID, at.UTC().Format("20060102T150405Z"), tournamentID, hashPrefix(contentHash))
}

// ManualUploadKey is the object key for uploaded content.
func ManualUploadKey(entityID string, tournamentID int64, at time.Time, contentHash string) string {
	return fmt.Sprintf("entities/%s/manual-uploads/%d/%s_tid%d_%s.html",
		entityID, tournamentID, at.UTC().Format("20060102T150405Z"), tournamentID, hashPrefix(contentHash))
}

func hashPrefix(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
