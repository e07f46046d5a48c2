package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

type StoreHTMLInput struct {
	EntityID     string
	TournamentID int64
	URL          string
	ScrapeURLID  string
	Body         []byte
	Source       blob.Source
	GameStatus   game.Status
}

type StoreHTMLResult struct {
	RecordID      string `json:"recordId"`
	BlobKey       string `json:"blobKey"`
	ContentHash   string `json:"contentHash"`
	VersionNumber int    `json:"versionNumber"`
	// Deduplicated is true when the bytes matched the latest stored version.
	Deduplicated bool `json:"deduplicated"`
}

// BlobTracker stores fetched HTML once per distinct content and versions the index record.
type BlobTracker struct {
	store   blob.Store
	records blob.Repository
	idGen   id.Generator
	logger  *logging.Logger
	now     func() time.Time
}

func NewBlobTracker(store blob.Store, records blob.Repository, idGen id.Generator, logger *logging.Logger) *BlobTracker {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}
	return &BlobTracker{store: store, records: records, idGen: idGen, logger: logger, now: time.Now}
}

func HashContent(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// StoreOrDedup writes body unless it equals the latest version of the same page.
func (t *BlobTracker) StoreOrDedup(ctx context.Context, in StoreHTMLInput) (StoreHTMLResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BlobTracker.StoreOrDedup")
	defer span.End()

	if strings.TrimSpace(in.EntityID) == "" || in.TournamentID <= 0 {
		return StoreHTMLResult{}, fmt.Errorf("%w: entity id and tournament id are required", ErrInvalidInput)
	}
	if in.Source == "" {
		in.Source = blob.SourceScrape
	}

	now := t.now().UTC()
	hash := HashContent(in.Body)
	key := blob.HTMLKey(in.EntityID, in.TournamentID, now, hash)
	if in.Source == blob.SourceManual {
		key = blob.ManualUploadKey(in.EntityID, in.TournamentID, now, hash)
	}

	existing, found, err := t.locate(ctx, in, key)
	if err != nil {
		return StoreHTMLResult{}, err
	}
	if found && existing.ContentHash == hash {
		return StoreHTMLResult{
			RecordID:      existing.ID,
			BlobKey:       existing.BlobKey,
			ContentHash:   hash,
			VersionNumber: existing.VersionNumber,
			Deduplicated:  true,
		}, nil
	}

	meta := blob.Metadata{ContentHash: hash, URL: in.URL, EntityID: in.EntityID, StoredAt: now}
	if err := t.store.Put(ctx, key, in.Body, meta); err != nil {
		return StoreHTMLResult{}, fmt.Errorf("%w: put blob %s: %v", ErrDependencyUnavailable, key, err)
	}

	if found {
		existing.Supersede(key, hash, len(in.Body), in.GameStatus, now)
		if in.URL != "" {
			existing.URL = in.URL
		}
		if err := t.records.Update(ctx, existing); err != nil {
			return StoreHTMLResult{}, fmt.Errorf("update blob record: %w", err)
		}
		t.logger.DebugContext(ctx, "blob version stored",
			"entity_id", in.EntityID,
			"tournament_id", in.TournamentID,
			"version", existing.VersionNumber,
		)
		return StoreHTMLResult{RecordID: existing.ID, BlobKey: key, ContentHash: hash, VersionNumber: existing.VersionNumber}, nil
	}

	recordID, err := t.idGen.NewID()
	if err != nil {
		return StoreHTMLResult{}, fmt.Errorf("generate blob record id: %w", err)
	}
	record := blob.Record{
		ID:            recordID,
		ScrapeURLID:   in.ScrapeURLID,
		URL:           in.URL,
		EntityID:      in.EntityID,
		TournamentID:  in.TournamentID,
		Source:        in.Source,
		BlobKey:       key,
		ContentHash:   hash,
		ContentSize:   len(in.Body),
		GameStatus:    in.GameStatus,
		VersionNumber: 1,
		TotalVersions: 1,
		StoredAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.records.Create(ctx, record); err != nil {
		return StoreHTMLResult{}, fmt.Errorf("create blob record: %w", err)
	}
	return StoreHTMLResult{RecordID: record.ID, BlobKey: key, ContentHash: hash, VersionNumber: 1}, nil
}

// locate looks the record up by (entity, tournament), then blob key, then url.
func (t *BlobTracker) locate(ctx context.Context, in StoreHTMLInput, key string) (blob.Record, bool, error) {
	rec, ok, err := t.records.FindByEntityTournament(ctx, in.EntityID, in.TournamentID)
	if err != nil || ok {
		return rec, ok, wrapBlobLookup(err)
	}
	rec, ok, err = t.records.FindByBlobKey(ctx, key)
	if err != nil || ok {
		return rec, ok, wrapBlobLookup(err)
	}
	if in.URL == "" {
		return blob.Record{}, false, nil
	}
	rec, ok, err = t.records.FindByURL(ctx, in.URL)
	return rec, ok, wrapBlobLookup(err)
}

func wrapBlobLookup(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("find blob record: %w", err)
}

// MarkParsed bumps parse stats even when the stored bytes did not change.
func (t *BlobTracker) MarkParsed(ctx context.Context, recordID string, dataChanged bool) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.BlobTracker.MarkParsed")
	defer span.End()

	rec, ok, err := t.records.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("get blob record: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: blob record %s", ErrNotFound, recordID)
	}

	now := t.now().UTC()
	rec.IsParsed = true
	rec.ParseCount++
	rec.LastParsedAt = &now
	if dataChanged {
		changedAt := now
		rec.DataChangedAt = &changedAt
	}
	rec.UpdatedAt = now
	if err := t.records.Update(ctx, rec); err != nil {
		return fmt.Errorf("update blob record: %w", err)
	}
	return nil
}

// Load returns the bytes of the latest version of a record.
func (t *BlobTracker) Load(ctx context.Context, recordID string) ([]byte, blob.Record, error) {
	rec, ok, err := t.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, blob.Record{}, fmt.Errorf("get blob record: %w", err)
	}
	if !ok {
		return nil, blob.Record{}, fmt.Errorf("%w: blob record %s", ErrNotFound, recordID)
	}
	body, _, err := t.store.Get(ctx, rec.BlobKey)
	if err != nil {
		return nil, blob.Record{}, fmt.Errorf("get blob %s: %w", rec.BlobKey, err)
	}
	return body, rec, nil
}
