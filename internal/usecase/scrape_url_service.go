package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	updateCandidateMinAge     = time.Hour
	updateCandidateMaxStaleH  = 48
	updateCandidateScanFactor = 5
	recentAttemptsLimit       = 20
)

// AttemptInput is one scrape outcome to fold into URL tracking.
type AttemptInput struct {
	URL          string
	EntityID     string
	TournamentID int64
	JobID        string
	Status       scrapeurl.AttemptStatus
	Action       string
	GameID       string
	GameStatus   game.Status
	ContentHash  string
	BlobKey      string
	Err          error
	Duration     time.Duration
}

type ScrapeURLSearchInput struct {
	EntityID  string           `json:"entityId"`
	EntityIDs []string         `json:"entityIds"`
	Status    scrapeurl.Status `json:"status"`
	Limit     int              `json:"limit" validate:"gte=0,lte=1000"`
	PageToken string           `json:"pageToken"`
}

type ScrapeURLPage struct {
	Items         []scrapeurl.ScrapeURL `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type UpdateCandidate struct {
	ScrapeURL scrapeurl.ScrapeURL `json:"scrapeUrl"`
	Priority  float64             `json:"priority"`
}

type ScrapeURLDetails struct {
	ScrapeURL      scrapeurl.ScrapeURL `json:"scrapeUrl"`
	RecentAttempts []scrapeurl.Attempt `json:"recentAttempts"`
}

type ModifyScrapeURLInput struct {
	URL         string            `json:"url" validate:"required"`
	Status      *scrapeurl.Status `json:"status"`
	DoNotScrape *bool             `json:"doNotScrape"`
}

type BulkModifyScrapeURLsInput struct {
	URLs        []string          `json:"urls" validate:"required,min=1,max=500,dive,required"`
	Status      *scrapeurl.Status `json:"status"`
	DoNotScrape *bool             `json:"doNotScrape"`
}

type BulkModifyFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type BulkModifyResult struct {
	Updated int                 `json:"updated"`
	Failed  []BulkModifyFailure `json:"failed"`
}

type ScrapeURLService struct {
	urls     scrapeurl.Repository
	attempts scrapeurl.AttemptRepository
	idGen    id.Generator
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

func NewScrapeURLService(urls scrapeurl.Repository, attempts scrapeurl.AttemptRepository, idGen id.Generator, logger *logging.Logger) *ScrapeURLService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}
	return &ScrapeURLService{
		urls:     urls,
		attempts: attempts,
		idGen:    idGen,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// RecordAttempt updates the URL tracking row and appends an audit attempt.
func (s *ScrapeURLService) RecordAttempt(ctx context.Context, in AttemptInput) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.RecordAttempt")
	defer span.End()

	url := strings.TrimSpace(in.URL)
	if url == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	now := s.now().UTC()

	row, exists, err := s.urls.GetByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("get scrape url: %w", err)
	}
	if !exists {
		rowID, err := s.idGen.NewID()
		if err != nil {
			return fmt.Errorf("generate scrape url id: %w", err)
		}
		row = scrapeurl.ScrapeURL{
			ID:           rowID,
			URL:          url,
			EntityID:     in.EntityID,
			TournamentID: in.TournamentID,
			Status:       scrapeurl.StatusActive,
			CreatedAt:    now,
		}
	}

	row.RecordAttempt(in.Status, now)
	if in.GameID != "" {
		row.GameID = in.GameID
	}
	if in.GameStatus != "" {
		row.GameStatus = in.GameStatus
	}
	if in.BlobKey != "" {
		key := in.BlobKey
		row.LatestBlobKey = &key
	}
	if err := s.urls.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert scrape url: %w", err)
	}

	if s.attempts == nil {
		return nil
	}
	attemptID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate attempt id: %w", err)
	}
	attempt := scrapeurl.Attempt{
		ID:           attemptID,
		ScrapeURLID:  row.ID,
		URL:          url,
		EntityID:     row.EntityID,
		TournamentID: row.TournamentID,
		JobID:        in.JobID,
		Status:       in.Status,
		Action:       in.Action,
		GameID:       in.GameID,
		ContentHash:  in.ContentHash,
		Duration:     in.Duration,
		AttemptedAt:  now,
	}
	if in.Err != nil {
		attempt.ErrorMessage = in.Err.Error()
		attempt.ErrorFingerprint = ErrorFingerprint(in.Err)
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return fmt.Errorf("insert scrape attempt: %w", err)
	}
	return nil
}

var fingerprintVolatile = regexp.MustCompile(`[0-9]+|0x[0-9a-f]+|"[^"]*"`)

// ErrorFingerprint groups errors that differ only in ids, numbers or quoted values.
func ErrorFingerprint(err error) string {
	if err == nil {
		return ""
	}
	normalized := fingerprintVolatile.ReplaceAllString(strings.ToLower(err.Error()), "#")
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

// Search queries the entity index for a single entity and scans otherwise.
func (s *ScrapeURLService) Search(ctx context.Context, in ScrapeURLSearchInput) (ScrapeURLPage, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.Search")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return ScrapeURLPage{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Status != "" && !in.Status.Valid() {
		return ScrapeURLPage{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	offset, err := decodePageToken(in.PageToken)
	if err != nil {
		return ScrapeURLPage{}, err
	}
	limit := normalizeLimit(in.Limit, defaultPageLimit)

	entityIDs := in.EntityIDs
	if in.EntityID != "" {
		entityIDs = []string{in.EntityID}
	}
	filter := scrapeurl.Filter{Status: in.Status, Limit: limit + 1, Offset: offset}

	var items []scrapeurl.ScrapeURL
	if len(entityIDs) == 1 {
		items, err = s.urls.ListByEntity(ctx, entityIDs[0], filter)
	} else {
		filter.EntityIDs = entityIDs
		items, err = s.urls.Scan(ctx, filter)
	}
	if err != nil {
		return ScrapeURLPage{}, fmt.Errorf("search scrape urls: %w", err)
	}

	items, token := nextPageToken(items, offset, limit)
	return ScrapeURLPage{Items: items, NextPageToken: token}, nil
}

// UpdateCandidates ranks unfinished games whose page has not been scraped in the last hour.
func (s *ScrapeURLService) UpdateCandidates(ctx context.Context, entityID string, limit int) ([]UpdateCandidate, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.UpdateCandidates")
	defer span.End()

	limit = normalizeLimit(limit, defaultPageLimit)
	now := s.now().UTC()
	stale, err := s.urls.ListStale(ctx, entityID, now.Add(-updateCandidateMinAge), limit*updateCandidateScanFactor)
	if err != nil {
		return nil, fmt.Errorf("list stale scrape urls: %w", err)
	}

	out := make([]UpdateCandidate, 0, len(stale))
	for _, u := range stale {
		if !u.GameStatus.IsUnfinished() {
			continue
		}
		out = append(out, UpdateCandidate{ScrapeURL: u, Priority: updatePriority(u, now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func updatePriority(u scrapeurl.ScrapeURL, now time.Time) float64 {
	var weight float64
	switch u.GameStatus {
	case game.StatusRunning, game.StatusClockStopped:
		weight = 100
	case game.StatusRegistering:
		weight = 80
	case game.StatusScheduled:
		weight = 60
	default:
		weight = 40
	}
	staleHours := float64(updateCandidateMaxStaleH)
	if u.LastScrapedAt != nil {
		staleHours = min(now.Sub(*u.LastScrapedAt).Hours(), updateCandidateMaxStaleH)
	}
	return weight + staleHours
}

func (s *ScrapeURLService) Details(ctx context.Context, url string) (ScrapeURLDetails, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.Details")
	defer span.End()

	row, exists, err := s.urls.GetByURL(ctx, strings.TrimSpace(url))
	if err != nil {
		return ScrapeURLDetails{}, fmt.Errorf("get scrape url: %w", err)
	}
	if !exists {
		return ScrapeURLDetails{}, fmt.Errorf("%w: scrape url %s", ErrNotFound, url)
	}

	details := ScrapeURLDetails{ScrapeURL: row, RecentAttempts: []scrapeurl.Attempt{}}
	if s.attempts != nil {
		attempts, err := s.attempts.ListByURL(ctx, row.URL, recentAttemptsLimit)
		if err != nil {
			return ScrapeURLDetails{}, fmt.Errorf("list scrape attempts: %w", err)
		}
		details.RecentAttempts = attempts
	}
	return details, nil
}

func (s *ScrapeURLService) ModifyStatus(ctx context.Context, in ModifyScrapeURLInput) (scrapeurl.ScrapeURL, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.ModifyStatus")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.modify(ctx, in.URL, in.Status, in.DoNotScrape)
}

func (s *ScrapeURLService) BulkModify(ctx context.Context, in BulkModifyScrapeURLsInput) (BulkModifyResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeURLService.BulkModify")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return BulkModifyResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result := BulkModifyResult{Failed: []BulkModifyFailure{}}
	for _, url := range in.URLs {
		if _, err := s.modify(ctx, url, in.Status, in.DoNotScrape); err != nil {
			result.Failed = append(result.Failed, BulkModifyFailure{URL: url, Error: err.Error()})
			continue
		}
		result.Updated++
	}
	return result, nil
}

func (s *ScrapeURLService) modify(ctx context.Context, url string, status *scrapeurl.Status, doNotScrape *bool) (scrapeurl.ScrapeURL, error) {
	if status == nil && doNotScrape == nil {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("%w: status or doNotScrape is required", ErrInvalidInput)
	}
	if status != nil && !status.Valid() {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *status)
	}

	row, exists, err := s.urls.GetByURL(ctx, strings.TrimSpace(url))
	if err != nil {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("get scrape url: %w", err)
	}
	if !exists {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("%w: scrape url %s", ErrNotFound, url)
	}

	if status != nil {
		row.Status = *status
		row.DoNotScrape = *status == scrapeurl.StatusDoNotScrape
	}
	if doNotScrape != nil {
		row.DoNotScrape = *doNotScrape
		switch {
		case *doNotScrape:
			row.Status = scrapeurl.StatusDoNotScrape
		case row.Status == scrapeurl.StatusDoNotScrape:
			row.Status = scrapeurl.StatusActive
		}
	}
	row.UpdatedAt = s.now().UTC()

	if err := s.urls.Upsert(ctx, row); err != nil {
		return scrapeurl.ScrapeURL{}, fmt.Errorf("upsert scrape url: %w", err)
	}
	s.logger.InfoContext(ctx, "scrape url status modified",
		"url", row.URL,
		"status", string(row.Status),
		"do_not_scrape", row.DoNotScrape,
	)
	return row, nil
}
