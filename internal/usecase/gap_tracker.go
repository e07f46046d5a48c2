package usecase

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	defaultGapCacheTTL = 5 * time.Minute
	defaultIDPageSize  = 1000
	defaultMaxGaps     = 1000
)

type GapTrackerConfig struct {
	CacheTTL time.Duration
	PageSize int
	MaxGaps  int
}

type TournamentIDBounds struct {
	EntityID   string `json:"entityId"`
	LowestID   *int64 `json:"lowestId"`
	HighestID  *int64 `json:"highestId"`
	TotalGames int    `json:"totalGames"`
}

type GapReport struct {
	EntityID     string                `json:"entityId"`
	StartID      int64                 `json:"startId"`
	EndID        int64                 `json:"endId"`
	Gaps         []scraperjob.GapRange `json:"gaps"`
	GapCount     int                   `json:"gapCount"`
	MissingCount int64                 `json:"missingCount"`
	Truncated    bool                  `json:"truncated"`
}

type EntityStatusInput struct {
	EntityID     string `json:"entityId" validate:"required"`
	ForceRefresh bool   `json:"forceRefresh"`
	StartID      *int64 `json:"startId"`
	EndID        *int64 `json:"endId"`
}

type EntityScrapingStatus struct {
	EntityID        string                `json:"entityId"`
	LowestStoredID  int64                 `json:"lowestStoredId"`
	HighestStoredID int64                 `json:"highestStoredId"`
	TotalGames      int                   `json:"totalGames"`
	ScanStartID     int64                 `json:"scanStartId"`
	ScanEndID       int64                 `json:"scanEndId"`
	Gaps            []scraperjob.GapRange `json:"gaps"`
	GapCount        int                   `json:"gapCount"`
	MissingCount    int64                 `json:"missingCount"`
	Truncated       bool                  `json:"truncated"`
	CoveragePercent float64               `json:"coveragePercent"`
	LastGapScanAt   *time.Time            `json:"lastGapScanAt,omitempty"`
	FromCache       bool                  `json:"fromCache"`
	// CacheAge is the age of a cached result in seconds.
	CacheAge *int64 `json:"cacheAge,omitempty"`
}

type GamePage struct {
	Items         []game.Game `json:"items"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// GapTracker maintains the per-entity map of stored and missing tournament ids.
type GapTracker struct {
	games  game.Repository
	states scraperjob.StateRepository
	cfg    GapTrackerConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewGapTracker(games game.Repository, states scraperjob.StateRepository, cfg GapTrackerConfig, logger *logging.Logger) *GapTracker {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultGapCacheTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultIDPageSize
	}
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = defaultMaxGaps
	}
	return &GapTracker{games: games, states: states, cfg: cfg, logger: logger, now: time.Now}
}

// Bounds runs the lowest, highest and count queries concurrently.
func (t *GapTracker) Bounds(ctx context.Context, entityID string) (TournamentIDBounds, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GapTracker.Bounds")
	defer span.End()

	out := TournamentIDBounds{EntityID: entityID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		low, ok, err := t.games.LowestTournamentID(gctx, entityID)
		if err != nil {
			return fmt.Errorf("lowest tournament id: %w", err)
		}
		if ok {
			out.LowestID = &low
		}
		return nil
	})
	g.Go(func() error {
		high, ok, err := t.games.HighestTournamentID(gctx, entityID)
		if err != nil {
			return fmt.Errorf("highest tournament id: %w", err)
		}
		if ok {
			out.HighestID = &high
		}
		return nil
	})
	g.Go(func() error {
		count, err := t.games.CountByEntity(gctx, entityID)
		if err != nil {
			return fmt.Errorf("count games: %w", err)
		}
		out.TotalGames = count
		return nil
	})
	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		return TournamentIDBounds{}, err
	}
	return out, nil
}

// AllIDs pages through stored ids in [start, end]; end <= 0 means unbounded.
func (t *GapTracker) AllIDs(ctx context.Context, entityID string, start, end int64) ([]int64, error) {
	out := make([]int64, 0)
	after := start - 1
	for {
		page, err := t.games.ListTournamentIDs(ctx, entityID, after, end, t.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("list tournament ids: %w", err)
		}
		out = append(out, page...)
		if len(page) < t.cfg.PageSize {
			break
		}
		after = page[len(page)-1]
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// FindGaps returns the runs of [start, end] not present in ids, at most maxGaps of them.
// The bool reports whether more gaps existed than were returned.
func FindGaps(ids []int64, start, end int64, maxGaps int) ([]scraperjob.GapRange, bool) {
	gaps := make([]scraperjob.GapRange, 0)
	if end < start {
		return gaps, false
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	next := start
	emit := func(from, to int64) bool {
		if maxGaps > 0 && len(gaps) >= maxGaps {
			return false
		}
		gaps = append(gaps, scraperjob.GapRange{Start: from, End: to, Count: to - from + 1})
		return true
	}
	for _, id := range sorted {
		if id < start {
			continue
		}
		if id > end {
			break
		}
		if id > next {
			if !emit(next, id-1) {
				return gaps, true
			}
		}
		next = id + 1
	}
	if next <= end {
		if !emit(next, end) {
			return gaps, true
		}
	}
	return gaps, false
}

func (t *GapTracker) resolveRange(ctx context.Context, entityID string, startID, endID *int64) (int64, int64, TournamentIDBounds, error) {
	bounds, err := t.Bounds(ctx, entityID)
	if err != nil {
		return 0, 0, TournamentIDBounds{}, err
	}
	var start, end int64
	if bounds.LowestID != nil {
		start = *bounds.LowestID
	}
	if bounds.HighestID != nil {
		end = *bounds.HighestID
	}
	if startID != nil {
		start = *startID
	}
	if endID != nil {
		end = *endID
	}
	if start > 0 && end > 0 && end < start {
		return 0, 0, TournamentIDBounds{}, fmt.Errorf("%w: endId must be >= startId", ErrInvalidInput)
	}
	return start, end, bounds, nil
}

func (t *GapTracker) TournamentIDGaps(ctx context.Context, entityID string, startID, endID *int64, maxGaps int) (GapReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GapTracker.TournamentIDGaps")
	defer span.End()

	start, end, _, err := t.resolveRange(ctx, entityID, startID, endID)
	if err != nil {
		return GapReport{}, err
	}
	report := GapReport{EntityID: entityID, StartID: start, EndID: end, Gaps: []scraperjob.GapRange{}}
	if start <= 0 || end <= 0 {
		return report, nil
	}

	ids, err := t.AllIDs(ctx, entityID, start, end)
	if err != nil {
		return GapReport{}, err
	}
	if maxGaps <= 0 {
		maxGaps = t.cfg.MaxGaps
	}
	report.Gaps, report.Truncated = FindGaps(ids, start, end, maxGaps)
	report.GapCount = len(report.Gaps)
	report.MissingCount = (end - start + 1) - int64(len(ids))
	return report, nil
}

// EntityScrapingStatus serves the cached gap scan while it is younger than the TTL.
func (t *GapTracker) EntityScrapingStatus(ctx context.Context, in EntityStatusInput) (EntityScrapingStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GapTracker.EntityScrapingStatus")
	defer span.End()

	now := t.now().UTC()
	if !in.ForceRefresh {
		state, ok, err := t.states.Get(ctx, in.EntityID)
		if err != nil {
			return EntityScrapingStatus{}, fmt.Errorf("get scraper state: %w", err)
		}
		if ok && state.LastGapScanAt != nil && now.Sub(*state.LastGapScanAt) < t.cfg.CacheTTL && rangeMatches(state, in) {
			status := statusFromState(state)
			status.FromCache = true
			age := int64(now.Sub(*state.LastGapScanAt).Seconds())
			status.CacheAge = &age
			return status, nil
		}
	}

	start, end, bounds, err := t.resolveRange(ctx, in.EntityID, in.StartID, in.EndID)
	if err != nil {
		return EntityScrapingStatus{}, err
	}

	state := scraperjob.State{
		EntityID:       in.EntityID,
		TotalGames:     bounds.TotalGames,
		ScanStartID:    start,
		ScanEndID:      end,
		KnownGapRanges: []scraperjob.GapRange{},
		LastGapScanAt:  &now,
		UpdatedAt:      now,
	}
	if bounds.LowestID != nil {
		state.LowestStoredID = *bounds.LowestID
	}
	if bounds.HighestID != nil {
		state.HighestStoredID = *bounds.HighestID
	}
	if start > 0 && end > 0 {
		ids, err := t.AllIDs(ctx, in.EntityID, start, end)
		if err != nil {
			return EntityScrapingStatus{}, err
		}
		state.KnownGapRanges, state.GapsTruncated = FindGaps(ids, start, end, t.cfg.MaxGaps)
		state.MissingCount = (end - start + 1) - int64(len(ids))
	}

	if err := t.states.Upsert(ctx, state); err != nil {
		t.logger.WarnContext(ctx, "persist scraper state failed",
			"entity_id", in.EntityID,
			"error", err,
		)
	}
	return statusFromState(state), nil
}

func rangeMatches(state scraperjob.State, in EntityStatusInput) bool {
	if in.StartID != nil && *in.StartID != state.ScanStartID {
		return false
	}
	if in.EndID != nil && *in.EndID != state.ScanEndID {
		return false
	}
	return true
}

func statusFromState(state scraperjob.State) EntityScrapingStatus {
	out := EntityScrapingStatus{
		EntityID:        state.EntityID,
		LowestStoredID:  state.LowestStoredID,
		HighestStoredID: state.HighestStoredID,
		TotalGames:      state.TotalGames,
		ScanStartID:     state.ScanStartID,
		ScanEndID:       state.ScanEndID,
		Gaps:            state.KnownGapRanges,
		GapCount:        len(state.KnownGapRanges),
		MissingCount:    state.MissingCount,
		Truncated:       state.GapsTruncated,
		LastGapScanAt:   state.LastGapScanAt,
	}
	if out.Gaps == nil {
		out.Gaps = []scraperjob.GapRange{}
	}
	out.CoveragePercent = Coverage(state.ScanStartID, state.ScanEndID, state.MissingCount)
	return out
}

// Coverage is (range - missing) / range as a percentage rounded to two decimals.
func Coverage(start, end, missing int64) float64 {
	if start <= 0 || end < start {
		return 0
	}
	span := float64(end - start + 1)
	return math.Round((span-float64(missing))/span*10000) / 100
}

func (t *GapTracker) UnfinishedGames(ctx context.Context, entityID string, limit int, pageToken string) (GamePage, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GapTracker.UnfinishedGames")
	defer span.End()

	offset, err := decodePageToken(pageToken)
	if err != nil {
		return GamePage{}, err
	}
	limit = normalizeLimit(limit, defaultPageLimit)
	items, err := t.games.ListUnfinished(ctx, entityID, game.ListOptions{Limit: limit + 1, Offset: offset})
	if err != nil {
		return GamePage{}, fmt.Errorf("list unfinished games: %w", err)
	}
	items, token := nextPageToken(items, offset, limit)
	return GamePage{Items: items, NextPageToken: token}, nil
}

func (t *GapTracker) ExistingTournamentIDs(ctx context.Context, entityID string, startID, endID *int64, limit int) ([]int64, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GapTracker.ExistingTournamentIDs")
	defer span.End()

	limit = normalizeLimit(limit, defaultIDPageSize)
	var after, maxID int64
	if startID != nil {
		after = *startID - 1
	}
	if endID != nil {
		maxID = *endID
	}
	ids, err := t.games.ListTournamentIDs(ctx, entityID, after, maxID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tournament ids: %w", err)
	}
	return ids, nil
}
