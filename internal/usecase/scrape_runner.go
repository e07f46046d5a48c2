package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrape"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	defaultBulkCount      = 100
	defaultCandidateLimit = 100
	maxGapIDsPerJob       = 5000
)

type ScrapeRunnerConfig struct {
	BulkCount      int
	CandidateLimit int
}

type ScrapeRunnerDeps struct {
	Jobs     scraperjob.Repository
	Entities entity.Repository
	Games    game.Repository
	URLs     scrapeurl.Repository
	Fetcher  scrape.Fetcher
	Parser   scrape.Parser
	Blobs    *BlobTracker
	Saver    *GameSaver
	Gaps     *GapTracker
	URLSvc   *ScrapeURLService
}

// ScrapeRunner drives one job through its tournament id sequence.
type ScrapeRunner struct {
	jobs     scraperjob.Repository
	entities entity.Repository
	games    game.Repository
	urls     scrapeurl.Repository
	fetcher  scrape.Fetcher
	parser   scrape.Parser
	blobs    *BlobTracker
	saver    *GameSaver
	gaps     *GapTracker
	urlSvc   *ScrapeURLService
	cfg      ScrapeRunnerConfig
	metrics  *scrapeMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewScrapeRunner(deps ScrapeRunnerDeps, cfg ScrapeRunnerConfig, logger *logging.Logger) *ScrapeRunner {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BulkCount <= 0 {
		cfg.BulkCount = defaultBulkCount
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	return &ScrapeRunner{
		jobs:     deps.Jobs,
		entities: deps.Entities,
		games:    deps.Games,
		urls:     deps.URLs,
		fetcher:  deps.Fetcher,
		parser:   deps.Parser,
		blobs:    deps.Blobs,
		saver:    deps.Saver,
		gaps:     deps.Gaps,
		urlSvc:   deps.URLSvc,
		cfg:      cfg,
		metrics:  newScrapeMetrics(),
		logger:   logger,
		now:      time.Now,
	}
}

type scrapeTarget struct {
	tournamentID int64
	url          string
}

// Run processes a job to a terminal status. Cancellation is observed between URLs.
func (r *ScrapeRunner) Run(ctx context.Context, jobID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeRunner.Run")
	defer span.End()

	job, ok, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get scraper job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: scraper job %s", ErrNotFound, jobID)
	}
	if job.Status.IsTerminal() {
		r.logger.InfoContext(ctx, "scraper job already finished", "job_id", job.ID, "status", string(job.Status))
		return nil
	}
	if job.Status == scraperjob.StatusPending {
		if _, err := r.jobs.TransitionStatus(ctx, job.ID, []scraperjob.Status{scraperjob.StatusPending}, scraperjob.StatusRunning, "", r.now().UTC()); err != nil {
			return fmt.Errorf("mark scraper job running: %w", err)
		}
		job.Status = scraperjob.StatusRunning
	}
	job.Thresholds = job.Thresholds.WithDefaults()

	logger := r.logger.With("job_id", job.ID, "entity_id", job.EntityID, "mode", string(job.Mode))
	logger.InfoContext(ctx, "scraper job started")

	ent, ok, err := r.entities.GetByID(ctx, job.EntityID)
	if err != nil || !ok {
		reason := fmt.Sprintf("entity %s not found", job.EntityID)
		if err != nil {
			reason = err.Error()
		}
		return r.finish(ctx, logger, job, scraperjob.StatusFailed, reason)
	}

	targets, err := r.sequence(ctx, job, ent)
	if err != nil {
		recordSpanError(span, err)
		return r.finish(ctx, logger, job, scraperjob.StatusFailed, err.Error())
	}

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, logger, job, scraperjob.StatusStoppedManual, "context cancelled: "+err.Error())
		}
		cancelled, err := r.cancelled(ctx, job.ID)
		if err != nil {
			logger.WarnContext(ctx, "poll scraper job status failed", "error", err)
		}
		if cancelled {
			logger.InfoContext(ctx, "scraper job cancelled", "last_processed_id", job.Counters.LastProcessedID)
			return r.finish(ctx, logger, job, scraperjob.StatusStoppedManual, "cancelled")
		}

		outcome := r.processTarget(ctx, logger, &job, ent, target)
		job.Counters.Record(outcome)
		job.Counters.LastProcessedID = target.tournamentID
		r.metrics.countURL(ctx, job.EntityID, string(outcome))

		if status, reason, stop := job.Counters.StopStatus(job.Thresholds); stop {
			return r.finish(ctx, logger, job, status, reason)
		}

		job.UpdatedAt = r.now().UTC()
		if err := r.jobs.Save(ctx, job); err != nil {
			logger.WarnContext(ctx, "save scraper job progress failed", "error", err)
		}
	}

	return r.finish(ctx, logger, job, scraperjob.StatusCompleted, "")
}

func (r *ScrapeRunner) cancelled(ctx context.Context, jobID string) (bool, error) {
	current, ok, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	return ok && current.Status == scraperjob.StatusStoppedManual, nil
}

func (r *ScrapeRunner) finish(ctx context.Context, logger *logging.Logger, job scraperjob.Job, status scraperjob.Status, reason string) error {
	job.Finish(status, reason, r.now().UTC())
	// Save keeps a terminal status written concurrently, e.g. a manual stop.
	if err := r.jobs.Save(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("save finished scraper job: %w", err)
	}
	if job.DurationSeconds != nil {
		r.metrics.observeJob(ctx, job.EntityID, string(status), *job.DurationSeconds)
	}
	logger.InfoContext(ctx, "scraper job finished",
		"status", string(status),
		"reason", reason,
		"processed", job.Counters.Processed,
		"new", job.Counters.New,
		"updated", job.Counters.Updated,
		"errors", job.Counters.Errors,
		"s3_cache_hits", job.Counters.S3CacheHits,
	)
	return nil
}

// sequence materializes the tournament ids the job will visit, in order.
func (r *ScrapeRunner) sequence(ctx context.Context, job scraperjob.Job, ent entity.Entity) ([]scrapeTarget, error) {
	var ids []int64
	switch job.Mode {
	case scraperjob.ModeRange:
		if job.StartID == nil || job.EndID == nil {
			return nil, fmt.Errorf("%w: range mode requires startId and endId", ErrInvalidInput)
		}
		if *job.EndID-*job.StartID+1 > scraperjob.MaxRangeSpan {
			return nil, fmt.Errorf("%w: range exceeds %d ids", ErrInvalidInput, scraperjob.MaxRangeSpan)
		}
		for tid := *job.StartID; tid <= *job.EndID; tid++ {
			ids = append(ids, tid)
		}
	case scraperjob.ModeBulk:
		start := int64(1)
		if job.StartID != nil {
			start = *job.StartID
		} else {
			high, ok, err := r.games.HighestTournamentID(ctx, job.EntityID)
			if err != nil {
				return nil, fmt.Errorf("highest tournament id: %w", err)
			}
			if ok {
				start = high + 1
			}
		}
		count := r.cfg.BulkCount
		if job.BulkCount != nil && *job.BulkCount > 0 {
			count = *job.BulkCount
		}
		for tid := start; len(ids) < count; tid++ {
			if job.MaxID != nil && tid > *job.MaxID {
				break
			}
			ids = append(ids, tid)
		}
	case scraperjob.ModeGaps:
		gapIDs, err := r.gapIDs(ctx, job)
		if err != nil {
			return nil, err
		}
		ids = gapIDs
	case scraperjob.ModeUpdates:
		limit := r.cfg.CandidateLimit
		if job.BulkCount != nil && *job.BulkCount > 0 {
			limit = *job.BulkCount
		}
		candidates, err := r.urlSvc.UpdateCandidates(ctx, job.EntityID, limit)
		if err != nil {
			return nil, err
		}
		out := make([]scrapeTarget, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, scrapeTarget{tournamentID: c.ScrapeURL.TournamentID, url: c.ScrapeURL.URL})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, job.Mode)
	}

	out := make([]scrapeTarget, 0, len(ids))
	for _, tid := range ids {
		out = append(out, scrapeTarget{tournamentID: tid, url: ent.GameURL(tid)})
	}
	return out, nil
}

func (r *ScrapeRunner) gapIDs(ctx context.Context, job scraperjob.Job) ([]int64, error) {
	ids := slices.Clone(job.GapIDs)
	if len(ids) == 0 {
		report, err := r.gaps.TournamentIDGaps(ctx, job.EntityID, job.StartID, job.EndID, 0)
		if err != nil {
			return nil, err
		}
	expand:
		for _, g := range report.Gaps {
			for tid := g.Start; tid <= g.End; tid++ {
				if len(ids) >= maxGapIDsPerJob {
					break expand
				}
				ids = append(ids, tid)
			}
		}
	}
	if job.Options.SkipNotFoundGaps {
		notFound, err := r.urls.ListNotFoundIDs(ctx, job.EntityID)
		if err != nil {
			return nil, fmt.Errorf("list not found ids: %w", err)
		}
		skip := make(map[int64]struct{}, len(notFound))
		for _, tid := range notFound {
			skip[tid] = struct{}{}
		}
		ids = slices.DeleteFunc(ids, func(tid int64) bool {
			_, ok := skip[tid]
			return ok
		})
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// processTarget runs FETCH, CACHE_CHECK, PARSE and SAVE for one page.
func (r *ScrapeRunner) processTarget(ctx context.Context, logger *logging.Logger, job *scraperjob.Job, ent entity.Entity, target scrapeTarget) scraperjob.Outcome {
	started := r.now()
	record := func(status scrapeurl.AttemptStatus, action, blobKey, hash string, err error) {
		in := AttemptInput{
			URL:          target.url,
			EntityID:     ent.ID,
			TournamentID: target.tournamentID,
			JobID:        job.ID,
			Status:       status,
			Action:       action,
			ContentHash:  hash,
			BlobKey:      blobKey,
			Err:          err,
			Duration:     r.now().Sub(started),
		}
		if recErr := r.urlSvc.RecordAttempt(ctx, in); recErr != nil {
			logger.WarnContext(ctx, "record scrape attempt failed", "tournament_id", target.tournamentID, "error", recErr)
		}
	}

	existing, hasGame, err := r.games.FindByEntityTournament(ctx, ent.ID, target.tournamentID)
	if err != nil {
		logger.WarnContext(ctx, "lookup stored game failed", "tournament_id", target.tournamentID, "error", err)
	}
	if skip, reason := r.shouldSkip(ctx, job.Options, existing, hasGame, target.url); skip {
		logger.DebugContext(ctx, "tournament skipped", "tournament_id", target.tournamentID, "reason", reason)
		return scraperjob.OutcomeSkipped
	}

	// FETCH
	fetched, err := r.fetcher.Fetch(ctx, target.url)
	if err != nil {
		if errors.Is(err, scrape.ErrPageNotFound) {
			record(scrapeurl.AttemptNotFound, "", "", "", nil)
			return scraperjob.OutcomeNotFound
		}
		logger.WarnContext(ctx, "fetch tournament page failed", "tournament_id", target.tournamentID, "error", err)
		record(scrapeurl.AttemptFetchError, "", "", "", err)
		return scraperjob.OutcomeError
	}

	// CACHE_CHECK
	stored, storeErr := r.blobs.StoreOrDedup(ctx, StoreHTMLInput{
		EntityID:     ent.ID,
		TournamentID: target.tournamentID,
		URL:          target.url,
		Body:         fetched.Body,
		Source:       blob.SourceScrape,
		GameStatus:   existing.GameStatus,
	})
	if storeErr != nil {
		logger.WarnContext(ctx, "store tournament html failed", "tournament_id", target.tournamentID, "error", storeErr)
		stored = StoreHTMLResult{ContentHash: HashContent(fetched.Body)}
	}
	if stored.Deduplicated && hasGame && !job.Options.ForceRefresh {
		job.Counters.S3CacheHits++
		r.metrics.countCacheHit(ctx, ent.ID)
		r.markParsed(ctx, logger, stored.RecordID, false)
		record(scrapeurl.AttemptSkipped, string(SaveSkipped), stored.BlobKey, stored.ContentHash, nil)
		return scraperjob.OutcomeSkipped
	}

	// PARSE
	parsed, err := r.parser.Parse(ctx, fetched.Body, target.url)
	if err != nil {
		logger.WarnContext(ctx, "parse tournament page failed", "tournament_id", target.tournamentID, "error", err)
		record(scrapeurl.AttemptParseError, "", stored.BlobKey, stored.ContentHash, err)
		return scraperjob.OutcomeError
	}
	switch parsed.Status {
	case scrape.PageNotFound:
		record(scrapeurl.AttemptNotFound, "", stored.BlobKey, stored.ContentHash, nil)
		return scraperjob.OutcomeNotFound
	case scrape.PageBlank:
		record(scrapeurl.AttemptBlank, "", stored.BlobKey, stored.ContentHash, nil)
		return scraperjob.OutcomeBlank
	case scrape.PageNotPublished:
		parsed.Game.GameStatus = game.StatusNotPublished
	}

	// SAVE
	res, err := r.saver.Save(ctx, saveInputFromParse(parsed, ent.ID, target, job, stored.ContentHash, SourceTypeScrape))
	if err != nil {
		status := scrapeurl.AttemptSaveError
		if parsed.Status == scrape.PageNotPublished && errors.Is(err, ErrInvalidInput) {
			// unpublished pages often lack the fields a game needs
			record(scrapeurl.AttemptNotPublished, "", stored.BlobKey, stored.ContentHash, nil)
			return scraperjob.OutcomeSkipped
		}
		logger.WarnContext(ctx, "save scraped game failed", "tournament_id", target.tournamentID, "error", err)
		record(status, string(res.Action), stored.BlobKey, stored.ContentHash, err)
		return scraperjob.OutcomeError
	}
	if stored.RecordID != "" {
		r.markParsed(ctx, logger, stored.RecordID, res.Action != SaveSkipped)
	}

	switch res.Action {
	case SaveCreated:
		return scraperjob.OutcomeNew
	case SaveUpdated:
		return scraperjob.OutcomeUpdated
	default:
		return scraperjob.OutcomeSkipped
	}
}

func (r *ScrapeRunner) shouldSkip(ctx context.Context, opts scraperjob.Options, existing game.Game, hasGame bool, url string) (bool, string) {
	if row, ok, err := r.urls.GetByURL(ctx, url); err == nil && ok && row.DoNotScrape {
		return true, "do not scrape"
	}
	if !hasGame || opts.ForceRefresh {
		return false, ""
	}
	if opts.SkipFinished && existing.GameStatus.IsTerminal() {
		return true, "finished"
	}
	if opts.SkipInProgress && existing.GameStatus.IsLive() {
		return true, "in progress"
	}
	return false, ""
}

func (r *ScrapeRunner) markParsed(ctx context.Context, logger *logging.Logger, recordID string, dataChanged bool) {
	if recordID == "" {
		return
	}
	if err := r.blobs.MarkParsed(ctx, recordID, dataChanged); err != nil {
		logger.WarnContext(ctx, "mark blob parsed failed", "record_id", recordID, "error", err)
	}
}

const (
	SourceTypeScrape = "SCRAPE"
	SourceTypeManual = "MANUAL"
	SourceTypeAPI    = "API"
)

func saveInputFromParse(parsed scrape.ParseResult, entityID string, target scrapeTarget, job *scraperjob.Job, contentHash, sourceType string) SaveGameInput {
	payload := parsed.Game
	payload.TournamentID = target.tournamentID
	payload.SourceURL = target.url
	if strings.TrimSpace(payload.SeriesName) == "" {
		payload.SeriesName = parsed.SeriesName
	}

	in := SaveGameInput{
		Source: SaveSource{
			Type:        sourceType,
			SourceID:    target.url,
			EntityID:    entityID,
			ContentHash: contentHash,
		},
		Game:   payload,
		Venue:  VenueRef{VenueName: parsed.VenueName},
		Series: SeriesRef{SeriesName: parsed.SeriesName},
	}
	if in.Source.SourceID == "" {
		in.Source.SourceID = fmt.Sprintf("%s/%d", entityID, target.tournamentID)
	}
	if job != nil {
		in.Source.JobID = job.ID
		in.Options.ForceUpdate = job.Options.ForceRefresh
	}
	if len(parsed.Players.AllPlayers) > 0 {
		players := parsed.Players
		in.Players = &players
	}
	return in
}

type ManualUploadInput struct {
	EntityID     string `json:"entityId" validate:"required"`
	TournamentID int64  `json:"tournamentId" validate:"required,gt=0"`
	HTML         string `json:"html" validate:"required"`
	WasEdited    bool   `json:"wasEdited"`
}

// ProcessUpload stores operator-supplied HTML under the manual-uploads prefix, parses it and saves the game.
func (r *ScrapeRunner) ProcessUpload(ctx context.Context, in ManualUploadInput) (SaveGameResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeRunner.ProcessUpload")
	defer span.End()

	if strings.TrimSpace(in.EntityID) == "" || in.TournamentID <= 0 || strings.TrimSpace(in.HTML) == "" {
		return SaveGameResult{Action: SaveValidationFailed}, fmt.Errorf("%w: entityId, tournamentId and html are required", ErrInvalidInput)
	}
	ent, ok, err := r.entities.GetByID(ctx, in.EntityID)
	if err != nil {
		return SaveGameResult{Action: SaveError}, fmt.Errorf("get entity: %w", err)
	}
	if !ok {
		return SaveGameResult{Action: SaveError}, fmt.Errorf("%w: entity %s", ErrNotFound, in.EntityID)
	}

	target := scrapeTarget{tournamentID: in.TournamentID, url: ent.GameURL(in.TournamentID)}
	body := []byte(in.HTML)
	stored, err := r.blobs.StoreOrDedup(ctx, StoreHTMLInput{
		EntityID:     ent.ID,
		TournamentID: in.TournamentID,
		URL:          target.url,
		Body:         body,
		Source:       blob.SourceManual,
	})
	if err != nil {
		return SaveGameResult{Action: SaveError}, err
	}

	parsed, err := r.parser.Parse(ctx, body, target.url)
	if err != nil {
		return SaveGameResult{Action: SaveError}, fmt.Errorf("%w: parse uploaded html: %v", ErrInvalidInput, err)
	}
	if parsed.Status == scrape.PageNotFound || parsed.Status == scrape.PageBlank {
		return SaveGameResult{Action: SaveValidationFailed}, fmt.Errorf("%w: uploaded html has no tournament (%s)", ErrInvalidInput, parsed.Status)
	}
	if parsed.Status == scrape.PageNotPublished {
		parsed.Game.GameStatus = game.StatusNotPublished
	}

	save := saveInputFromParse(parsed, ent.ID, target, nil, stored.ContentHash, SourceTypeManual)
	save.Options.WasEdited = in.WasEdited
	res, err := r.saver.Save(ctx, save)
	if err != nil {
		return res, err
	}
	r.markParsed(ctx, r.logger, stored.RecordID, res.Action != SaveSkipped)
	return res, nil
}
