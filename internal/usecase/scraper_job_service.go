package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const metricsJobScanLimit = 5000

type StartJobInput struct {
	EntityID    string                `json:"entityId" validate:"required"`
	Mode        scraperjob.Mode       `json:"mode" validate:"required,oneof=bulk range gaps updates"`
	StartID     *int64                `json:"startId,omitempty" validate:"omitempty,gt=0"`
	EndID       *int64                `json:"endId,omitempty" validate:"omitempty,gt=0"`
	MaxID       *int64                `json:"maxId,omitempty" validate:"omitempty,gt=0"`
	GapIDs      []int64               `json:"gapIds,omitempty" validate:"omitempty,max=5000,dive,gt=0"`
	BulkCount   *int                  `json:"bulkCount,omitempty" validate:"omitempty,gt=0,lte=10000"`
	Thresholds  scraperjob.Thresholds `json:"thresholds"`
	Options     scraperjob.Options    `json:"options"`
	TriggeredBy string                `json:"triggeredBy,omitempty"`
}

type JobReportInput struct {
	EntityID  string
	Status    scraperjob.Status
	Limit     int
	PageToken string
}

type JobReport struct {
	Items         []scraperjob.Job          `json:"items"`
	NextPageToken string                    `json:"nextPageToken,omitempty"`
	CountByStatus map[scraperjob.Status]int `json:"countByStatus"`
}

type MetricsTimeRange string

const (
	TimeRangeLastHour   MetricsTimeRange = "LAST_HOUR"
	TimeRangeLast24h    MetricsTimeRange = "LAST_24_HOURS"
	TimeRangeLast7Days  MetricsTimeRange = "LAST_7_DAYS"
	TimeRangeLast30Days MetricsTimeRange = "LAST_30_DAYS"
)

func (r MetricsTimeRange) Duration() (time.Duration, bool) {
	switch r {
	case TimeRangeLastHour:
		return time.Hour, true
	case TimeRangeLast24h, "":
		return 24 * time.Hour, true
	case TimeRangeLast7Days:
		return 7 * 24 * time.Hour, true
	case TimeRangeLast30Days:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

type ScraperMetrics struct {
	TimeRange              MetricsTimeRange                `json:"timeRange"`
	Since                  time.Time                       `json:"since"`
	TotalJobs              int                             `json:"totalJobs"`
	JobsByStatus           map[scraperjob.Status]int       `json:"jobsByStatus"`
	URLsProcessed          int                             `json:"urlsProcessed"`
	NewGames               int                             `json:"newGames"`
	UpdatedGames           int                             `json:"updatedGames"`
	Skipped                int                             `json:"skipped"`
	NotFound               int                             `json:"notFound"`
	Errors                 int                             `json:"errors"`
	S3CacheHits            int                             `json:"s3CacheHits"`
	CacheHitRate           float64                         `json:"cacheHitRate"`
	SuccessRate            float64                         `json:"successRate"`
	AverageDurationSeconds float64                         `json:"averageDurationSeconds"`
	AttemptsByStatus       map[scrapeurl.AttemptStatus]int `json:"attemptsByStatus"`
}

// ScheduledEvent is the payload of a timed trigger.
type ScheduledEvent struct {
	Source  string    `json:"source"`
	FiredAt time.Time `json:"firedAt"`
}

type ScheduledRunResult struct {
	Started []string          `json:"started"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// ScraperJobService owns the job record lifecycle; ScrapeRunner does the work.
type ScraperJobService struct {
	jobs       scraperjob.Repository
	entities   entity.Repository
	attempts   scrapeurl.AttemptRepository
	dispatcher JobDispatcher
	idGen      id.Generator
	validate   *validator.Validate
	bulkCount  int
	logger     *logging.Logger
	now        func() time.Time
}

func NewScraperJobService(
	jobs scraperjob.Repository,
	entities entity.Repository,
	attempts scrapeurl.AttemptRepository,
	dispatcher JobDispatcher,
	idGen id.Generator,
	bulkCount int,
	logger *logging.Logger,
) *ScraperJobService {
	if logger == nil {
		logger = logging.Default()
	}
	if bulkCount <= 0 {
		bulkCount = defaultBulkCount
	}
	return &ScraperJobService{
		jobs:       jobs,
		entities:   entities,
		attempts:   attempts,
		dispatcher: dispatcher,
		idGen:      idGen,
		validate:   validator.New(),
		bulkCount:  bulkCount,
		logger:     logger,
		now:        time.Now,
	}
}

// Start writes a PENDING job, dispatches the runner and returns the job as RUNNING.
func (s *ScraperJobService) Start(ctx context.Context, in StartJobInput) (scraperjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScraperJobService.Start")
	defer span.End()

	if err := s.validate.StructCtx(ctx, in); err != nil {
		return scraperjob.Job{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, ok, err := s.entities.GetByID(ctx, in.EntityID); err != nil {
		return scraperjob.Job{}, fmt.Errorf("get entity: %w", err)
	} else if !ok {
		return scraperjob.Job{}, fmt.Errorf("%w: entity %s", ErrNotFound, in.EntityID)
	}
	active, err := s.jobs.HasActive(ctx, in.EntityID)
	if err != nil {
		return scraperjob.Job{}, fmt.Errorf("check active jobs: %w", err)
	}
	if active {
		return scraperjob.Job{}, fmt.Errorf("%w: entity %s already has an active scraper job", ErrConflict, in.EntityID)
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		return scraperjob.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := s.now().UTC()
	triggeredBy := strings.TrimSpace(in.TriggeredBy)
	if triggeredBy == "" {
		triggeredBy = "api"
	}
	job := scraperjob.Job{
		ID:          jobID,
		EntityID:    in.EntityID,
		Status:      scraperjob.StatusPending,
		Mode:        in.Mode,
		StartID:     in.StartID,
		EndID:       in.EndID,
		MaxID:       in.MaxID,
		GapIDs:      in.GapIDs,
		BulkCount:   in.BulkCount,
		Thresholds:  in.Thresholds.WithDefaults(),
		Options:     in.Options,
		TriggeredBy: triggeredBy,
		StartTime:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.Mode == scraperjob.ModeBulk && job.BulkCount == nil {
		count := s.bulkCount
		job.BulkCount = &count
	}
	if err := job.Validate(); err != nil {
		return scraperjob.Job{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return scraperjob.Job{}, fmt.Errorf("create scraper job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		recordSpanError(span, err)
		if _, tErr := s.jobs.TransitionStatus(ctx, job.ID, []scraperjob.Status{scraperjob.StatusPending}, scraperjob.StatusFailed, "dispatch failed: "+err.Error(), s.now().UTC()); tErr != nil {
			s.logger.WarnContext(ctx, "mark undispatched job failed", "job_id", job.ID, "error", tErr)
		}
		return scraperjob.Job{}, err
	}
	// the runner may already have claimed the job; either way it is no longer PENDING
	if _, err := s.jobs.TransitionStatus(ctx, job.ID, []scraperjob.Status{scraperjob.StatusPending}, scraperjob.StatusRunning, "", s.now().UTC()); err != nil {
		return scraperjob.Job{}, fmt.Errorf("mark scraper job running: %w", err)
	}

	s.logger.InfoContext(ctx, "scraper job started",
		"job_id", job.ID,
		"entity_id", job.EntityID,
		"mode", string(job.Mode),
		"triggered_by", job.TriggeredBy,
	)
	return s.Get(ctx, job.ID)
}

// Cancel writes STOPPED_MANUAL; the runner observes it before its next URL.
func (s *ScraperJobService) Cancel(ctx context.Context, jobID string) (scraperjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScraperJobService.Cancel")
	defer span.End()

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return scraperjob.Job{}, fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}
	changed, err := s.jobs.TransitionStatus(ctx, jobID,
		[]scraperjob.Status{scraperjob.StatusPending, scraperjob.StatusRunning},
		scraperjob.StatusStoppedManual, "cancelled by operator", s.now().UTC())
	if err != nil {
		return scraperjob.Job{}, fmt.Errorf("cancel scraper job: %w", err)
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return scraperjob.Job{}, err
	}
	if changed {
		s.logger.InfoContext(ctx, "scraper job cancel requested", "job_id", jobID, "entity_id", job.EntityID)
	}
	return job, nil
}

func (s *ScraperJobService) Get(ctx context.Context, jobID string) (scraperjob.Job, error) {
	job, ok, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return scraperjob.Job{}, fmt.Errorf("get scraper job: %w", err)
	}
	if !ok {
		return scraperjob.Job{}, fmt.Errorf("%w: scraper job %s", ErrNotFound, jobID)
	}
	return job, nil
}

func (s *ScraperJobService) Report(ctx context.Context, in JobReportInput) (JobReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScraperJobService.Report")
	defer span.End()

	if in.Status != "" && !knownJobStatus(in.Status) {
		return JobReport{}, fmt.Errorf("%w: unknown job status %q", ErrInvalidInput, in.Status)
	}
	offset, err := decodePageToken(in.PageToken)
	if err != nil {
		return JobReport{}, err
	}
	limit := normalizeLimit(in.Limit, defaultPageLimit)

	jobs, err := s.jobs.List(ctx, scraperjob.Filter{
		EntityID: in.EntityID,
		Status:   in.Status,
		Limit:    limit + 1,
		Offset:   offset,
	})
	if err != nil {
		return JobReport{}, fmt.Errorf("list scraper jobs: %w", err)
	}
	items, next := nextPageToken(jobs, offset, limit)

	counts := make(map[scraperjob.Status]int)
	for _, j := range items {
		counts[j.Status]++
	}
	return JobReport{Items: items, NextPageToken: next, CountByStatus: counts}, nil
}

func knownJobStatus(s scraperjob.Status) bool {
	switch s {
	case scraperjob.StatusPending, scraperjob.StatusRunning, scraperjob.StatusCompleted,
		scraperjob.StatusStoppedNotFound, scraperjob.StatusStoppedErrors, scraperjob.StatusStoppedBlank,
		scraperjob.StatusStoppedTotalErrors, scraperjob.StatusStoppedManual, scraperjob.StatusFailed:
		return true
	}
	return false
}

// Metrics aggregates job counters and attempt outcomes over a time window.
func (s *ScraperJobService) Metrics(ctx context.Context, timeRange MetricsTimeRange, entityID string) (ScraperMetrics, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScraperJobService.Metrics")
	defer span.End()

	window, ok := timeRange.Duration()
	if !ok {
		return ScraperMetrics{}, fmt.Errorf("%w: unknown time range %q", ErrInvalidInput, timeRange)
	}
	if timeRange == "" {
		timeRange = TimeRangeLast24h
	}
	since := s.now().UTC().Add(-window)

	var (
		jobs     []scraperjob.Job
		attempts map[scrapeurl.AttemptStatus]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.jobs.List(gctx, scraperjob.Filter{EntityID: entityID, Since: &since, Limit: metricsJobScanLimit})
		if err != nil {
			return fmt.Errorf("list scraper jobs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.CountByStatusSince(gctx, entityID, since)
		if err != nil {
			return fmt.Errorf("count scrape attempts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		return ScraperMetrics{}, err
	}

	out := ScraperMetrics{
		TimeRange:        timeRange,
		Since:            since,
		TotalJobs:        len(jobs),
		JobsByStatus:     make(map[scraperjob.Status]int),
		AttemptsByStatus: attempts,
	}
	var (
		totalDuration float64
		finished      int
	)
	for _, j := range jobs {
		out.JobsByStatus[j.Status]++
		out.URLsProcessed += j.Counters.Processed
		out.NewGames += j.Counters.New
		out.UpdatedGames += j.Counters.Updated
		out.Skipped += j.Counters.Skipped
		out.NotFound += j.Counters.NotFound
		out.Errors += j.Counters.Errors
		out.S3CacheHits += j.Counters.S3CacheHits
		if j.DurationSeconds != nil {
			totalDuration += *j.DurationSeconds
			finished++
		}
	}
	if out.URLsProcessed > 0 {
		out.CacheHitRate = float64(out.S3CacheHits) / float64(out.URLsProcessed)
		out.SuccessRate = float64(out.NewGames+out.UpdatedGames+out.Skipped) / float64(out.URLsProcessed)
	}
	if finished > 0 {
		out.AverageDurationSeconds = totalDuration / float64(finished)
	}
	return out, nil
}

// RunScheduled starts one bulk job per active entity that is not already being scraped.
func (s *ScraperJobService) RunScheduled(ctx context.Context, event ScheduledEvent) (ScheduledRunResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScraperJobService.RunScheduled")
	defer span.End()

	entities, err := s.entities.ListActive(ctx)
	if err != nil {
		return ScheduledRunResult{}, fmt.Errorf("list active entities: %w", err)
	}
	source := strings.TrimSpace(event.Source)
	if source == "" {
		source = "schedule"
	}

	result := ScheduledRunResult{
		Started: make([]string, 0, len(entities)),
		Skipped: make([]string, 0),
		Failed:  make(map[string]string),
	}
	for _, ent := range entities {
		active, err := s.jobs.HasActive(ctx, ent.ID)
		if err != nil {
			result.Failed[ent.ID] = err.Error()
			continue
		}
		if active {
			result.Skipped = append(result.Skipped, ent.ID)
			continue
		}
		job, err := s.Start(ctx, StartJobInput{
			EntityID:    ent.ID,
			Mode:        scraperjob.ModeBulk,
			TriggeredBy: source,
			Options:     scraperjob.Options{SkipFinished: true},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "scheduled scraper job failed to start", "entity_id", ent.ID, "error", err)
			result.Failed[ent.ID] = err.Error()
			continue
		}
		result.Started = append(result.Started, job.ID)
	}

	s.logger.InfoContext(ctx, "scheduled scrape fired",
		"source", source,
		"fired_at", event.FiredAt,
		"started", len(result.Started),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}
