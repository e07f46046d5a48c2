package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/jobscheduler"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	ScraperRunJobName = "scraper-run"
	ScraperRunJobPath = "/v1/internal/jobs/scraper-run"
)

type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

// JobDispatcher hands a PENDING job to a runner without waiting for it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job scraperjob.Job) error
}

type jobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// PoolDispatcher runs jobs in-process on an ants pool.
type PoolDispatcher struct {
	pool    *ants.Pool
	runner  jobRunner
	timeout time.Duration
	logger  *logging.Logger
}

func NewPoolDispatcher(workers int, runner jobRunner, timeout time.Duration, logger *logging.Logger) (*PoolDispatcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create scraper worker pool: %w", err)
	}
	return &PoolDispatcher{pool: pool, runner: runner, timeout: timeout, logger: logger}, nil
}

func (d *PoolDispatcher) Dispatch(ctx context.Context, job scraperjob.Job) error {
	// detached from the request so the runner outlives it; trace values are kept
	runCtx := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		runCtx, cancel := context.WithTimeout(runCtx, d.timeout)
		defer cancel()
		if err := d.runner.Run(runCtx, job.ID); err != nil {
			d.logger.ErrorContext(runCtx, "scraper job run failed", "job_id", job.ID, "entity_id", job.EntityID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: submit scraper job: %v", ErrDependencyUnavailable, err)
	}
	return nil
}

func (d *PoolDispatcher) Running() int {
	return d.pool.Running()
}

func (d *PoolDispatcher) Close() {
	d.pool.Release()
}

// QueueDispatcher publishes jobs to the internal scraper-run route through a JobQueue.
type QueueDispatcher struct {
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	logger       *logging.Logger
	now          func() time.Time
}

func NewQueueDispatcher(queue JobQueue, dispatchRepo jobscheduler.Repository, logger *logging.Logger) *QueueDispatcher {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueDispatcher{queue: queue, dispatchRepo: dispatchRepo, logger: logger, now: time.Now}
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (d *QueueDispatcher) Dispatch(ctx context.Context, job scraperjob.Job) error {
	now := d.now().UTC()
	dedupID := dedupKey(ScraperRunJobName, job.ID, now, time.Minute)
	payload := map[string]any{
		"job_id":      job.ID,
		"entity_id":   job.EntityID,
		"dispatch_id": dedupID,
	}
	event := jobscheduler.DispatchEvent{
		DispatchID: dedupID,
		JobName:    ScraperRunJobName,
		JobPath:    ScraperRunJobPath,
		JobID:      job.ID,
		EntityID:   job.EntityID,
		Payload:    payload,
		OccurredAt: now,
	}
	if err := d.queue.Enqueue(ctx, ScraperRunJobPath, payload, 0, dedupID); err != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		d.recordDispatchEvent(ctx, event)
		return fmt.Errorf("%w: enqueue scraper-run job=%s: %v", ErrDependencyUnavailable, job.ID, err)
	}
	event.Status = jobscheduler.StatusSent
	d.recordDispatchEvent(ctx, event)
	return nil
}

// RecordCompletion closes the dispatch event once the internal route has run the job.
func (d *QueueDispatcher) RecordCompletion(ctx context.Context, dispatchID, jobID, entityID string, runErr error) {
	event := jobscheduler.DispatchEvent{
		DispatchID: dispatchID,
		JobName:    ScraperRunJobName,
		JobPath:    ScraperRunJobPath,
		JobID:      jobID,
		EntityID:   entityID,
		Status:     jobscheduler.StatusCompleted,
	}
	if runErr != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = runErr.Error()
	}
	d.recordDispatchEvent(ctx, event)
}

func (d *QueueDispatcher) Events(ctx context.Context, jobID string) ([]jobscheduler.DispatchEvent, error) {
	if d.dispatchRepo == nil {
		return nil, nil
	}
	events, err := d.dispatchRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list dispatch events job=%s: %w", jobID, err)
	}
	return events, nil
}

func (d *QueueDispatcher) recordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	if d.dispatchRepo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now().UTC()
	}
	if err := d.dispatchRepo.UpsertEvent(ctx, event); err != nil {
		d.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}

func dedupKey(prefix, id string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	prefix = sanitizeDedupSegment(prefix)
	id = sanitizeDedupSegment(id)
	return prefix + "-" + id + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}
