package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSpec    = "0 */6 * * *"
	defaultTimeout = 2 * time.Minute
	eventSource    = "cron"
)

type scheduledRunner interface {
	RunScheduled(ctx context.Context, event usecase.ScheduledEvent) (usecase.ScheduledRunResult, error)
}

type Config struct {
	Spec     string
	Timeout  time.Duration
	Location *time.Location
}

// CronScheduler starts one bulk scrape per active entity on every tick.
// Ticks that land while a previous tick is still running are skipped.
type CronScheduler struct {
	cron    *cron.Cron
	runner  scheduledRunner
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

func NewCronScheduler(cfg Config, runner scheduledRunner, logger *logging.Logger) (*CronScheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("scheduled runner is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	spec := strings.TrimSpace(cfg.Spec)
	if spec == "" {
		spec = DefaultSpec
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	s := &CronScheduler{
		cron:    cron.New(cron.WithLocation(location)),
		runner:  runner,
		timeout: timeout,
		logger:  logger.Named("scheduler"),
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *CronScheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop waits for an in-flight tick until ctx expires.
func (s *CronScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CronScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.Trigger(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled scrape failed", "error", err)
	}
}

// Trigger runs one scheduled pass immediately.
func (s *CronScheduler) Trigger(ctx context.Context) (usecase.ScheduledRunResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "scheduled scrape skipped, previous run still active")
		return usecase.ScheduledRunResult{}, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	firedAt := s.now().UTC()
	result, err := s.runner.RunScheduled(ctx, usecase.ScheduledEvent{Source: eventSource, FiredAt: firedAt})
	if err != nil {
		return result, err
	}
	s.logger.InfoContext(ctx, "scheduled scrape dispatched",
		"fired_at", firedAt,
		"started", len(result.Started),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}
