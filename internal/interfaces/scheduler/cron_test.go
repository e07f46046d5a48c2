package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type fakeRunner struct {
	events []usecase.ScheduledEvent
	result usecase.ScheduledRunResult
	err    error
	block  chan struct{}
}

func (f *fakeRunner) RunScheduled(_ context.Context, event usecase.ScheduledEvent) (usecase.ScheduledRunResult, error) {
	f.events = append(f.events, event)
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func TestNewCronScheduler_RejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler(Config{Spec: "not a schedule"}, &fakeRunner{}, logging.NewNop())
	if err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestNewCronScheduler_RequiresRunner(t *testing.T) {
	t.Parallel()

	if _, err := NewCronScheduler(Config{}, nil, logging.NewNop()); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestTrigger_SendsCronEvent(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: usecase.ScheduledRunResult{Started: []string{"job-1"}}}
	s, err := NewCronScheduler(Config{Spec: "@every 1h"}, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	result, err := s.Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(result.Started) != 1 {
		t.Fatalf("expected one started job, got %+v", result)
	}
	if len(runner.events) != 1 {
		t.Fatalf("expected one event, got %d", len(runner.events))
	}
	if runner.events[0].Source != "cron" || !runner.events[0].FiredAt.Equal(fixed) {
		t.Fatalf("unexpected event %+v", runner.events[0])
	}
}

func TestTrigger_PropagatesRunnerError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("boom")}
	s, err := NewCronScheduler(Config{}, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if _, err := s.Trigger(context.Background()); err == nil {
		t.Fatalf("expected runner error")
	}
}

func TestTrigger_SkipsOverlappingRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{block: make(chan struct{})}
	s, err := NewCronScheduler(Config{}, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Trigger(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first trigger never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("overlapping trigger: %v", err)
	}
	close(runner.block)
	<-done

	if len(runner.events) != 1 {
		t.Fatalf("expected overlapping trigger to be skipped, got %d events", len(runner.events))
	}
}

func TestStop_ReturnsWhenIdle(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler(Config{}, &fakeRunner{}, logging.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
