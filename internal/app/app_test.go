package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/config"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		AppEnv:                 config.EnvDev,
		ServiceName:            "kingsroom-ingest",
		HTTPAddr:               ":0",
		StorageDriver:          config.StorageMemory,
		BlobStorePath:          t.TempDir(),
		PlayerBatchSize:        25,
		PlayerEnqueueParallel:  2,
		ScraperDispatchMode:    config.DispatchLocal,
		ScraperWorkers:         1,
		ScraperJobTimeout:      time.Minute,
		ScraperBulkCount:       5,
		ScraperTimezone:        time.UTC,
		ScraperSchedule:        "@every 1h",
		ScraperScheduleTimeout: time.Second,
		GapCacheTTL:            time.Minute,
		SeriesAutoCreate:       true,
		RecurringWorkers:       1,
		CacheEnabled:           true,
		CacheTTL:               time.Minute,
		CORSAllowedOrigins:     []string{"*"},
		InternalJobToken:       "job-token",
	}
}

func TestNew_MemoryStorageServesHealthz(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	if a.Scheduler != nil {
		t.Fatalf("expected scheduler to stay off unless enabled")
	}

	rec := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNew_SchedulerEnabled(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.ScraperScheduleEnabled = true

	a, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	if a.Scheduler == nil {
		t.Fatalf("expected scheduler when enabled")
	}
	a.Scheduler.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNew_QStashDispatchNeedsPublisher(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.ScraperDispatchMode = config.DispatchQStash

	_, err := New(context.Background(), cfg, logging.NewNop())
	if err == nil || !strings.Contains(err.Error(), "QSTASH_TOKEN") {
		t.Fatalf("expected qstash token error, got %v", err)
	}
}

func TestPostgresTables_FillsDefaults(t *testing.T) {
	t.Parallel()

	got := postgresTables(config.Tables{Games: "game_v2"})
	if got.Games != "game_v2" {
		t.Fatalf("expected override kept, got %q", got.Games)
	}
	if got.Venues != "venues" || got.JobDispatches != "job_dispatches" {
		t.Fatalf("expected defaults filled, got %+v", got)
	}
}
