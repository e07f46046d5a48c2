package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

const testJobToken = "job-token"

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []scraperjob.Job
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job scraperjob.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.NewNop()
	entities := memory.NewEntityRepository(memory.SeedEntities())
	venues := memory.NewVenueRepository(memory.SeedVenues())
	seriesRepo := memory.NewSeriesRepository(memory.SeedSeriesTitles(), nil)
	games := memory.NewGameRepository()
	recurringRepo := memory.NewRecurringRepository()
	urls := memory.NewScrapeURLRepository()
	attempts := memory.NewScrapeAttemptRepository()

	urlSvc := usecase.NewScrapeURLService(urls, attempts, &id.Sequence{Prefix: "url-"}, logger)
	saver := usecase.NewGameSaver(usecase.GameSaverDeps{
		Games:         games,
		Entries:       memory.NewPlayerEntryRepository(),
		Snapshots:     memory.NewSnapshotRepository(),
		SeriesRepo:    seriesRepo,
		RecurringRepo: recurringRepo,
		Queue:         memory.NewPlayerQueue(),
		Attempts:      urlSvc,
		Venues:        usecase.NewVenueResolver(venues, entities, logger),
		Series:        usecase.NewSeriesResolver(seriesRepo, seriesRepo, &id.Sequence{Prefix: "series-"}, logger),
		Recurring:     usecase.NewRecurringResolver(recurringRepo, usecase.RecurringThresholds{}, logger),
		IDGen:         &id.Sequence{Prefix: "game-"},
	}, usecase.GameSaverConfig{SeriesAutoCreate: true}, logger)

	jobs := usecase.NewScraperJobService(
		memory.NewScraperJobRepository(),
		entities,
		attempts,
		&recordingDispatcher{},
		&id.Sequence{Prefix: "job-"},
		0,
		logger,
	)

	handler := NewHandler(Services{
		Saver:     saver,
		Jobs:      jobs,
		URLs:      urlSvc,
		Gaps:      usecase.NewGapTracker(games, memory.NewScraperStateRepository(), usecase.GapTrackerConfig{}, logger),
		Admin:     usecase.NewAdminService(games, recurringRepo, usecase.RecurringThresholds{}, logger),
		Recurring: usecase.NewRecurringService(games, recurringRepo, venues, &id.Sequence{Prefix: "rg-"}, 1, logger),
	}, logger)
	return NewRouter(handler, logger, nil, testJobToken)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	code, body := doRequest(t, newTestRouter(t), http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	data, _ := body["data"].(map[string]any)
	if data["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSaveGame_ValidationFailureCarriesResult(t *testing.T) {
	t.Parallel()

	code, body := doRequest(t, newTestRouter(t), http.MethodPost, "/v1/games/save",
		`{"source":{"type":"SCRAPE"},"game":{"tournamentId":12}}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected save result in data, got %v", body)
	}
	if data["action"] != string(usecase.SaveValidationFailed) || data["success"] != false {
		t.Fatalf("unexpected save result %v", data)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("expected error object alongside the result")
	}
}

func TestSaveGame_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	code, _ := doRequest(t, newTestRouter(t), http.MethodPost, "/v1/games/save", `{"bogus":true}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestScraperJobLifecycle(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	code, body := doRequest(t, router, http.MethodPost, "/v1/scraper/jobs",
		`{"entityId":"`+memory.SeedEntityID+`","mode":"bulk","bulkCount":5}`, nil)
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%v", code, body)
	}
	data, _ := body["data"].(map[string]any)
	jobID, _ := data["id"].(string)
	if jobID == "" || data["status"] != string(scraperjob.StatusRunning) {
		t.Fatalf("unexpected job %v", data)
	}

	code, _ = doRequest(t, router, http.MethodPost, "/v1/scraper/jobs",
		`{"entityId":"`+memory.SeedEntityID+`","mode":"bulk"}`, nil)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for second active job, got %d", code)
	}

	code, body = doRequest(t, router, http.MethodPost, "/v1/scraper/jobs/"+jobID+"/cancel", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d body=%v", code, body)
	}
	data, _ = body["data"].(map[string]any)
	if data["status"] != string(scraperjob.StatusStoppedManual) {
		t.Fatalf("expected STOPPED_MANUAL, got %v", data["status"])
	}

	code, _ = doRequest(t, router, http.MethodGet, "/v1/scraper/jobs/missing", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestStartScraperJob_InvalidMode(t *testing.T) {
	t.Parallel()

	code, _ := doRequest(t, newTestRouter(t), http.MethodPost, "/v1/scraper/jobs", `{"entityId":"e1","mode":"everything"}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestTournamentIDBounds_EmptyEntity(t *testing.T) {
	t.Parallel()

	code, body := doRequest(t, newTestRouter(t), http.MethodGet, "/v1/entities/"+memory.SeedEntityID+"/tournament-ids/bounds", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	data, _ := body["data"].(map[string]any)
	if data["lowestId"] != nil || data["totalGames"] != float64(0) {
		t.Fatalf("unexpected bounds %v", data)
	}
}

func TestListExistingTournamentIDs_BadQuery(t *testing.T) {
	t.Parallel()

	code, _ := doRequest(t, newTestRouter(t), http.MethodGet, "/v1/entities/e1/tournament-ids?startId=abc", "", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestModifyScrapeURLStatus_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	code, _ := doRequest(t, newTestRouter(t), http.MethodPatch, "/v1/scrape-urls/status",
		`{"url":"https://kingsroom.com.au/tournament/?id=1","status":"PAUSED"}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestRecurringAdmin_RequiresScope(t *testing.T) {
	t.Parallel()

	code, _ := doRequest(t, newTestRouter(t), http.MethodPost, "/v1/recurring/cleanup-orphans", `{"preview":true}`, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestInternalScheduledRoute(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	code, _ := doRequest(t, router, http.MethodPost, "/v1/internal/jobs/scheduled", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	code, body := doRequest(t, router, http.MethodPost, "/v1/internal/jobs/scheduled", "",
		map[string]string{internalJobTokenHeader: testJobToken})
	if code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%v", code, body)
	}
	data, _ := body["data"].(map[string]any)
	started, _ := data["started"].([]any)
	if len(started) != 1 {
		t.Fatalf("expected one started entity, got %v", data)
	}
}
