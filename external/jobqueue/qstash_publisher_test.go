package jobqueue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/resilience"
)

type capturedRequest struct {
	path    string
	headers http.Header
	body    string
}

func newQStashServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{path: r.URL.Path, headers: r.Header.Clone(), body: string(raw)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestPublisher(baseURL string, breaker resilience.CircuitBreakerConfig) *QStashPublisher {
	return NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          baseURL,
		Token:            "secret",
		TargetBaseURL:    "https://ingest.example",
		Retries:          3,
		InternalJobToken: "job-token",
		Timeout:          time.Second,
		CircuitBreaker:   breaker,
	}, logging.NewNop())
}

func TestQStashPublisher_EnqueueSetsHeaders(t *testing.T) {
	t.Parallel()

	srv, reqs := newQStashServer(t, http.StatusAccepted)
	p := newTestPublisher(srv.URL, resilience.CircuitBreakerConfig{})

	err := p.Enqueue(context.Background(), "v1/internal/jobs/scraper-run", map[string]any{"job_id": "j-1"}, 90*time.Second, "scraper-run-j-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(*reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(*reqs))
	}
	got := (*reqs)[0]
	if got.path != "/v2/publish/https://ingest.example/v1/internal/jobs/scraper-run" {
		t.Fatalf("unexpected publish path %s", got.path)
	}
	if got.headers.Get("Authorization") != "Bearer secret" {
		t.Fatalf("missing bearer token")
	}
	if got.headers.Get("Upstash-Delay") != "90s" || got.headers.Get("Upstash-Retries") != "3" {
		t.Fatalf("unexpected delay/retries headers: %v", got.headers)
	}
	if got.headers.Get("Upstash-Deduplication-Id") != "scraper-run-j-1" {
		t.Fatalf("missing dedup header")
	}
	if got.headers.Get("Upstash-Forward-X-Internal-Job-Token") != "job-token" {
		t.Fatalf("internal token must be forwarded")
	}
	if !strings.Contains(got.body, `"job_id":"j-1"`) {
		t.Fatalf("unexpected body %s", got.body)
	}
}

func TestQStashPublisher_RejectsEmptyPath(t *testing.T) {
	t.Parallel()

	p := newTestPublisher("https://qstash.example", resilience.CircuitBreakerConfig{})
	if err := p.Enqueue(context.Background(), " / ", nil, 0, ""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestQStashPublisher_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	unavailable, _ := newQStashServer(t, http.StatusServiceUnavailable)
	err := newTestPublisher(unavailable.URL, resilience.CircuitBreakerConfig{}).Enqueue(context.Background(), "/x", nil, 0, "")
	if !IsTransient(err) {
		t.Fatalf("503 must be transient, got %v", err)
	}

	rejected, _ := newQStashServer(t, http.StatusBadRequest)
	err = newTestPublisher(rejected.URL, resilience.CircuitBreakerConfig{}).Enqueue(context.Background(), "/x", nil, 0, "")
	if err == nil || IsTransient(err) {
		t.Fatalf("400 must be a permanent failure, got %v", err)
	}
}

func TestQStashPublisher_CircuitOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	srv, reqs := newQStashServer(t, http.StatusBadGateway)
	p := newTestPublisher(srv.URL, resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		HalfOpenMaxReq:   1,
	})

	for i := 0; i < 2; i++ {
		if err := p.Enqueue(context.Background(), "/x", nil, 0, ""); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}
	if err := p.Enqueue(context.Background(), "/x", nil, 0, ""); err == nil {
		t.Fatalf("expected circuit rejection")
	}
	if len(*reqs) != 2 {
		t.Fatalf("open circuit must not reach the server, got %d requests", len(*reqs))
	}
}

func TestPlayerQueue_EnqueueUsesOrderedQueue(t *testing.T) {
	t.Parallel()

	srv, reqs := newQStashServer(t, http.StatusOK)
	q := NewPlayerQueue(newTestPublisher(srv.URL, resilience.CircuitBreakerConfig{}), PlayerQueueConfig{
		ProcessorURL: "https://players.example/process",
	})

	msg := game.PlayerBatchMessage{
		Game:            game.PlayerBatchGame{ID: "g-1"},
		Players:         game.PlayerList{TotalUniquePlayers: 2, AllPlayers: []game.PlayerResult{{Name: "A", Rank: 1}, {Name: "B", Rank: 2}}},
		Metadata:        game.PlayerBatchMetadata{BatchIndex: 1, BatchCount: 2},
		GroupID:         "g-1",
		DeduplicationID: "g-1-batch1-1700000000000",
	}
	if err := q.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got := (*reqs)[0]
	if got.path != "/v2/enqueue/player-processor/https://players.example/process" {
		t.Fatalf("unexpected enqueue path %s", got.path)
	}
	if got.headers.Get("Upstash-Deduplication-Id") != msg.DeduplicationID {
		t.Fatalf("dedup id not propagated")
	}
	if got.headers.Get("Upstash-Forward-X-Message-Group-Id") != "g-1" {
		t.Fatalf("group id not forwarded")
	}
	if !strings.Contains(got.body, `"batchIndex":1`) || strings.Contains(got.body, "DeduplicationID") {
		t.Fatalf("unexpected body %s", got.body)
	}
}

func TestPlayerQueue_PartitionIsStablePerGame(t *testing.T) {
	t.Parallel()

	q := NewPlayerQueue(nil, PlayerQueueConfig{ProcessorURL: "https://players.example", Partitions: 4})
	first := q.QueueFor("game-42")
	for i := 0; i < 10; i++ {
		if q.QueueFor("game-42") != first {
			t.Fatalf("partition changed for the same game")
		}
	}
	if !strings.HasPrefix(first, "player-processor-") {
		t.Fatalf("unexpected queue name %s", first)
	}
}

func TestPlayerQueue_RequiresConfiguration(t *testing.T) {
	t.Parallel()

	q := NewPlayerQueue(nil, PlayerQueueConfig{})
	if err := q.Enqueue(context.Background(), game.PlayerBatchMessage{GroupID: "g"}); err == nil {
		t.Fatalf("expected error without processor url")
	}
}
