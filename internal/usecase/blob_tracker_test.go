package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

func newBlobTracker() (*BlobTracker, *memory.BlobStore, *memory.BlobRepository, *time.Time) {
	store := memory.NewBlobStore()
	records := memory.NewBlobRepository()
	tracker := NewBlobTracker(store, records, &id.Sequence{Prefix: "blob-"}, logging.NewNop())
	clock := testNow
	tracker.now = func() time.Time { return clock }
	return tracker, store, records, &clock
}

func htmlInput(body string, status game.Status) StoreHTMLInput {
	return StoreHTMLInput{
		EntityID:     testEntityID,
		TournamentID: 4521,
		URL:          "https://kingsroom.example/tournament/4521",
		Body:         []byte(body),
		GameStatus:   status,
	}
}

func TestBlobTracker_StoreOrDedupVersions(t *testing.T) {
	t.Parallel()

	tracker, store, records, clock := newBlobTracker()
	ctx := context.Background()

	first, err := tracker.StoreOrDedup(ctx, htmlInput("<html>registering</html>", game.StatusRegistering))
	if err != nil {
		t.Fatalf("store first: %v", err)
	}
	wantKey := blob.HTMLKey(testEntityID, 4521, testNow, HashContent([]byte("<html>registering</html>")))
	if first.Deduplicated || first.VersionNumber != 1 || first.BlobKey != wantKey {
		t.Fatalf("unexpected first result: %+v", first)
	}

	*clock = testNow.Add(time.Minute)
	same, err := tracker.StoreOrDedup(ctx, htmlInput("<html>registering</html>", game.StatusRegistering))
	if err != nil {
		t.Fatalf("store duplicate: %v", err)
	}
	if !same.Deduplicated || same.RecordID != first.RecordID || same.BlobKey != first.BlobKey {
		t.Fatalf("expected deduplication, got %+v", same)
	}
	if store.Len() != 1 {
		t.Fatalf("duplicate bytes must not be written, store has %d blobs", store.Len())
	}

	*clock = testNow.Add(time.Hour)
	second, err := tracker.StoreOrDedup(ctx, htmlInput("<html>running</html>", game.StatusRunning))
	if err != nil {
		t.Fatalf("store changed: %v", err)
	}
	if second.Deduplicated || second.VersionNumber != 2 || second.RecordID != first.RecordID {
		t.Fatalf("unexpected second result: %+v", second)
	}
	if store.Len() != 2 {
		t.Fatalf("store has %d blobs, want 2", store.Len())
	}

	rec, ok, err := records.GetByID(ctx, first.RecordID)
	if err != nil || !ok {
		t.Fatalf("get record: ok=%v err=%v", ok, err)
	}
	if rec.TotalVersions != 2 || len(rec.PreviousVersions) != 1 || rec.PreviousVersions[0].BlobKey != first.BlobKey {
		t.Fatalf("unexpected version history: %+v", rec)
	}
	if rec.GameStatus != game.StatusRunning {
		t.Fatalf("head game status = %s", rec.GameStatus)
	}

	body, loaded, err := tracker.Load(ctx, first.RecordID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(body) != "<html>running</html>" || loaded.BlobKey != second.BlobKey {
		t.Fatalf("load returned %q from %s", body, loaded.BlobKey)
	}
}

func TestBlobTracker_ManualUploadKey(t *testing.T) {
	t.Parallel()

	tracker, _, _, _ := newBlobTracker()
	in := htmlInput("<html>uploaded</html>", game.StatusFinished)
	in.Source = blob.SourceManual

	res, err := tracker.StoreOrDedup(context.Background(), in)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !strings.HasPrefix(res.BlobKey, "entities/kings/manual-uploads/4521/") {
		t.Fatalf("unexpected manual key %s", res.BlobKey)
	}
}

func TestBlobTracker_RejectsMissingIdentity(t *testing.T) {
	t.Parallel()

	tracker, _, _, _ := newBlobTracker()
	in := htmlInput("<html></html>", game.StatusScheduled)
	in.TournamentID = 0

	if _, err := tracker.StoreOrDedup(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBlobTracker_MarkParsed(t *testing.T) {
	t.Parallel()

	tracker, _, records, clock := newBlobTracker()
	ctx := context.Background()

	res, err := tracker.StoreOrDedup(ctx, htmlInput("<html>finished</html>", game.StatusFinished))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	*clock = testNow.Add(time.Minute)
	if err := tracker.MarkParsed(ctx, res.RecordID, false); err != nil {
		t.Fatalf("mark parsed: %v", err)
	}
	rec, _, _ := records.GetByID(ctx, res.RecordID)
	if !rec.IsParsed || rec.ParseCount != 1 || rec.DataChangedAt != nil {
		t.Fatalf("unexpected record after unchanged parse: %+v", rec)
	}

	*clock = testNow.Add(2 * time.Minute)
	if err := tracker.MarkParsed(ctx, res.RecordID, true); err != nil {
		t.Fatalf("mark parsed again: %v", err)
	}
	rec, _, _ = records.GetByID(ctx, res.RecordID)
	if rec.ParseCount != 2 || rec.DataChangedAt == nil || !rec.DataChangedAt.Equal(testNow.Add(2*time.Minute)) {
		t.Fatalf("unexpected record after changed parse: %+v", rec)
	}

	if err := tracker.MarkParsed(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
