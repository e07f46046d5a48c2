package blob

import (
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

func TestHTMLKeyLayout(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 4, 19, 5, 6, 0, time.UTC)
	got := HTMLKey("e1", 4521, at, "abcdef0123456789")
	want := "entities/e1/html/4521/20240304T190506Z_tid4521_abcdef01.html"
	if got != want {
		t.Fatalf("unexpected key:\nwant %s\ngot  %s", want, got)
	}

	manual := ManualUploadKey("e1", 4521, at, "abc")
	if manual != "entities/e1/manual-uploads/4521/20240304T190506Z_tid4521_abc.html" {
		t.Fatalf("unexpected manual key %s", manual)
	}
}

func TestSupersedeKeepsNewestFirst(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Record{BlobKey: "k1", ContentHash: "h1", VersionNumber: 1, TotalVersions: 1, StoredAt: t0, IsParsed: true}
	r.Supersede("k2", "h2", 10, game.StatusRunning, t0.Add(time.Hour))
	r.Supersede("k3", "h3", 12, game.StatusFinished, t0.Add(2*time.Hour))

	if r.VersionNumber != 3 || r.TotalVersions != 3 || r.BlobKey != "k3" {
		t.Fatalf("unexpected head: %+v", r)
	}
	if len(r.PreviousVersions) != 2 || r.PreviousVersions[0].BlobKey != "k2" || r.PreviousVersions[1].BlobKey != "k1" {
		t.Fatalf("unexpected history: %+v", r.PreviousVersions)
	}
	if r.IsParsed {
		t.Fatalf("new head must be unparsed")
	}
}
