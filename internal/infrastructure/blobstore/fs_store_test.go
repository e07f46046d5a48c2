package blobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
)

func TestFSStorePutGet(t *testing.T) {
	t.Parallel()

	store := NewFSStore(t.TempDir())
	ctx := context.Background()
	key := "entities/e1/html/42/20240101T000000Z_tid42_abcdef01.html"
	meta := blob.Metadata{ContentHash: "abcdef0123", URL: "https://example.test/t?id=42", EntityID: "e1", StoredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	if err := store.Put(ctx, key, []byte("<html>one</html>"), meta); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected object to exist, ok=%v err=%v", ok, err)
	}

	body, gotMeta, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "<html>one</html>" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotMeta.ContentHash != meta.ContentHash || gotMeta.EntityID != "e1" || !gotMeta.StoredAt.Equal(meta.StoredAt) {
		t.Fatalf("unexpected metadata %+v", gotMeta)
	}
}

func TestFSStorePutDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	store := NewFSStore(t.TempDir())
	ctx := context.Background()
	key := "entities/e1/html/1/a.html"

	if err := store.Put(ctx, key, []byte("first"), blob.Metadata{}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.Put(ctx, key, []byte("second"), blob.Metadata{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	body, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "first" {
		t.Fatalf("expected first write to win, got %q", body)
	}
}

func TestFSStoreMissingAndInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "entities/none.html"); !errors.Is(err, blob.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	ok, err := store.Exists(ctx, "entities/none.html")
	if err != nil || ok {
		t.Fatalf("expected missing object, ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, "../escape.html", []byte("x"), blob.Metadata{}); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
