package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
)

type BlobRepository struct {
	mu    sync.RWMutex
	items map[string]blob.Record
}

func NewBlobRepository(records ...blob.Record) *BlobRepository {
	items := make(map[string]blob.Record, len(records))
	for _, rec := range records {
		items[rec.ID] = rec
	}
	return &BlobRepository{items: items}
}

func (r *BlobRepository) find(match func(blob.Record) bool) (blob.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.items {
		if match(rec) {
			return rec, true
		}
	}
	return blob.Record{}, false
}

func (r *BlobRepository) FindByEntityTournament(_ context.Context, entityID string, tournamentID int64) (blob.Record, bool, error) {
	rec, ok := r.find(func(rec blob.Record) bool {
		return rec.EntityID == entityID && rec.TournamentID == tournamentID
	})
	return rec, ok, nil
}

func (r *BlobRepository) FindByBlobKey(_ context.Context, blobKey string) (blob.Record, bool, error) {
	rec, ok := r.find(func(rec blob.Record) bool { return rec.BlobKey == blobKey })
	return rec, ok, nil
}

func (r *BlobRepository) FindByURL(_ context.Context, url string) (blob.Record, bool, error) {
	rec, ok := r.find(func(rec blob.Record) bool { return rec.URL == url })
	return rec, ok, nil
}

func (r *BlobRepository) GetByID(_ context.Context, id string) (blob.Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[id]
	return rec, ok, nil
}

func (r *BlobRepository) Create(_ context.Context, rec blob.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[rec.ID]; ok {
		return fmt.Errorf("create blob record id=%s: already exists", rec.ID)
	}
	r.items[rec.ID] = rec
	return nil
}

func (r *BlobRepository) Update(_ context.Context, rec blob.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[rec.ID]; !ok {
		return fmt.Errorf("update blob record id=%s: not found", rec.ID)
	}
	r.items[rec.ID] = rec
	return nil
}

type storedObject struct {
	body []byte
	meta blob.Metadata
}

// BlobStore is an in-memory blob.Store; Put keeps the first write of a key.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]storedObject)}
}

func (s *BlobStore) Put(_ context.Context, key string, body []byte, meta blob.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; ok {
		return nil
	}
	s.objects[key] = storedObject{body: append([]byte(nil), body...), meta: meta}
	return nil
}

func (s *BlobStore) Get(_ context.Context, key string) ([]byte, blob.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, blob.Metadata{}, fmt.Errorf("get %s: %w", key, blob.ErrObjectNotFound)
	}
	return append([]byte(nil), obj.body...), obj.meta, nil
}

func (s *BlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok, nil
}

func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}
