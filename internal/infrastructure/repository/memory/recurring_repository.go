package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
)

type RecurringRepository struct {
	mu    sync.RWMutex
	items map[string]recurring.RecurringGame
}

func NewRecurringRepository(templates ...recurring.RecurringGame) *RecurringRepository {
	items := make(map[string]recurring.RecurringGame, len(templates))
	for _, t := range templates {
		items[t.ID] = t
	}
	return &RecurringRepository{items: items}
}

func (r *RecurringRepository) GetByID(_ context.Context, id string) (recurring.RecurringGame, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	return t, ok, nil
}

func (r *RecurringRepository) ListByVenue(_ context.Context, venueID string) ([]recurring.RecurringGame, error) {
	return r.filter(func(t recurring.RecurringGame) bool { return t.VenueID == venueID }), nil
}

func (r *RecurringRepository) ListByEntity(_ context.Context, entityID string) ([]recurring.RecurringGame, error) {
	return r.filter(func(t recurring.RecurringGame) bool { return t.EntityID == entityID }), nil
}

func (r *RecurringRepository) filter(keep func(recurring.RecurringGame) bool) []recurring.RecurringGame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]recurring.RecurringGame, 0)
	for _, t := range r.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *RecurringRepository) Create(_ context.Context, t recurring.RecurringGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[t.ID]; ok {
		return fmt.Errorf("create recurring game id=%s: already exists", t.ID)
	}
	r.items[t.ID] = t
	return nil
}

func (r *RecurringRepository) Update(_ context.Context, t recurring.RecurringGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[t.ID]; !ok {
		return fmt.Errorf("update recurring game id=%s: not found", t.ID)
	}
	r.items[t.ID] = t
	return nil
}

func (r *RecurringRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}

func (r *RecurringRepository) RecordOccurrence(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return fmt.Errorf("record occurrence recurring game id=%s: not found", id)
	}
	t.RecordOccurrence(at)
	t.UpdatedAt = at
	r.items[id] = t
	return nil
}
