package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/jobscheduler"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
)

type ScraperJobRepository struct {
	mu    sync.RWMutex
	items map[string]scraperjob.Job
}

func NewScraperJobRepository() *ScraperJobRepository {
	return &ScraperJobRepository{items: make(map[string]scraperjob.Job)}
}

func (r *ScraperJobRepository) Create(_ context.Context, j scraperjob.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[j.ID] = cloneJob(j)
	return nil
}

func (r *ScraperJobRepository) GetByID(_ context.Context, id string) (scraperjob.Job, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.items[id]
	return cloneJob(j), ok, nil
}

func (r *ScraperJobRepository) Save(_ context.Context, j scraperjob.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.items[j.ID]; ok && current.Status.IsTerminal() {
		// keep the terminal status written by whoever stopped the job, but accept progress
		j.Status = current.Status
		j.StopReason = current.StopReason
		j.EndTime = current.EndTime
		j.DurationSeconds = current.DurationSeconds
	}
	r.items[j.ID] = cloneJob(j)
	return nil
}

func (r *ScraperJobRepository) TransitionStatus(_ context.Context, id string, from []scraperjob.Status, next scraperjob.Status, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok || !slices.Contains(from, j.Status) {
		return false, nil
	}
	if next.IsTerminal() {
		j.Finish(next, reason, at)
	} else {
		j.Status = next
		j.UpdatedAt = at
	}
	r.items[id] = j
	return true, nil
}

func (r *ScraperJobRepository) List(_ context.Context, filter scraperjob.Filter) ([]scraperjob.Job, error) {
	r.mu.RLock()
	out := make([]scraperjob.Job, 0)
	for _, j := range r.items {
		if filter.EntityID != "" && j.EntityID != filter.EntityID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Since != nil && j.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, cloneJob(j))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID > out[k].ID
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (r *ScraperJobRepository) HasActive(_ context.Context, entityID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, j := range r.items {
		if j.EntityID == entityID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func cloneJob(j scraperjob.Job) scraperjob.Job {
	j.GapIDs = slices.Clone(j.GapIDs)
	return j
}

type ScraperStateRepository struct {
	mu    sync.RWMutex
	items map[string]scraperjob.State
}

func NewScraperStateRepository() *ScraperStateRepository {
	return &ScraperStateRepository{items: make(map[string]scraperjob.State)}
}

func (r *ScraperStateRepository) Get(_ context.Context, entityID string) (scraperjob.State, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[entityID]
	s.KnownGapRanges = slices.Clone(s.KnownGapRanges)
	return s, ok, nil
}

func (r *ScraperStateRepository) Upsert(_ context.Context, s scraperjob.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.KnownGapRanges = slices.Clone(s.KnownGapRanges)
	r.items[s.EntityID] = s
	return nil
}

type DispatchEventRepository struct {
	mu     sync.RWMutex
	events map[string]jobscheduler.DispatchEvent
}

func NewDispatchEventRepository() *DispatchEventRepository {
	return &DispatchEventRepository{events: make(map[string]jobscheduler.DispatchEvent)}
}

func (r *DispatchEventRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.DispatchID] = event
	return nil
}

func (r *DispatchEventRepository) ListByJob(_ context.Context, jobID string) ([]jobscheduler.DispatchEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.DispatchEvent, 0)
	for _, e := range r.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
