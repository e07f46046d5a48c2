package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
)

type EntityRepository struct {
	mu     sync.RWMutex
	items  map[string]entity.Entity
	orders []string
}

func NewEntityRepository(entities []entity.Entity) *EntityRepository {
	items := make(map[string]entity.Entity, len(entities))
	orders := make([]string, 0, len(entities))
	for _, e := range entities {
		items[e.ID] = e
		orders = append(orders, e.ID)
	}
	return &EntityRepository{items: items, orders: orders}
}

func (r *EntityRepository) ListActive(_ context.Context) ([]entity.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Entity, 0, len(r.orders))
	for _, id := range r.orders {
		if e := r.items[id]; e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *EntityRepository) GetByID(_ context.Context, entityID string) (entity.Entity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[entityID]
	return e, ok, nil
}

type VenueRepository struct {
	mu       sync.RWMutex
	byEntity map[string][]venue.Venue
}

func NewVenueRepository(venues []venue.Venue) *VenueRepository {
	byEntity := make(map[string][]venue.Venue)
	for _, v := range venues {
		byEntity[v.EntityID] = append(byEntity[v.EntityID], v)
	}
	return &VenueRepository{byEntity: byEntity}
}

func (r *VenueRepository) ListByEntity(_ context.Context, entityID string) ([]venue.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.byEntity[entityID]
	out := make([]venue.Venue, 0, len(items))
	out = append(out, items...)
	return out, nil
}

func (r *VenueRepository) GetByID(_ context.Context, entityID, venueID string) (venue.Venue, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.byEntity[entityID] {
		if v.ID == venueID {
			return v, true, nil
		}
	}
	return venue.Venue{}, false, nil
}

type SeriesRepository struct {
	mu     sync.RWMutex
	titles map[string]series.Title
	items  map[string]series.Series
}

func NewSeriesRepository(titles []series.Title, instances []series.Series) *SeriesRepository {
	r := &SeriesRepository{
		titles: make(map[string]series.Title, len(titles)),
		items:  make(map[string]series.Series, len(instances)),
	}
	for _, t := range titles {
		r.titles[t.ID] = t
	}
	for _, s := range instances {
		r.items[s.ID] = s
	}
	return r
}

func (r *SeriesRepository) ListTitles(_ context.Context) ([]series.Title, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]series.Title, 0, len(r.titles))
	for _, t := range r.titles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SeriesRepository) GetTitleByID(_ context.Context, titleID string) (series.Title, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.titles[titleID]
	return t, ok, nil
}

func (r *SeriesRepository) GetByID(_ context.Context, seriesID string) (series.Series, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[seriesID]
	return s, ok, nil
}

func (r *SeriesRepository) ListByTitle(_ context.Context, titleID string) ([]series.Series, error) {
	return r.filter(func(s series.Series) bool { return s.TitleID == titleID }), nil
}

func (r *SeriesRepository) ListByYear(_ context.Context, year int) ([]series.Series, error) {
	return r.filter(func(s series.Series) bool { return s.Year == year }), nil
}

func (r *SeriesRepository) filter(keep func(series.Series) bool) []series.Series {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]series.Series, 0)
	for _, s := range r.items {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *SeriesRepository) Create(_ context.Context, s series.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[s.ID] = s
	return nil
}

func (r *SeriesRepository) ExpandRange(_ context.Context, seriesID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[seriesID]
	if !ok {
		return nil
	}
	at = at.UTC()
	if s.StartDate == nil || at.Before(*s.StartDate) {
		start := at
		s.StartDate = &start
	}
	if s.EndDate == nil || at.After(*s.EndDate) {
		end := at
		s.EndDate = &end
	}
	s.EventCount++
	s.UpdatedAt = at
	r.items[seriesID] = s
	return nil
}
