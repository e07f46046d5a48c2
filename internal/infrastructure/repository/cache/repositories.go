package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	basecache "github.com/riskibarqy/kingsroom-ingest/internal/platform/cache"
)

type EntityRepository struct {
	next  entity.Repository
	cache *basecache.Store
}

func NewEntityRepository(next entity.Repository, cache *basecache.Store) *EntityRepository {
	return &EntityRepository{next: next, cache: cache}
}

func (r *EntityRepository) ListActive(ctx context.Context) ([]entity.Entity, error) {
	v, err := r.cache.GetOrLoad(ctx, "entity:list:active", func(ctx context.Context) (any, error) {
		items, err := r.next.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return append([]entity.Entity(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]entity.Entity)
	return append([]entity.Entity(nil), items...), nil
}

func (r *EntityRepository) GetByID(ctx context.Context, entityID string) (entity.Entity, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "entity:id:"+entityID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, entityID)
		if err != nil {
			return nil, err
		}
		return cachedEntityByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return entity.Entity{}, false, err
	}

	cached, _ := v.(cachedEntityByID)
	return cached.value, cached.exists, nil
}

type cachedEntityByID struct {
	value  entity.Entity
	exists bool
}

type VenueRepository struct {
	next  venue.Repository
	cache *basecache.Store
}

func NewVenueRepository(next venue.Repository, cache *basecache.Store) *VenueRepository {
	return &VenueRepository{next: next, cache: cache}
}

func (r *VenueRepository) ListByEntity(ctx context.Context, entityID string) ([]venue.Venue, error) {
	v, err := r.cache.GetOrLoad(ctx, "venue:list:"+entityID, func(ctx context.Context) (any, error) {
		items, err := r.next.ListByEntity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		return append([]venue.Venue(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]venue.Venue)
	return append([]venue.Venue(nil), items...), nil
}

func (r *VenueRepository) GetByID(ctx context.Context, entityID, venueID string) (venue.Venue, bool, error) {
	key := "venue:id:" + entityID + ":" + venueID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, entityID, venueID)
		if err != nil {
			return nil, err
		}
		return cachedVenueByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return venue.Venue{}, false, err
	}

	cached, _ := v.(cachedVenueByID)
	return cached.value, cached.exists, nil
}

type cachedVenueByID struct {
	value  venue.Venue
	exists bool
}

type SeriesTitleRepository struct {
	next  series.TitleRepository
	cache *basecache.Store
}

func NewSeriesTitleRepository(next series.TitleRepository, cache *basecache.Store) *SeriesTitleRepository {
	return &SeriesTitleRepository{next: next, cache: cache}
}

func (r *SeriesTitleRepository) ListTitles(ctx context.Context) ([]series.Title, error) {
	v, err := r.cache.GetOrLoad(ctx, "series-title:list", func(ctx context.Context) (any, error) {
		items, err := r.next.ListTitles(ctx)
		if err != nil {
			return nil, err
		}
		return append([]series.Title(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]series.Title)
	return append([]series.Title(nil), items...), nil
}

func (r *SeriesTitleRepository) GetTitleByID(ctx context.Context, titleID string) (series.Title, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "series-title:id:"+titleID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetTitleByID(ctx, titleID)
		if err != nil {
			return nil, err
		}
		return cachedTitleByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return series.Title{}, false, err
	}

	cached, _ := v.(cachedTitleByID)
	return cached.value, cached.exists, nil
}

type cachedTitleByID struct {
	value  series.Title
	exists bool
}

// RecurringRepository caches template lookups; every write drops the recurring keyspace
// because a template can appear under both its venue and its entity.
type RecurringRepository struct {
	next  recurring.Repository
	cache *basecache.Store
}

func NewRecurringRepository(next recurring.Repository, cache *basecache.Store) *RecurringRepository {
	return &RecurringRepository{next: next, cache: cache}
}

func (r *RecurringRepository) GetByID(ctx context.Context, id string) (recurring.RecurringGame, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "recurring:id:"+id, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return cachedRecurringByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return recurring.RecurringGame{}, false, err
	}

	cached, _ := v.(cachedRecurringByID)
	return cached.value, cached.exists, nil
}

func (r *RecurringRepository) ListByVenue(ctx context.Context, venueID string) ([]recurring.RecurringGame, error) {
	return r.list(ctx, "recurring:list:venue:"+venueID, func(ctx context.Context) ([]recurring.RecurringGame, error) {
		return r.next.ListByVenue(ctx, venueID)
	})
}

func (r *RecurringRepository) ListByEntity(ctx context.Context, entityID string) ([]recurring.RecurringGame, error) {
	return r.list(ctx, "recurring:list:entity:"+entityID, func(ctx context.Context) ([]recurring.RecurringGame, error) {
		return r.next.ListByEntity(ctx, entityID)
	})
}

func (r *RecurringRepository) list(ctx context.Context, key string, load func(context.Context) ([]recurring.RecurringGame, error)) ([]recurring.RecurringGame, error) {
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return append([]recurring.RecurringGame(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]recurring.RecurringGame)
	return append([]recurring.RecurringGame(nil), items...), nil
}

func (r *RecurringRepository) Create(ctx context.Context, item recurring.RecurringGame) error {
	if err := r.next.Create(ctx, item); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "recurring:")
	return nil
}

func (r *RecurringRepository) Update(ctx context.Context, item recurring.RecurringGame) error {
	if err := r.next.Update(ctx, item); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "recurring:")
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "recurring:")
	return nil
}

func (r *RecurringRepository) RecordOccurrence(ctx context.Context, id string, at time.Time) error {
	if err := r.next.RecordOccurrence(ctx, id, at); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "recurring:")
	return nil
}

type cachedRecurringByID struct {
	value  recurring.RecurringGame
	exists bool
}
