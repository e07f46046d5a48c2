package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
)

type ScrapeURLRepository struct {
	mu    sync.RWMutex
	items map[string]scrapeurl.ScrapeURL
}

func NewScrapeURLRepository(urls ...scrapeurl.ScrapeURL) *ScrapeURLRepository {
	items := make(map[string]scrapeurl.ScrapeURL, len(urls))
	for _, u := range urls {
		items[u.URL] = u
	}
	return &ScrapeURLRepository{items: items}
}

func (r *ScrapeURLRepository) GetByURL(_ context.Context, url string) (scrapeurl.ScrapeURL, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[url]
	return u, ok, nil
}

func (r *ScrapeURLRepository) GetByEntityTournament(_ context.Context, entityID string, tournamentID int64) (scrapeurl.ScrapeURL, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.EntityID == entityID && u.TournamentID == tournamentID {
			return u, true, nil
		}
	}
	return scrapeurl.ScrapeURL{}, false, nil
}

func (r *ScrapeURLRepository) Upsert(_ context.Context, u scrapeurl.ScrapeURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[u.URL] = u
	return nil
}

func (r *ScrapeURLRepository) ListByEntity(_ context.Context, entityID string, filter scrapeurl.Filter) ([]scrapeurl.ScrapeURL, error) {
	filter.EntityIDs = []string{entityID}
	return r.match(filter), nil
}

func (r *ScrapeURLRepository) Scan(_ context.Context, filter scrapeurl.Filter) ([]scrapeurl.ScrapeURL, error) {
	return r.match(filter), nil
}

func (r *ScrapeURLRepository) match(filter scrapeurl.Filter) []scrapeurl.ScrapeURL {
	out := r.sorted(func(u scrapeurl.ScrapeURL) bool {
		if len(filter.EntityIDs) > 0 && !slices.Contains(filter.EntityIDs, u.EntityID) {
			return false
		}
		return filter.Status == "" || u.Status == filter.Status
	})
	return page(out, filter.Offset, filter.Limit)
}

func (r *ScrapeURLRepository) ListStale(_ context.Context, entityID string, before time.Time, limit int) ([]scrapeurl.ScrapeURL, error) {
	out := r.sorted(func(u scrapeurl.ScrapeURL) bool {
		if entityID != "" && u.EntityID != entityID {
			return false
		}
		if u.DoNotScrape || u.Status != scrapeurl.StatusActive {
			return false
		}
		return u.LastScrapedAt == nil || u.LastScrapedAt.Before(before)
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastScrapedAt, out[j].LastScrapedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return page(out, 0, limit), nil
}

func (r *ScrapeURLRepository) ListNotFoundIDs(_ context.Context, entityID string) ([]int64, error) {
	items := r.sorted(func(u scrapeurl.ScrapeURL) bool {
		return u.EntityID == entityID && u.LastAttemptStatus == scrapeurl.AttemptNotFound
	})
	ids := make([]int64, 0, len(items))
	for _, u := range items {
		ids = append(ids, u.TournamentID)
	}
	return ids, nil
}

func (r *ScrapeURLRepository) sorted(keep func(scrapeurl.ScrapeURL) bool) []scrapeurl.ScrapeURL {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scrapeurl.ScrapeURL, 0)
	for _, u := range r.items {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].TournamentID < out[j].TournamentID
	})
	return out
}

type ScrapeAttemptRepository struct {
	mu    sync.RWMutex
	items []scrapeurl.Attempt
}

func NewScrapeAttemptRepository() *ScrapeAttemptRepository {
	return &ScrapeAttemptRepository{}
}

func (r *ScrapeAttemptRepository) Insert(_ context.Context, a scrapeurl.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, a)
	return nil
}

func (r *ScrapeAttemptRepository) ListByURL(_ context.Context, url string, limit int) ([]scrapeurl.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scrapeurl.Attempt, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].URL != url {
			continue
		}
		out = append(out, r.items[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *ScrapeAttemptRepository) CountByStatusSince(_ context.Context, entityID string, since time.Time) (map[scrapeurl.AttemptStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[scrapeurl.AttemptStatus]int)
	for _, a := range r.items {
		if entityID != "" && a.EntityID != entityID {
			continue
		}
		if a.AttemptedAt.Before(since) {
			continue
		}
		out[a.Status]++
	}
	return out, nil
}
