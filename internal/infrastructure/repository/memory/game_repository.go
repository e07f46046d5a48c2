package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

type entityTournamentKey struct {
	entityID     string
	tournamentID int64
}

// GameRepository keeps games with the same uniqueness rules as the SQL store.
type GameRepository struct {
	mu           sync.RWMutex
	items        map[string]game.Game
	byTournament map[entityTournamentKey]string
	bySourceURL  map[string]string
}

func NewGameRepository(games ...game.Game) *GameRepository {
	r := &GameRepository{
		items:        make(map[string]game.Game),
		byTournament: make(map[entityTournamentKey]string),
		bySourceURL:  make(map[string]string),
	}
	for _, g := range games {
		r.index(g)
	}
	return r
}

func (r *GameRepository) index(g game.Game) {
	r.items[g.ID] = g
	if g.TournamentID > 0 {
		r.byTournament[entityTournamentKey{g.EntityID, g.TournamentID}] = g.ID
	}
	if g.SourceURL != "" {
		r.bySourceURL[g.SourceURL] = g.ID
	}
}

func (r *GameRepository) FindByID(_ context.Context, gameID string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.items[gameID]
	return g, ok, nil
}

func (r *GameRepository) FindBySourceURL(_ context.Context, sourceURL string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySourceURL[sourceURL]
	if !ok {
		return game.Game{}, false, nil
	}
	return r.items[id], true, nil
}

func (r *GameRepository) FindByEntityTournament(_ context.Context, entityID string, tournamentID int64) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTournament[entityTournamentKey{entityID, tournamentID}]
	if !ok {
		return game.Game{}, false, nil
	}
	return r.items[id], true, nil
}

func (r *GameRepository) Insert(_ context.Context, g game.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[g.ID]; ok {
		return fmt.Errorf("insert game id=%s: %w", g.ID, game.ErrDuplicateGame)
	}
	if g.TournamentID > 0 {
		if _, ok := r.byTournament[entityTournamentKey{g.EntityID, g.TournamentID}]; ok {
			return fmt.Errorf("insert game entity=%s tournament=%d: %w", g.EntityID, g.TournamentID, game.ErrDuplicateGame)
		}
	}
	if g.SourceURL != "" {
		if _, ok := r.bySourceURL[g.SourceURL]; ok {
			return fmt.Errorf("insert game url=%s: %w", g.SourceURL, game.ErrDuplicateGame)
		}
	}
	r.index(g)
	return nil
}

func (r *GameRepository) Update(_ context.Context, g game.Game, expectedVersion int64, _ []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[g.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("update game id=%s: %w", g.ID, game.ErrVersionConflict)
	}
	if current.SourceURL != g.SourceURL {
		delete(r.bySourceURL, current.SourceURL)
	}
	r.index(g)
	return nil
}

func (r *GameRepository) UpdateRecurringAssignment(_ context.Context, gameID string, a game.RecurringAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.items[gameID]
	if !ok {
		return fmt.Errorf("update recurring assignment game id=%s: not found", gameID)
	}
	g.ApplyRecurring(a)
	g.Version++
	r.items[gameID] = g
	return nil
}

func (r *GameRepository) ReassignRecurringGame(_ context.Context, fromRecurringID, toRecurringID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	moved := 0
	for id, g := range r.items {
		if g.RecurringGameID == nil || *g.RecurringGameID != fromRecurringID {
			continue
		}
		target := toRecurringID
		g.RecurringGameID = &target
		g.Version++
		r.items[id] = g
		moved++
	}
	return moved, nil
}

func (r *GameRepository) LowestTournamentID(_ context.Context, entityID string) (int64, bool, error) {
	ids := r.tournamentIDs(entityID)
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *GameRepository) HighestTournamentID(_ context.Context, entityID string) (int64, bool, error) {
	ids := r.tournamentIDs(entityID)
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[len(ids)-1], true, nil
}

func (r *GameRepository) CountByEntity(_ context.Context, entityID string) (int, error) {
	return len(r.tournamentIDs(entityID)), nil
}

func (r *GameRepository) ListTournamentIDs(_ context.Context, entityID string, afterID, maxID int64, limit int) ([]int64, error) {
	out := make([]int64, 0)
	for _, id := range r.tournamentIDs(entityID) {
		if id <= afterID {
			continue
		}
		if maxID > 0 && id > maxID {
			break
		}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *GameRepository) tournamentIDs(entityID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0)
	for key := range r.byTournament {
		if key.entityID == entityID {
			ids = append(ids, key.tournamentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *GameRepository) ListUnfinished(_ context.Context, entityID string, opts game.ListOptions) ([]game.Game, error) {
	all := r.filter(func(g game.Game) bool {
		return g.EntityID == entityID && g.GameStatus.IsUnfinished()
	})
	return page(all, opts.Offset, opts.Limit), nil
}

func (r *GameRepository) ListByVenue(_ context.Context, venueID string) ([]game.Game, error) {
	return r.filter(func(g game.Game) bool { return g.VenueID == venueID }), nil
}

func (r *GameRepository) ListByRecurringGame(_ context.Context, recurringGameID string) ([]game.Game, error) {
	return r.filter(func(g game.Game) bool {
		return g.RecurringGameID != nil && *g.RecurringGameID == recurringGameID
	}), nil
}

func (r *GameRepository) CountByRecurringGame(ctx context.Context, recurringGameID string) (int, error) {
	items, err := r.ListByRecurringGame(ctx, recurringGameID)
	return len(items), err
}

// filter returns matches ordered by start time, then tournament id.
func (r *GameRepository) filter(keep func(game.Game) bool) []game.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.Game, 0)
	for _, g := range r.items {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameStartDateTime.Equal(out[j].GameStartDateTime) {
			return out[i].GameStartDateTime.Before(out[j].GameStartDateTime)
		}
		return out[i].TournamentID < out[j].TournamentID
	})
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type PlayerEntryRepository struct {
	mu     sync.RWMutex
	byGame map[string][]game.PlayerEntry
}

func NewPlayerEntryRepository() *PlayerEntryRepository {
	return &PlayerEntryRepository{byGame: make(map[string][]game.PlayerEntry)}
}

func (r *PlayerEntryRepository) UpsertEntries(_ context.Context, gameID string, entries []game.PlayerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.byGame[gameID]
	for _, e := range entries {
		replaced := false
		for i := range current {
			if current[i].PlayerName == e.PlayerName {
				current[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, e)
		}
	}
	r.byGame[gameID] = current
	return nil
}

func (r *PlayerEntryRepository) ListByGame(_ context.Context, gameID string) ([]game.PlayerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.PlayerEntry, 0, len(r.byGame[gameID]))
	out = append(out, r.byGame[gameID]...)
	return out, nil
}

type SnapshotRepository struct {
	mu    sync.RWMutex
	items map[string]game.FinancialSnapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{items: make(map[string]game.FinancialSnapshot)}
}

func (r *SnapshotRepository) UpsertSnapshot(_ context.Context, s game.FinancialSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[s.GameID] = s
	return nil
}

func (r *SnapshotRepository) Get(gameID string) (game.FinancialSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[gameID]
	return s, ok
}

// PlayerQueue records enqueued batches in memory, keyed by deduplication id.
type PlayerQueue struct {
	mu       sync.Mutex
	messages []game.PlayerBatchMessage
	seen     map[string]struct{}
}

func NewPlayerQueue() *PlayerQueue {
	return &PlayerQueue{seen: make(map[string]struct{})}
}

func (q *PlayerQueue) Enqueue(_ context.Context, msg game.PlayerBatchMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.seen[msg.DeduplicationID]; dup {
		return nil
	}
	q.seen[msg.DeduplicationID] = struct{}{}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *PlayerQueue) Messages() []game.PlayerBatchMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]game.PlayerBatchMessage, len(q.messages))
	copy(out, q.messages)
	return out
}
