package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
)

// lookupMissRepo hides existing games from the next misses lookups, so the saver
// races its own insert against a stored row.
type lookupMissRepo struct {
	*memory.GameRepository

	mu     sync.Mutex
	misses int
}

func (r *lookupMissRepo) miss() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.misses == 0 {
		return false
	}
	r.misses--
	return true
}

func (r *lookupMissRepo) FindBySourceURL(ctx context.Context, sourceURL string) (game.Game, bool, error) {
	if r.miss() {
		return game.Game{}, false, nil
	}
	return r.GameRepository.FindBySourceURL(ctx, sourceURL)
}

func (r *lookupMissRepo) FindByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (game.Game, bool, error) {
	if r.miss() {
		return game.Game{}, false, nil
	}
	return r.GameRepository.FindByEntityTournament(ctx, entityID, tournamentID)
}

// concurrentWriterRepo lets another writer bump the stored version right before
// each of the next interleaved updates, and records the field list of every update.
type concurrentWriterRepo struct {
	*memory.GameRepository

	mu          sync.Mutex
	interleaved int
	fields      [][]string
}

func (r *concurrentWriterRepo) Update(ctx context.Context, g game.Game, expectedVersion int64, fields []string) error {
	r.mu.Lock()
	r.fields = append(r.fields, slices.Clone(fields))
	bump := r.interleaved > 0
	if bump {
		r.interleaved--
	}
	r.mu.Unlock()

	if bump {
		current, ok, err := r.GameRepository.FindByID(ctx, g.ID)
		if err != nil || !ok {
			return fmt.Errorf("load game for concurrent write: ok=%v err=%v", ok, err)
		}
		other := current
		other.Version = current.Version + 1
		if err := r.GameRepository.Update(ctx, other, current.Version, nil); err != nil {
			return err
		}
	}
	return r.GameRepository.Update(ctx, g, expectedVersion, fields)
}

func (r *concurrentWriterRepo) lastFields() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fields) == 0 {
		return nil
	}
	return r.fields[len(r.fields)-1]
}

func TestGameSaver_ConcurrentSavesCreateOneGame(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, memory.NewPlayerQueue())
	ctx := context.Background()
	in := finishedTournament(2001)

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		actions = make(map[SaveAction]int)
		gameIDs = make(map[string]struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.saver.Save(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				actions[SaveError]++
				return
			}
			actions[res.Action]++
			gameIDs[res.GameID] = struct{}{}
		}()
	}
	wg.Wait()

	if actions[SaveCreated] != 1 || actions[SaveError] != 0 {
		t.Fatalf("expected exactly one CREATED and no errors, got %v", actions)
	}
	if actions[SaveCreated]+actions[SaveSkipped]+actions[SaveUpdated] != workers {
		t.Fatalf("unexpected actions %v", actions)
	}
	if len(gameIDs) != 1 {
		t.Fatalf("every save must resolve to one game, got %d ids", len(gameIDs))
	}
	count, err := p.games.CountByEntity(ctx, testEntityID)
	if err != nil {
		t.Fatalf("count games: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored game, got %d", count)
	}
}

func TestGameSaver_LostInsertRaceUpdatesExisting(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(2002)
	in.Players = nil
	first, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Both lookups in findExisting miss, so the saver inserts and collides.
	repo := &lookupMissRepo{GameRepository: p.games, misses: 2}
	p.saver.games = repo

	in.Game.TotalEntries = 120
	second, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Action != SaveUpdated || second.GameID != first.GameID {
		t.Fatalf("expected UPDATED on %s, got %s on %s", first.GameID, second.Action, second.GameID)
	}
	stored, _, _ := p.games.FindByID(ctx, first.GameID)
	if stored.TotalEntries != 120 || stored.Version != 2 {
		t.Fatalf("unexpected stored game: entries=%d version=%d", stored.TotalEntries, stored.Version)
	}
	count, _ := p.games.CountByEntity(ctx, testEntityID)
	if count != 1 {
		t.Fatalf("expected one stored game, got %d", count)
	}
}

func TestGameSaver_VersionConflictReloadsAndRetries(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(2003)
	in.Players = nil
	first, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	repo := &concurrentWriterRepo{GameRepository: p.games, interleaved: 1}
	p.saver.games = repo

	in.Game.TotalEntries = 125
	second, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Action != SaveUpdated {
		t.Fatalf("expected UPDATED after retry, got %s", second.Action)
	}
	stored, _, _ := p.games.FindByID(ctx, first.GameID)
	if stored.Version != 3 || stored.TotalEntries != 125 {
		t.Fatalf("expected retried write on top of the concurrent one: version=%d entries=%d", stored.Version, stored.TotalEntries)
	}
}

func TestGameSaver_RepeatedVersionConflictSurfacesConflict(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(2004)
	in.Players = nil
	if _, err := p.saver.Save(ctx, in); err != nil {
		t.Fatalf("first save: %v", err)
	}

	p.saver.games = &concurrentWriterRepo{GameRepository: p.games, interleaved: 2}

	in.Game.TotalEntries = 130
	res, err := p.saver.Save(ctx, in)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if res.Action != SaveError || res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGameSaver_TerminalStatusIsNotDowngraded(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(2005)
	in.Players = nil
	first, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	late := in
	late.Game.GameStatus = game.StatusRunning
	second, err := p.saver.Save(ctx, late)
	if err != nil {
		t.Fatalf("late save: %v", err)
	}
	if second.Action != SaveSkipped {
		t.Fatalf("expected SKIPPED for a late live scrape, got %s", second.Action)
	}
	stored, _, _ := p.games.FindByID(ctx, first.GameID)
	if stored.GameStatus != game.StatusFinished {
		t.Fatalf("terminal status downgraded to %s", stored.GameStatus)
	}

	forced := late
	forced.Options.ForceUpdate = true
	third, err := p.saver.Save(ctx, forced)
	if err != nil {
		t.Fatalf("forced save: %v", err)
	}
	if third.Action != SaveUpdated {
		t.Fatalf("expected UPDATED on force, got %s", third.Action)
	}
	stored, _, _ = p.games.FindByID(ctx, first.GameID)
	if stored.GameStatus != game.StatusRunning {
		t.Fatalf("forced save should reopen the game, got %s", stored.GameStatus)
	}
}

func TestGameSaver_MovedSourceURLIsWritten(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(2006)
	in.Players = nil
	first, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	repo := &concurrentWriterRepo{GameRepository: p.games}
	p.saver.games = repo

	moved := in
	moved.Game.SourceURL = "https://kingsroom.example/events/2006"
	moved.Source.SourceID = moved.Game.SourceURL
	second, err := p.saver.Save(ctx, moved)
	if err != nil {
		t.Fatalf("moved save: %v", err)
	}
	if second.Action != SaveUpdated || second.GameID != first.GameID {
		t.Fatalf("expected UPDATED on %s, got %s on %s", first.GameID, second.Action, second.GameID)
	}
	if !slices.Contains(repo.lastFields(), game.FieldSourceURL) {
		t.Fatalf("source url must be part of the written fields, got %v", repo.lastFields())
	}
	stored, ok, _ := p.games.FindBySourceURL(ctx, moved.Game.SourceURL)
	if !ok || stored.ID != first.GameID {
		t.Fatalf("expected game reachable by its new url, ok=%v id=%s", ok, stored.ID)
	}
}
