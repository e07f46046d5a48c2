package game

import (
	"context"
	"errors"
)

var (
	// ErrVersionConflict is returned when a conditional update lost to another writer.
	ErrVersionConflict = errors.New("game version conflict")
	// ErrDuplicateGame is returned when an insert collides on (entity, tournament) or source url.
	ErrDuplicateGame = errors.New("game already exists")
)

// ListOptions pages through game listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository describes game persistence needs from use cases.
type Repository interface {
	FindByID(ctx context.Context, gameID string) (Game, bool, error)
	FindBySourceURL(ctx context.Context, sourceURL string) (Game, bool, error)
	FindByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (Game, bool, error)

	// Insert is a conditional put: it fails with ErrDuplicateGame instead of overwriting.
	Insert(ctx context.Context, g Game) error
	// Update writes fields of g only while the stored version equals expectedVersion.
	Update(ctx context.Context, g Game, expectedVersion int64, fields []string) error
	UpdateRecurringAssignment(ctx context.Context, gameID string, a RecurringAssignment) error
	ReassignRecurringGame(ctx context.Context, fromRecurringID, toRecurringID string) (int, error)

	LowestTournamentID(ctx context.Context, entityID string) (int64, bool, error)
	HighestTournamentID(ctx context.Context, entityID string) (int64, bool, error)
	CountByEntity(ctx context.Context, entityID string) (int, error)
	// ListTournamentIDs returns ascending ids in (afterID, maxID] capped at limit; maxID <= 0 means unbounded.
	ListTournamentIDs(ctx context.Context, entityID string, afterID, maxID int64, limit int) ([]int64, error)
	ListUnfinished(ctx context.Context, entityID string, opts ListOptions) ([]Game, error)
	ListByVenue(ctx context.Context, venueID string) ([]Game, error)
	ListByRecurringGame(ctx context.Context, recurringGameID string) ([]Game, error)
	CountByRecurringGame(ctx context.Context, recurringGameID string) (int, error)
}

type PlayerEntryRepository interface {
	UpsertEntries(ctx context.Context, gameID string, entries []PlayerEntry) error
	ListByGame(ctx context.Context, gameID string) ([]PlayerEntry, error)
}

type SnapshotRepository interface {
	UpsertSnapshot(ctx context.Context, s FinancialSnapshot) error
}
