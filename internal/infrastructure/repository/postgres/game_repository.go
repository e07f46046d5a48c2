package postgres

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

var unfinishedGameStatuses = []string{
	string(game.StatusScheduled),
	string(game.StatusRegistering),
	string(game.StatusRunning),
	string(game.StatusClockStopped),
}

type GameRepository struct {
	db    *sqlx.DB
	table string
}

func NewGameRepository(db *sqlx.DB, table string) *GameRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().Games
	}
	return &GameRepository{db: db, table: table}
}

func (r *GameRepository) FindByID(ctx context.Context, gameID string) (game.Game, bool, error) {
	return r.findOne(ctx, "id="+gameID, qb.Eq("id", gameID))
}

func (r *GameRepository) FindBySourceURL(ctx context.Context, sourceURL string) (game.Game, bool, error) {
	return r.findOne(ctx, "source_url="+sourceURL, qb.Eq("source_url", sourceURL))
}

func (r *GameRepository) FindByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (game.Game, bool, error) {
	return r.findOne(ctx,
		fmt.Sprintf("entity=%s tournament=%d", entityID, tournamentID),
		qb.Eq("entity_id", entityID),
		qb.Eq("tournament_id", tournamentID),
	)
}

func (r *GameRepository) findOne(ctx context.Context, label string, conditions ...qb.Condition) (game.Game, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		Limit(1).
		ToSQL()
	if err != nil {
		return game.Game{}, false, fmt.Errorf("build select game query: %w", err)
	}

	var row gameTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return game.Game{}, false, nil
		}
		return game.Game{}, false, fmt.Errorf("select game %s: %w", label, err)
	}
	return gameFromRow(row), true, nil
}

func (r *GameRepository) Insert(ctx context.Context, g game.Game) error {
	query, args, err := qb.InsertModel(r.table, gameToRow(g), "")
	if err != nil {
		return fmt.Errorf("build insert game query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert game id=%s: %w", g.ID, game.ErrDuplicateGame)
		}
		return fmt.Errorf("insert game id=%s: %w", g.ID, err)
	}
	return nil
}

// Update writes the columns behind fields plus the version bookkeeping, guarded by expectedVersion.
// An empty field list rewrites every column.
func (r *GameRepository) Update(ctx context.Context, g game.Game, expectedVersion int64, fields []string) error {
	row := gameToRow(g)
	values := modelColumnValues(row)

	columns := make([]string, 0, len(values))
	if len(fields) == 0 {
		for col := range values {
			if col != "id" && col != "created_at" {
				columns = append(columns, col)
			}
		}
	} else {
		seen := make(map[string]struct{})
		for _, field := range fields {
			for _, col := range gameFieldColumns[field] {
				if _, ok := seen[col]; ok {
					continue
				}
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
		columns = append(columns, "version", "last_changed_at", "updated_at")
	}

	builder := qb.Update(r.table)
	for _, col := range sortedUnique(columns) {
		builder = builder.Set(col, values[col])
	}
	query, args, err := builder.
		Where(qb.Eq("id", g.ID), qb.Eq("version", expectedVersion)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update game query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update game id=%s: %w", g.ID, game.ErrDuplicateGame)
		}
		return fmt.Errorf("update game id=%s: %w", g.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update game id=%s version=%d: %w", g.ID, expectedVersion, game.ErrVersionConflict)
	}
	return nil
}

func (r *GameRepository) UpdateRecurringAssignment(ctx context.Context, gameID string, a game.RecurringAssignment) error {
	query, args, err := qb.Update(r.table).
		Set("recurring_game_id", nullString(a.RecurringGameID)).
		Set("recurring_game_assignment_status", string(a.Status)).
		Set("recurring_game_assignment_confidence", game.NormalizeConfidence(a.Status, a.Confidence)).
		Set("was_scheduled_instance", a.WasScheduledInstance).
		Set("instance_number", intParam(a.InstanceNumber)).
		SetExpr("version", "version + 1").
		Set("updated_at", time.Now().UTC()).
		Where(qb.Eq("id", gameID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update recurring assignment query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("update recurring assignment game id=%s: %w", gameID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update recurring assignment game id=%s: not found", gameID)
	}
	return nil
}

func (r *GameRepository) ReassignRecurringGame(ctx context.Context, fromRecurringID, toRecurringID string) (int, error) {
	query, args, err := qb.Update(r.table).
		Set("recurring_game_id", toRecurringID).
		SetExpr("version", "version + 1").
		Set("updated_at", time.Now().UTC()).
		Where(qb.Eq("recurring_game_id", fromRecurringID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build reassign recurring game query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign games from recurring=%s to=%s: %w", fromRecurringID, toRecurringID, err)
	}
	return int(affected), nil
}

func (r *GameRepository) LowestTournamentID(ctx context.Context, entityID string) (int64, bool, error) {
	return r.boundTournamentID(ctx, entityID, "MIN")
}

func (r *GameRepository) HighestTournamentID(ctx context.Context, entityID string) (int64, bool, error) {
	return r.boundTournamentID(ctx, entityID, "MAX")
}

func (r *GameRepository) boundTournamentID(ctx context.Context, entityID, fn string) (int64, bool, error) {
	query, args, err := qb.Select(fn+"(tournament_id)").From(r.table).
		Where(qb.Eq("entity_id", entityID), qb.Gt("tournament_id", 0)).
		ToSQL()
	if err != nil {
		return 0, false, fmt.Errorf("build %s tournament id query: %w", strings.ToLower(fn), err)
	}

	var bound *int64
	if err := getRow(ctx, r.db, &bound, query, args...); err != nil {
		return 0, false, fmt.Errorf("select %s tournament id entity=%s: %w", strings.ToLower(fn), entityID, err)
	}
	if bound == nil {
		return 0, false, nil
	}
	return *bound, true, nil
}

func (r *GameRepository) CountByEntity(ctx context.Context, entityID string) (int, error) {
	return r.count(ctx, "entity="+entityID, qb.Eq("entity_id", entityID), qb.Gt("tournament_id", 0))
}

func (r *GameRepository) CountByRecurringGame(ctx context.Context, recurringGameID string) (int, error) {
	return r.count(ctx, "recurring="+recurringGameID, qb.Eq("recurring_game_id", recurringGameID))
}

func (r *GameRepository) count(ctx context.Context, label string, conditions ...qb.Condition) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From(r.table).
		Where(conditions...).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count games query: %w", err)
	}

	var total int
	if err := getRow(ctx, r.db, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count games %s: %w", label, err)
	}
	return total, nil
}

func (r *GameRepository) ListTournamentIDs(ctx context.Context, entityID string, afterID, maxID int64, limit int) ([]int64, error) {
	conditions := []qb.Condition{
		qb.Eq("entity_id", entityID),
		qb.Gt("tournament_id", max(afterID, 0)),
	}
	if maxID > 0 {
		conditions = append(conditions, qb.Lte("tournament_id", maxID))
	}
	query, args, err := qb.Select("tournament_id").From(r.table).
		Where(conditions...).
		OrderBy("tournament_id ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tournament ids query: %w", err)
	}

	ids := make([]int64, 0)
	if err := selectRows(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list tournament ids entity=%s: %w", entityID, err)
	}
	return ids, nil
}

func (r *GameRepository) ListUnfinished(ctx context.Context, entityID string, opts game.ListOptions) ([]game.Game, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(
			qb.Eq("entity_id", entityID),
			qb.In("game_status", qb.Strings(unfinishedGameStatuses)),
		).
		OrderBy("game_start_date_time ASC", "tournament_id ASC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list unfinished games query: %w", err)
	}
	return r.list(ctx, "unfinished entity="+entityID, query, args)
}

func (r *GameRepository) ListByVenue(ctx context.Context, venueID string) ([]game.Game, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("venue_id", venueID)).
		OrderBy("game_start_date_time ASC", "tournament_id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list games by venue query: %w", err)
	}
	return r.list(ctx, "venue="+venueID, query, args)
}

func (r *GameRepository) ListByRecurringGame(ctx context.Context, recurringGameID string) ([]game.Game, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("recurring_game_id", recurringGameID)).
		OrderBy("game_start_date_time ASC", "tournament_id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list games by recurring query: %w", err)
	}
	return r.list(ctx, "recurring="+recurringGameID, query, args)
}

func (r *GameRepository) list(ctx context.Context, label, query string, args []any) ([]game.Game, error) {
	var rows []gameTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list games %s: %w", label, err)
	}

	out := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		out = append(out, gameFromRow(row))
	}
	return out, nil
}

type PlayerEntryRepository struct {
	db    *sqlx.DB
	table string
}

func NewPlayerEntryRepository(db *sqlx.DB, table string) *PlayerEntryRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().PlayerEntries
	}
	return &PlayerEntryRepository{db: db, table: table}
}

func (r *PlayerEntryRepository) UpsertEntries(ctx context.Context, gameID string, entries []game.PlayerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert player entries tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range entries {
		updatedAt := e.UpdatedAt.UTC()
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		model := playerEntryTableModel{
			GameID:     gameID,
			EntityID:   e.EntityID,
			PlayerName: e.PlayerName,
			Status:     e.Status,
			Rank:       intParam(e.Rank),
			Winnings:   e.Winnings,
			UpdatedAt:  updatedAt,
		}
		query, args, err := qb.InsertModel(r.table, model, `ON CONFLICT (game_id, player_name)
DO UPDATE SET
    status = EXCLUDED.status,
    rank = EXCLUDED.rank,
    winnings = EXCLUDED.winnings,
    updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return fmt.Errorf("build upsert player entry query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player entry game=%s player=%s: %w", gameID, e.PlayerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert player entries tx: %w", err)
	}
	return nil
}

func (r *PlayerEntryRepository) ListByGame(ctx context.Context, gameID string) ([]game.PlayerEntry, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("game_id", gameID)).
		OrderBy("rank ASC NULLS LAST", "player_name ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list player entries query: %w", err)
	}

	var rows []playerEntryTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list player entries game=%s: %w", gameID, err)
	}

	out := make([]game.PlayerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, game.PlayerEntry{
			GameID:     row.GameID,
			EntityID:   row.EntityID,
			PlayerName: row.PlayerName,
			Status:     row.Status,
			Rank:       nullInt(row.Rank),
			Winnings:   row.Winnings,
			UpdatedAt:  row.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

type SnapshotRepository struct {
	db    *sqlx.DB
	table string
}

func NewSnapshotRepository(db *sqlx.DB, table string) *SnapshotRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().FinancialSnapshots
	}
	return &SnapshotRepository{db: db, table: table}
}

func (r *SnapshotRepository) UpsertSnapshot(ctx context.Context, s game.FinancialSnapshot) error {
	model := financialSnapshotTableModel{
		GameID:            s.GameID,
		EntityID:          s.EntityID,
		VenueID:           s.VenueID,
		GameStartDateTime: s.GameStartDateTime.UTC(),
		BuyIn:             s.BuyIn,
		Rake:              s.Rake,
		VenueFee:          s.VenueFee,
		TotalEntries:      s.TotalEntries,
		RakeRevenue:       s.RakeRevenue,
		VenueFeeRevenue:   s.VenueFeeRevenue,
		TotalRevenue:      s.TotalRevenue,
		PlayerPrizepool:   s.PlayerPrizepool,
		OverlayCost:       s.OverlayCost,
		Surplus:           s.Surplus,
		NetProfit:         s.NetProfit,
		UpdatedAt:         s.UpdatedAt.UTC(),
	}

	query, args, err := qb.InsertModel(r.table, model, `ON CONFLICT (game_id)
DO UPDATE SET
    entity_id = EXCLUDED.entity_id,
    venue_id = EXCLUDED.venue_id,
    game_start_date_time = EXCLUDED.game_start_date_time,
    buy_in = EXCLUDED.buy_in,
    rake = EXCLUDED.rake,
    venue_fee = EXCLUDED.venue_fee,
    total_entries = EXCLUDED.total_entries,
    rake_revenue = EXCLUDED.rake_revenue,
    venue_fee_revenue = EXCLUDED.venue_fee_revenue,
    total_revenue = EXCLUDED.total_revenue,
    player_prizepool = EXCLUDED.player_prizepool,
    overlay_cost = EXCLUDED.overlay_cost,
    surplus = EXCLUDED.surplus,
    net_profit = EXCLUDED.net_profit,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert financial snapshot query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("upsert financial snapshot game=%s: %w", s.GameID, err)
	}
	return nil
}

// modelColumnValues indexes a db-tagged struct by column name.
func modelColumnValues(model any) map[string]any {
	value := reflect.ValueOf(model)
	typ := value.Type()
	out := make(map[string]any, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tag := strings.TrimSpace(strings.Split(typ.Field(i).Tag.Get("db"), ",")[0])
		if tag == "" || tag == "-" {
			continue
		}
		out[tag] = value.Field(i).Interface()
	}
	return out
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
