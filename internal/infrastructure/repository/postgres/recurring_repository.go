package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

const recurringColumns = "id, entity_id, venue_id, name, day_of_week, typical_buy_in, typical_start_time, " +
	"typical_guarantee, game_variant, game_type, frequency, total_occurrences, first_seen_date, " +
	"last_seen_date, is_active, merged_into, confidence, created_at, updated_at"

type recurringGameTableModel struct {
	ID               string          `db:"id"`
	EntityID         string          `db:"entity_id"`
	VenueID          string          `db:"venue_id"`
	Name             string          `db:"name"`
	DayOfWeek        string          `db:"day_of_week"`
	TypicalBuyIn     float64         `db:"typical_buy_in"`
	TypicalStartTime string          `db:"typical_start_time"`
	TypicalGuarantee sql.NullFloat64 `db:"typical_guarantee"`
	GameVariant      string          `db:"game_variant"`
	GameType         string          `db:"game_type"`
	Frequency        string          `db:"frequency"`
	TotalOccurrences int             `db:"total_occurrences"`
	FirstSeenDate    *time.Time      `db:"first_seen_date"`
	LastSeenDate     *time.Time      `db:"last_seen_date"`
	IsActive         bool            `db:"is_active"`
	MergedInto       sql.NullString  `db:"merged_into"`
	Confidence       float64         `db:"confidence"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// RecurringRepository soft-deletes templates so merge history stays queryable.
type RecurringRepository struct {
	db    *sqlx.DB
	table string
}

func NewRecurringRepository(db *sqlx.DB, table string) *RecurringRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().RecurringGames
	}
	return &RecurringRepository{db: db, table: table}
}

func (r *RecurringRepository) GetByID(ctx context.Context, id string) (recurring.RecurringGame, bool, error) {
	query, args, err := qb.Select(recurringColumns).From(r.table).
		Where(qb.Eq("id", id), qb.IsNull("deleted_at")).
		Limit(1).
		ToSQL()
	if err != nil {
		return recurring.RecurringGame{}, false, fmt.Errorf("build select recurring game query: %w", err)
	}

	var row recurringGameTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return recurring.RecurringGame{}, false, nil
		}
		return recurring.RecurringGame{}, false, fmt.Errorf("select recurring game id=%s: %w", id, err)
	}
	return recurringFromRow(row), true, nil
}

func (r *RecurringRepository) ListByVenue(ctx context.Context, venueID string) ([]recurring.RecurringGame, error) {
	return r.list(ctx, "venue="+venueID, qb.Eq("venue_id", venueID))
}

func (r *RecurringRepository) ListByEntity(ctx context.Context, entityID string) ([]recurring.RecurringGame, error) {
	return r.list(ctx, "entity="+entityID, qb.Eq("entity_id", entityID))
}

func (r *RecurringRepository) list(ctx context.Context, label string, condition qb.Condition) ([]recurring.RecurringGame, error) {
	query, args, err := qb.Select(recurringColumns).From(r.table).
		Where(condition, qb.IsNull("deleted_at")).
		OrderBy("id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list recurring games query: %w", err)
	}

	var rows []recurringGameTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list recurring games %s: %w", label, err)
	}

	out := make([]recurring.RecurringGame, 0, len(rows))
	for _, row := range rows {
		out = append(out, recurringFromRow(row))
	}
	return out, nil
}

func (r *RecurringRepository) Create(ctx context.Context, t recurring.RecurringGame) error {
	query, args, err := qb.InsertModel(r.table, recurringToRow(t), "")
	if err != nil {
		return fmt.Errorf("build insert recurring game query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create recurring game id=%s: already exists", t.ID)
		}
		return fmt.Errorf("create recurring game id=%s: %w", t.ID, err)
	}
	return nil
}

func (r *RecurringRepository) Update(ctx context.Context, t recurring.RecurringGame) error {
	row := recurringToRow(t)
	query, args, err := qb.Update(r.table).
		Set("entity_id", row.EntityID).
		Set("venue_id", row.VenueID).
		Set("name", row.Name).
		Set("day_of_week", row.DayOfWeek).
		Set("typical_buy_in", row.TypicalBuyIn).
		Set("typical_start_time", row.TypicalStartTime).
		Set("typical_guarantee", row.TypicalGuarantee).
		Set("game_variant", row.GameVariant).
		Set("game_type", row.GameType).
		Set("frequency", row.Frequency).
		Set("total_occurrences", row.TotalOccurrences).
		Set("first_seen_date", row.FirstSeenDate).
		Set("last_seen_date", row.LastSeenDate).
		Set("is_active", row.IsActive).
		Set("merged_into", row.MergedInto).
		Set("confidence", row.Confidence).
		Set("updated_at", row.UpdatedAt).
		Where(qb.Eq("id", t.ID), qb.IsNull("deleted_at")).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update recurring game query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("update recurring game id=%s: %w", t.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update recurring game id=%s: not found", t.ID)
	}
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query, args, err := qb.Update(r.table).
		Set("deleted_at", now).
		Set("updated_at", now).
		Where(qb.Eq("id", id), qb.IsNull("deleted_at")).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete recurring game query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("delete recurring game id=%s: %w", id, err)
	}
	return nil
}

func (r *RecurringRepository) RecordOccurrence(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	query, args, err := qb.Update(r.table).
		SetExpr("total_occurrences", "total_occurrences + 1").
		SetExpr("first_seen_date", "LEAST(COALESCE(first_seen_date, ?), ?)", at, at).
		SetExpr("last_seen_date", "GREATEST(COALESCE(last_seen_date, ?), ?)", at, at).
		Set("updated_at", at).
		Where(qb.Eq("id", id), qb.IsNull("deleted_at")).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build record occurrence query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("record occurrence recurring game id=%s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("record occurrence recurring game id=%s: not found", id)
	}
	return nil
}

func recurringToRow(t recurring.RecurringGame) recurringGameTableModel {
	now := time.Now().UTC()
	row := recurringGameTableModel{
		ID:               t.ID,
		EntityID:         t.EntityID,
		VenueID:          t.VenueID,
		Name:             t.Name,
		DayOfWeek:        t.DayOfWeek,
		TypicalBuyIn:     t.TypicalBuyIn,
		TypicalStartTime: t.TypicalStartTime,
		TypicalGuarantee: floatParam(t.TypicalGuarantee),
		GameVariant:      string(t.GameVariant),
		GameType:         string(t.GameType),
		Frequency:        string(t.Frequency),
		TotalOccurrences: t.TotalOccurrences,
		FirstSeenDate:    utcPtr(t.FirstSeenDate),
		LastSeenDate:     utcPtr(t.LastSeenDate),
		IsActive:         t.IsActive,
		MergedInto:       nullString(t.MergedInto),
		Confidence:       t.Confidence,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	if row.GameType == "" {
		row.GameType = string(game.TypeTournament)
	}
	if row.Frequency == "" {
		row.Frequency = string(recurring.FrequencyWeekly)
	}
	return row
}

func recurringFromRow(row recurringGameTableModel) recurring.RecurringGame {
	return recurring.RecurringGame{
		ID:               row.ID,
		EntityID:         row.EntityID,
		VenueID:          row.VenueID,
		Name:             row.Name,
		DayOfWeek:        row.DayOfWeek,
		TypicalBuyIn:     row.TypicalBuyIn,
		TypicalStartTime: row.TypicalStartTime,
		TypicalGuarantee: nullFloat(row.TypicalGuarantee),
		GameVariant:      game.Variant(row.GameVariant),
		GameType:         game.Type(row.GameType),
		Frequency:        recurring.Frequency(row.Frequency),
		TotalOccurrences: row.TotalOccurrences,
		FirstSeenDate:    utcPtr(row.FirstSeenDate),
		LastSeenDate:     utcPtr(row.LastSeenDate),
		IsActive:         row.IsActive,
		MergedInto:       stringPtr(row.MergedInto),
		Confidence:       row.Confidence,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}
