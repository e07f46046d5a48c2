package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
)

// Tables names every relation used by the repositories so deployments can prefix or rename them.
type Tables struct {
	Entities           string
	Venues             string
	SeriesTitles       string
	Series             string
	RecurringGames     string
	Games              string
	PlayerEntries      string
	FinancialSnapshots string
	ScrapeURLs         string
	ScrapeAttempts     string
	BlobRecords        string
	ScraperJobs        string
	ScraperStates      string
	JobDispatches      string
}

func DefaultTables() Tables {
	return Tables{
		Entities:           "entities",
		Venues:             "venues",
		SeriesTitles:       "series_titles",
		Series:             "tournament_series",
		RecurringGames:     "recurring_games",
		Games:              "games",
		PlayerEntries:      "player_entries",
		FinancialSnapshots: "game_financial_snapshots",
		ScrapeURLs:         "scrape_urls",
		ScrapeAttempts:     "scrape_attempts",
		BlobRecords:        "blob_records",
		ScraperJobs:        "scraper_jobs",
		ScraperStates:      "scraper_states",
		JobDispatches:      "job_dispatches",
	}
}

// WithDefaults fills empty names from DefaultTables.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	pick := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return fallback
	}
	return Tables{
		Entities:           pick(t.Entities, d.Entities),
		Venues:             pick(t.Venues, d.Venues),
		SeriesTitles:       pick(t.SeriesTitles, d.SeriesTitles),
		Series:             pick(t.Series, d.Series),
		RecurringGames:     pick(t.RecurringGames, d.RecurringGames),
		Games:              pick(t.Games, d.Games),
		PlayerEntries:      pick(t.PlayerEntries, d.PlayerEntries),
		FinancialSnapshots: pick(t.FinancialSnapshots, d.FinancialSnapshots),
		ScrapeURLs:         pick(t.ScrapeURLs, d.ScrapeURLs),
		ScrapeAttempts:     pick(t.ScrapeAttempts, d.ScrapeAttempts),
		BlobRecords:        pick(t.BlobRecords, d.BlobRecords),
		ScraperJobs:        pick(t.ScraperJobs, d.ScraperJobs),
		ScraperStates:      pick(t.ScraperStates, d.ScraperStates),
		JobDispatches:      pick(t.JobDispatches, d.JobDispatches),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isBindParameterMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "bind message supplies") && strings.Contains(msg, "prepared statement")
}

func isUnnamedPreparedStatementMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unnamed prepared statement does not exist") {
		return true
	}
	return strings.Contains(msg, "prepared statement") && strings.Contains(msg, "(26000)")
}

// isStatementCacheError matches failures caused by a transaction pooler
// discarding the unnamed statement between parse and bind.
func isStatementCacheError(err error) bool {
	return isBindParameterMismatch(err) || isUnnamedPreparedStatementMissing(err)
}

func selectRows(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	err := db.SelectContext(ctx, dest, query, args...)
	if isStatementCacheError(err) {
		err = db.SelectContext(ctx, dest, query, args...)
	}
	return err
}

func getRow(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	err := db.GetContext(ctx, dest, query, args...)
	if isStatementCacheError(err) {
		err = db.GetContext(ctx, dest, query, args...)
	}
	return err
}

func execRows(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if isStatementCacheError(err) {
		res, err = db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nullFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func floatParam(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func intParam(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func int64Param(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}

func encodeJSON(value any) (string, error) {
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeJSON(raw string, target any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return jsoniter.UnmarshalFromString(raw, target)
}
