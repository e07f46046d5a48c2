package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

type scrapeURLTableModel struct {
	ID                  string         `db:"id"`
	URL                 string         `db:"url"`
	EntityID            string         `db:"entity_id"`
	TournamentID        int64          `db:"tournament_id"`
	Status              string         `db:"status"`
	LastScrapedAt       *time.Time     `db:"last_scraped_at"`
	LastAttemptStatus   string         `db:"last_attempt_status"`
	GameStatus          string         `db:"game_status"`
	GameID              string         `db:"game_id"`
	DoNotScrape         bool           `db:"do_not_scrape"`
	ConsecutiveFailures int            `db:"consecutive_failures"`
	TimesScraped        int            `db:"times_scraped"`
	TimesSuccessful     int            `db:"times_successful"`
	SuccessRate         float64        `db:"success_rate"`
	LatestBlobKey       sql.NullString `db:"latest_blob_key"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

type scrapeAttemptTableModel struct {
	ID               string    `db:"id"`
	ScrapeURLID      string    `db:"scrape_url_id"`
	URL              string    `db:"url"`
	EntityID         string    `db:"entity_id"`
	TournamentID     int64     `db:"tournament_id"`
	JobID            string    `db:"job_id"`
	Status           string    `db:"status"`
	Action           string    `db:"action"`
	GameID           string    `db:"game_id"`
	ContentHash      string    `db:"content_hash"`
	ErrorMessage     string    `db:"error_message"`
	ErrorFingerprint string    `db:"error_fingerprint"`
	DurationMS       int64     `db:"duration_ms"`
	AttemptedAt      time.Time `db:"attempted_at"`
}

type ScrapeURLRepository struct {
	db    *sqlx.DB
	table string
}

func NewScrapeURLRepository(db *sqlx.DB, table string) *ScrapeURLRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().ScrapeURLs
	}
	return &ScrapeURLRepository{db: db, table: table}
}

func (r *ScrapeURLRepository) GetByURL(ctx context.Context, url string) (scrapeurl.ScrapeURL, bool, error) {
	return r.findOne(ctx, "url="+url, qb.Eq("url", url))
}

func (r *ScrapeURLRepository) GetByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (scrapeurl.ScrapeURL, bool, error) {
	return r.findOne(ctx,
		fmt.Sprintf("entity=%s tournament=%d", entityID, tournamentID),
		qb.Eq("entity_id", entityID),
		qb.Eq("tournament_id", tournamentID),
	)
}

func (r *ScrapeURLRepository) findOne(ctx context.Context, label string, conditions ...qb.Condition) (scrapeurl.ScrapeURL, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		Limit(1).
		ToSQL()
	if err != nil {
		return scrapeurl.ScrapeURL{}, false, fmt.Errorf("build select scrape url query: %w", err)
	}

	var row scrapeURLTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return scrapeurl.ScrapeURL{}, false, nil
		}
		return scrapeurl.ScrapeURL{}, false, fmt.Errorf("select scrape url %s: %w", label, err)
	}
	return scrapeURLFromRow(row), true, nil
}

func (r *ScrapeURLRepository) Upsert(ctx context.Context, u scrapeurl.ScrapeURL) error {
	now := time.Now().UTC()
	model := scrapeURLTableModel{
		ID:                  u.ID,
		URL:                 u.URL,
		EntityID:            u.EntityID,
		TournamentID:        u.TournamentID,
		Status:              string(u.Status),
		LastScrapedAt:       utcPtr(u.LastScrapedAt),
		LastAttemptStatus:   string(u.LastAttemptStatus),
		GameStatus:          string(u.GameStatus),
		GameID:              u.GameID,
		DoNotScrape:         u.DoNotScrape,
		ConsecutiveFailures: u.ConsecutiveFailures,
		TimesScraped:        u.TimesScraped,
		TimesSuccessful:     u.TimesSuccessful,
		SuccessRate:         u.SuccessRate,
		LatestBlobKey:       nullString(u.LatestBlobKey),
		CreatedAt:           u.CreatedAt.UTC(),
		UpdatedAt:           u.UpdatedAt.UTC(),
	}
	if model.Status == "" {
		model.Status = string(scrapeurl.StatusActive)
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = now
	}

	query, args, err := qb.InsertModel(r.table, model, fmt.Sprintf(`ON CONFLICT (url)
DO UPDATE SET
    entity_id = EXCLUDED.entity_id,
    tournament_id = EXCLUDED.tournament_id,
    status = EXCLUDED.status,
    last_scraped_at = EXCLUDED.last_scraped_at,
    last_attempt_status = EXCLUDED.last_attempt_status,
    game_status = EXCLUDED.game_status,
    game_id = EXCLUDED.game_id,
    do_not_scrape = EXCLUDED.do_not_scrape,
    consecutive_failures = EXCLUDED.consecutive_failures,
    times_scraped = EXCLUDED.times_scraped,
    times_successful = EXCLUDED.times_successful,
    success_rate = EXCLUDED.success_rate,
    latest_blob_key = COALESCE(EXCLUDED.latest_blob_key, %s.latest_blob_key),
    updated_at = EXCLUDED.updated_at`, r.table))
	if err != nil {
		return fmt.Errorf("build upsert scrape url query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("upsert scrape url=%s: %w", u.URL, err)
	}
	return nil
}

func (r *ScrapeURLRepository) ListByEntity(ctx context.Context, entityID string, filter scrapeurl.Filter) ([]scrapeurl.ScrapeURL, error) {
	filter.EntityIDs = []string{entityID}
	return r.Scan(ctx, filter)
}

func (r *ScrapeURLRepository) Scan(ctx context.Context, filter scrapeurl.Filter) ([]scrapeurl.ScrapeURL, error) {
	conditions := make([]qb.Condition, 0, 2)
	if len(filter.EntityIDs) > 0 {
		conditions = append(conditions, qb.In("entity_id", qb.Strings(filter.EntityIDs)))
	}
	if filter.Status != "" {
		conditions = append(conditions, qb.Eq("status", string(filter.Status)))
	}

	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		OrderBy("entity_id ASC", "tournament_id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build scan scrape urls query: %w", err)
	}
	return r.list(ctx, "scan", query, args)
}

func (r *ScrapeURLRepository) ListStale(ctx context.Context, entityID string, before time.Time, limit int) ([]scrapeurl.ScrapeURL, error) {
	conditions := []qb.Condition{
		qb.Eq("status", string(scrapeurl.StatusActive)),
		qb.Eq("do_not_scrape", false),
		qb.Or(qb.IsNull("last_scraped_at"), qb.Lt("last_scraped_at", before.UTC())),
	}
	if entityID != "" {
		conditions = append(conditions, qb.Eq("entity_id", entityID))
	}

	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		OrderBy("last_scraped_at ASC NULLS FIRST", "entity_id ASC", "tournament_id ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list stale scrape urls query: %w", err)
	}
	return r.list(ctx, "stale entity="+entityID, query, args)
}

func (r *ScrapeURLRepository) ListNotFoundIDs(ctx context.Context, entityID string) ([]int64, error) {
	query, args, err := qb.Select("tournament_id").From(r.table).
		Where(
			qb.Eq("entity_id", entityID),
			qb.Eq("last_attempt_status", string(scrapeurl.AttemptNotFound)),
		).
		OrderBy("tournament_id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list not found ids query: %w", err)
	}

	ids := make([]int64, 0)
	if err := selectRows(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list not found ids entity=%s: %w", entityID, err)
	}
	return ids, nil
}

func (r *ScrapeURLRepository) list(ctx context.Context, label, query string, args []any) ([]scrapeurl.ScrapeURL, error) {
	var rows []scrapeURLTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list scrape urls %s: %w", label, err)
	}

	out := make([]scrapeurl.ScrapeURL, 0, len(rows))
	for _, row := range rows {
		out = append(out, scrapeURLFromRow(row))
	}
	return out, nil
}

func scrapeURLFromRow(row scrapeURLTableModel) scrapeurl.ScrapeURL {
	return scrapeurl.ScrapeURL{
		ID:                  row.ID,
		URL:                 row.URL,
		EntityID:            row.EntityID,
		TournamentID:        row.TournamentID,
		Status:              scrapeurl.Status(row.Status),
		LastScrapedAt:       utcPtr(row.LastScrapedAt),
		LastAttemptStatus:   scrapeurl.AttemptStatus(row.LastAttemptStatus),
		GameStatus:          game.Status(row.GameStatus),
		GameID:              row.GameID,
		DoNotScrape:         row.DoNotScrape,
		ConsecutiveFailures: row.ConsecutiveFailures,
		TimesScraped:        row.TimesScraped,
		TimesSuccessful:     row.TimesSuccessful,
		SuccessRate:         row.SuccessRate,
		LatestBlobKey:       stringPtr(row.LatestBlobKey),
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
}

type ScrapeAttemptRepository struct {
	db    *sqlx.DB
	table string
}

func NewScrapeAttemptRepository(db *sqlx.DB, table string) *ScrapeAttemptRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().ScrapeAttempts
	}
	return &ScrapeAttemptRepository{db: db, table: table}
}

func (r *ScrapeAttemptRepository) Insert(ctx context.Context, a scrapeurl.Attempt) error {
	attemptedAt := a.AttemptedAt.UTC()
	if attemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}
	model := scrapeAttemptTableModel{
		ID:               a.ID,
		ScrapeURLID:      a.ScrapeURLID,
		URL:              a.URL,
		EntityID:         a.EntityID,
		TournamentID:     a.TournamentID,
		JobID:            a.JobID,
		Status:           string(a.Status),
		Action:           a.Action,
		GameID:           a.GameID,
		ContentHash:      a.ContentHash,
		ErrorMessage:     a.ErrorMessage,
		ErrorFingerprint: a.ErrorFingerprint,
		DurationMS:       a.Duration.Milliseconds(),
		AttemptedAt:      attemptedAt,
	}

	query, args, err := qb.InsertModel(r.table, model, "ON CONFLICT (id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert scrape attempt query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("insert scrape attempt url=%s: %w", a.URL, err)
	}
	return nil
}

func (r *ScrapeAttemptRepository) ListByURL(ctx context.Context, url string, limit int) ([]scrapeurl.Attempt, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("url", url)).
		OrderBy("attempted_at DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list scrape attempts query: %w", err)
	}

	var rows []scrapeAttemptTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list scrape attempts url=%s: %w", url, err)
	}

	out := make([]scrapeurl.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, scrapeurl.Attempt{
			ID:               row.ID,
			ScrapeURLID:      row.ScrapeURLID,
			URL:              row.URL,
			EntityID:         row.EntityID,
			TournamentID:     row.TournamentID,
			JobID:            row.JobID,
			Status:           scrapeurl.AttemptStatus(row.Status),
			Action:           row.Action,
			GameID:           row.GameID,
			ContentHash:      row.ContentHash,
			ErrorMessage:     row.ErrorMessage,
			ErrorFingerprint: row.ErrorFingerprint,
			Duration:         time.Duration(row.DurationMS) * time.Millisecond,
			AttemptedAt:      row.AttemptedAt.UTC(),
		})
	}
	return out, nil
}

func (r *ScrapeAttemptRepository) CountByStatusSince(ctx context.Context, entityID string, since time.Time) (map[scrapeurl.AttemptStatus]int, error) {
	query, args, err := qb.Select("status", "COUNT(1) AS total").From(r.table).
		Where(qb.Eq("entity_id", entityID), qb.Gte("attempted_at", since.UTC())).
		GroupBy("status").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build count scrape attempts query: %w", err)
	}

	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count scrape attempts entity=%s: %w", entityID, err)
	}

	out := make(map[scrapeurl.AttemptStatus]int, len(rows))
	for _, row := range rows {
		out[scrapeurl.AttemptStatus(row.Status)] = row.Total
	}
	return out, nil
}
