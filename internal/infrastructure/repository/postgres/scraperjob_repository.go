package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

var activeJobStatuses = []string{
	string(scraperjob.StatusPending),
	string(scraperjob.StatusRunning),
}

type scraperJobTableModel struct {
	ID              string          `db:"id"`
	EntityID        string          `db:"entity_id"`
	Status          string          `db:"status"`
	Mode            string          `db:"mode"`
	StartID         sql.NullInt64   `db:"start_id"`
	EndID           sql.NullInt64   `db:"end_id"`
	MaxID           sql.NullInt64   `db:"max_id"`
	GapIDs          string          `db:"gap_ids"`
	BulkCount       sql.NullInt64   `db:"bulk_count"`
	Thresholds      string          `db:"thresholds"`
	Options         string          `db:"options"`
	Counters        string          `db:"counters"`
	TriggeredBy     string          `db:"triggered_by"`
	StartTime       time.Time       `db:"start_time"`
	EndTime         *time.Time      `db:"end_time"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
	StopReason      string          `db:"stop_reason"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type scraperStateTableModel struct {
	EntityID        string     `db:"entity_id"`
	HighestStoredID int64      `db:"highest_stored_id"`
	LowestStoredID  int64      `db:"lowest_stored_id"`
	TotalGames      int        `db:"total_games"`
	KnownGapRanges  string     `db:"known_gap_ranges"`
	MissingCount    int64      `db:"missing_count"`
	GapsTruncated   bool       `db:"gaps_truncated"`
	ScanStartID     int64      `db:"scan_start_id"`
	ScanEndID       int64      `db:"scan_end_id"`
	LastGapScanAt   *time.Time `db:"last_gap_scan_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type ScraperJobRepository struct {
	db    *sqlx.DB
	table string
}

func NewScraperJobRepository(db *sqlx.DB, table string) *ScraperJobRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().ScraperJobs
	}
	return &ScraperJobRepository{db: db, table: table}
}

func (r *ScraperJobRepository) Create(ctx context.Context, j scraperjob.Job) error {
	model, err := scraperJobToRow(j)
	if err != nil {
		return fmt.Errorf("encode scraper job id=%s: %w", j.ID, err)
	}

	query, args, err := qb.InsertModel(r.table, model, "")
	if err != nil {
		return fmt.Errorf("build insert scraper job query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("insert scraper job id=%s: %w", j.ID, err)
	}
	return nil
}

func (r *ScraperJobRepository) GetByID(ctx context.Context, id string) (scraperjob.Job, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("id", id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return scraperjob.Job{}, false, fmt.Errorf("build select scraper job query: %w", err)
	}

	var row scraperJobTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return scraperjob.Job{}, false, nil
		}
		return scraperjob.Job{}, false, fmt.Errorf("select scraper job id=%s: %w", id, err)
	}

	j, err := scraperJobFromRow(row)
	if err != nil {
		return scraperjob.Job{}, false, fmt.Errorf("decode scraper job id=%s: %w", id, err)
	}
	return j, true, nil
}

// Save writes progress; status columns are only replaced while the stored job is still active.
func (r *ScraperJobRepository) Save(ctx context.Context, j scraperjob.Job) error {
	model, err := scraperJobToRow(j)
	if err != nil {
		return fmt.Errorf("encode scraper job id=%s: %w", j.ID, err)
	}

	active := fmt.Sprintf("%s.status IN ('%s', '%s')", r.table, scraperjob.StatusPending, scraperjob.StatusRunning)
	keep := func(col string) string {
		return fmt.Sprintf("%s = CASE WHEN %s THEN EXCLUDED.%s ELSE %s.%s END", col, active, col, r.table, col)
	}
	suffix := "ON CONFLICT (id)\nDO UPDATE SET\n    " + strings.Join([]string{
		keep("status"),
		keep("stop_reason"),
		keep("end_time"),
		keep("duration_seconds"),
		"gap_ids = EXCLUDED.gap_ids",
		"counters = EXCLUDED.counters",
		"start_id = EXCLUDED.start_id",
		"end_id = EXCLUDED.end_id",
		"max_id = EXCLUDED.max_id",
		"updated_at = EXCLUDED.updated_at",
	}, ",\n    ")

	query, args, err := qb.InsertModel(r.table, model, suffix)
	if err != nil {
		return fmt.Errorf("build save scraper job query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("save scraper job id=%s: %w", j.ID, err)
	}
	return nil
}

func (r *ScraperJobRepository) TransitionStatus(ctx context.Context, id string, from []scraperjob.Status, next scraperjob.Status, reason string, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	fromValues := make([]string, 0, len(from))
	for _, s := range from {
		fromValues = append(fromValues, string(s))
	}

	at = at.UTC()
	builder := qb.Update(r.table).
		Set("status", string(next)).
		Set("updated_at", at)
	if next.IsTerminal() {
		builder = builder.
			Set("stop_reason", reason).
			Set("end_time", at).
			SetExpr("duration_seconds", "EXTRACT(EPOCH FROM (?::timestamptz - start_time))", at)
	}
	query, args, err := builder.
		Where(qb.Eq("id", id), qb.In("status", qb.Strings(fromValues))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build transition scraper job query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition scraper job id=%s to=%s: %w", id, next, err)
	}
	return affected > 0, nil
}

func (r *ScraperJobRepository) List(ctx context.Context, filter scraperjob.Filter) ([]scraperjob.Job, error) {
	conditions := make([]qb.Condition, 0, 3)
	if filter.EntityID != "" {
		conditions = append(conditions, qb.Eq("entity_id", filter.EntityID))
	}
	if filter.Status != "" {
		conditions = append(conditions, qb.Eq("status", string(filter.Status)))
	}
	if filter.Since != nil {
		conditions = append(conditions, qb.Gte("created_at", filter.Since.UTC()))
	}

	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		OrderBy("created_at DESC", "id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list scraper jobs query: %w", err)
	}

	var rows []scraperJobTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list scraper jobs: %w", err)
	}

	out := make([]scraperjob.Job, 0, len(rows))
	for _, row := range rows {
		j, err := scraperJobFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode scraper job id=%s: %w", row.ID, err)
		}
		out = append(out, j)
	}
	return out, nil
}

func (r *ScraperJobRepository) HasActive(ctx context.Context, entityID string) (bool, error) {
	query, args, err := qb.Select("COUNT(1)").From(r.table).
		Where(qb.Eq("entity_id", entityID), qb.In("status", qb.Strings(activeJobStatuses))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build active scraper job query: %w", err)
	}

	var total int
	if err := getRow(ctx, r.db, &total, query, args...); err != nil {
		return false, fmt.Errorf("count active scraper jobs entity=%s: %w", entityID, err)
	}
	return total > 0, nil
}

func scraperJobToRow(j scraperjob.Job) (scraperJobTableModel, error) {
	gapIDs := j.GapIDs
	if gapIDs == nil {
		gapIDs = []int64{}
	}
	encodedGaps, err := encodeJSON(gapIDs)
	if err != nil {
		return scraperJobTableModel{}, err
	}
	thresholds, err := encodeJSON(j.Thresholds)
	if err != nil {
		return scraperJobTableModel{}, err
	}
	options, err := encodeJSON(j.Options)
	if err != nil {
		return scraperJobTableModel{}, err
	}
	counters, err := encodeJSON(j.Counters)
	if err != nil {
		return scraperJobTableModel{}, err
	}

	now := time.Now().UTC()
	row := scraperJobTableModel{
		ID:              j.ID,
		EntityID:        j.EntityID,
		Status:          string(j.Status),
		Mode:            string(j.Mode),
		StartID:         int64Param(j.StartID),
		EndID:           int64Param(j.EndID),
		MaxID:           int64Param(j.MaxID),
		GapIDs:          encodedGaps,
		BulkCount:       intParam(j.BulkCount),
		Thresholds:      thresholds,
		Options:         options,
		Counters:        counters,
		TriggeredBy:     j.TriggeredBy,
		StartTime:       j.StartTime.UTC(),
		EndTime:         utcPtr(j.EndTime),
		DurationSeconds: floatParam(j.DurationSeconds),
		StopReason:      j.StopReason,
		CreatedAt:       j.CreatedAt.UTC(),
		UpdatedAt:       j.UpdatedAt.UTC(),
	}
	if row.StartTime.IsZero() {
		row.StartTime = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	return row, nil
}

func scraperJobFromRow(row scraperJobTableModel) (scraperjob.Job, error) {
	j := scraperjob.Job{
		ID:              row.ID,
		EntityID:        row.EntityID,
		Status:          scraperjob.Status(row.Status),
		Mode:            scraperjob.Mode(row.Mode),
		StartID:         nullInt64(row.StartID),
		EndID:           nullInt64(row.EndID),
		MaxID:           nullInt64(row.MaxID),
		BulkCount:       nullInt(row.BulkCount),
		TriggeredBy:     row.TriggeredBy,
		StartTime:       row.StartTime.UTC(),
		EndTime:         utcPtr(row.EndTime),
		DurationSeconds: nullFloat(row.DurationSeconds),
		StopReason:      row.StopReason,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if err := decodeJSON(row.GapIDs, &j.GapIDs); err != nil {
		return scraperjob.Job{}, fmt.Errorf("gap ids: %w", err)
	}
	if err := decodeJSON(row.Thresholds, &j.Thresholds); err != nil {
		return scraperjob.Job{}, fmt.Errorf("thresholds: %w", err)
	}
	if err := decodeJSON(row.Options, &j.Options); err != nil {
		return scraperjob.Job{}, fmt.Errorf("options: %w", err)
	}
	if err := decodeJSON(row.Counters, &j.Counters); err != nil {
		return scraperjob.Job{}, fmt.Errorf("counters: %w", err)
	}
	return j, nil
}

type ScraperStateRepository struct {
	db    *sqlx.DB
	table string
}

func NewScraperStateRepository(db *sqlx.DB, table string) *ScraperStateRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().ScraperStates
	}
	return &ScraperStateRepository{db: db, table: table}
}

func (r *ScraperStateRepository) Get(ctx context.Context, entityID string) (scraperjob.State, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("entity_id", entityID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return scraperjob.State{}, false, fmt.Errorf("build select scraper state query: %w", err)
	}

	var row scraperStateTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return scraperjob.State{}, false, nil
		}
		return scraperjob.State{}, false, fmt.Errorf("select scraper state entity=%s: %w", entityID, err)
	}

	s := scraperjob.State{
		EntityID:        row.EntityID,
		HighestStoredID: row.HighestStoredID,
		LowestStoredID:  row.LowestStoredID,
		TotalGames:      row.TotalGames,
		MissingCount:    row.MissingCount,
		GapsTruncated:   row.GapsTruncated,
		ScanStartID:     row.ScanStartID,
		ScanEndID:       row.ScanEndID,
		LastGapScanAt:   utcPtr(row.LastGapScanAt),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if err := decodeJSON(row.KnownGapRanges, &s.KnownGapRanges); err != nil {
		return scraperjob.State{}, false, fmt.Errorf("decode scraper state entity=%s: %w", entityID, err)
	}
	return s, true, nil
}

func (r *ScraperStateRepository) Upsert(ctx context.Context, s scraperjob.State) error {
	ranges := s.KnownGapRanges
	if ranges == nil {
		ranges = []scraperjob.GapRange{}
	}
	encoded, err := encodeJSON(ranges)
	if err != nil {
		return fmt.Errorf("encode scraper state entity=%s: %w", s.EntityID, err)
	}
	updatedAt := s.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	model := scraperStateTableModel{
		EntityID:        s.EntityID,
		HighestStoredID: s.HighestStoredID,
		LowestStoredID:  s.LowestStoredID,
		TotalGames:      s.TotalGames,
		KnownGapRanges:  encoded,
		MissingCount:    s.MissingCount,
		GapsTruncated:   s.GapsTruncated,
		ScanStartID:     s.ScanStartID,
		ScanEndID:       s.ScanEndID,
		LastGapScanAt:   utcPtr(s.LastGapScanAt),
		UpdatedAt:       updatedAt,
	}
	query, args, err := qb.InsertModel(r.table, model, `ON CONFLICT (entity_id)
DO UPDATE SET
    highest_stored_id = EXCLUDED.highest_stored_id,
    lowest_stored_id = EXCLUDED.lowest_stored_id,
    total_games = EXCLUDED.total_games,
    known_gap_ranges = EXCLUDED.known_gap_ranges,
    missing_count = EXCLUDED.missing_count,
    gaps_truncated = EXCLUDED.gaps_truncated,
    scan_start_id = EXCLUDED.scan_start_id,
    scan_end_id = EXCLUDED.scan_end_id,
    last_gap_scan_at = EXCLUDED.last_gap_scan_at,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert scraper state query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("upsert scraper state entity=%s: %w", s.EntityID, err)
	}
	return nil
}
