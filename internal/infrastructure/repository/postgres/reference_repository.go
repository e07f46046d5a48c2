package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

type entityTableModel struct {
	ID              string `db:"id"`
	Name            string `db:"name"`
	DefaultVenueID  string `db:"default_venue_id"`
	GameURLTemplate string `db:"game_url_template"`
	Active          bool   `db:"active"`
}

type venueTableModel struct {
	ID       string         `db:"id"`
	EntityID string         `db:"entity_id"`
	Name     string         `db:"name"`
	Aliases  pq.StringArray `db:"aliases"`
	Fee      float64        `db:"fee"`
	Active   bool           `db:"active"`
}

type seriesTitleTableModel struct {
	ID       string         `db:"id"`
	Title    string         `db:"title"`
	Aliases  pq.StringArray `db:"aliases"`
	Category string         `db:"category"`
}

type seriesTableModel struct {
	ID         string        `db:"id"`
	TitleID    string        `db:"title_id"`
	EntityID   string        `db:"entity_id"`
	VenueID    string        `db:"venue_id"`
	Name       string        `db:"name"`
	Year       int           `db:"year"`
	Month      sql.NullInt64 `db:"month"`
	Quarter    sql.NullInt64 `db:"quarter"`
	StartDate  *time.Time    `db:"start_date"`
	EndDate    *time.Time    `db:"end_date"`
	EventCount int           `db:"event_count"`
	Status     string        `db:"status"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

type EntityRepository struct {
	db    *sqlx.DB
	table string
}

func NewEntityRepository(db *sqlx.DB, table string) *EntityRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().Entities
	}
	return &EntityRepository{db: db, table: table}
}

func (r *EntityRepository) ListActive(ctx context.Context) ([]entity.Entity, error) {
	query, args, err := qb.Select("id", "name", "default_venue_id", "game_url_template", "active").
		From(r.table).
		Where(qb.Eq("active", true)).
		OrderBy("id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list active entities query: %w", err)
	}

	var rows []entityTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list active entities: %w", err)
	}

	out := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, entityFromRow(row))
	}
	return out, nil
}

func (r *EntityRepository) GetByID(ctx context.Context, entityID string) (entity.Entity, bool, error) {
	query, args, err := qb.Select("id", "name", "default_venue_id", "game_url_template", "active").
		From(r.table).
		Where(qb.Eq("id", entityID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("build select entity query: %w", err)
	}

	var row entityTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return entity.Entity{}, false, nil
		}
		return entity.Entity{}, false, fmt.Errorf("select entity id=%s: %w", entityID, err)
	}
	return entityFromRow(row), true, nil
}

func entityFromRow(row entityTableModel) entity.Entity {
	return entity.Entity{
		ID:              row.ID,
		Name:            row.Name,
		DefaultVenueID:  row.DefaultVenueID,
		GameURLTemplate: row.GameURLTemplate,
		Active:          row.Active,
	}
}

type VenueRepository struct {
	db    *sqlx.DB
	table string
}

func NewVenueRepository(db *sqlx.DB, table string) *VenueRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().Venues
	}
	return &VenueRepository{db: db, table: table}
}

func (r *VenueRepository) ListByEntity(ctx context.Context, entityID string) ([]venue.Venue, error) {
	query, args, err := qb.Select("id", "entity_id", "name", "aliases", "fee", "active").
		From(r.table).
		Where(qb.Eq("entity_id", entityID)).
		OrderBy("id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list venues query: %w", err)
	}

	var rows []venueTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list venues entity=%s: %w", entityID, err)
	}

	out := make([]venue.Venue, 0, len(rows))
	for _, row := range rows {
		out = append(out, venueFromRow(row))
	}
	return out, nil
}

func (r *VenueRepository) GetByID(ctx context.Context, entityID, venueID string) (venue.Venue, bool, error) {
	query, args, err := qb.Select("id", "entity_id", "name", "aliases", "fee", "active").
		From(r.table).
		Where(qb.Eq("entity_id", entityID), qb.Eq("id", venueID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return venue.Venue{}, false, fmt.Errorf("build select venue query: %w", err)
	}

	var row venueTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return venue.Venue{}, false, nil
		}
		return venue.Venue{}, false, fmt.Errorf("select venue entity=%s id=%s: %w", entityID, venueID, err)
	}
	return venueFromRow(row), true, nil
}

func venueFromRow(row venueTableModel) venue.Venue {
	return venue.Venue{
		ID:       row.ID,
		EntityID: row.EntityID,
		Name:     row.Name,
		Aliases:  append([]string(nil), row.Aliases...),
		Fee:      row.Fee,
		Active:   row.Active,
	}
}

// SeriesRepository serves both series titles and their dated instances.
type SeriesRepository struct {
	db          *sqlx.DB
	titlesTable string
	table       string
}

func NewSeriesRepository(db *sqlx.DB, titlesTable, table string) *SeriesRepository {
	defaults := DefaultTables()
	if strings.TrimSpace(titlesTable) == "" {
		titlesTable = defaults.SeriesTitles
	}
	if strings.TrimSpace(table) == "" {
		table = defaults.Series
	}
	return &SeriesRepository{db: db, titlesTable: titlesTable, table: table}
}

func (r *SeriesRepository) ListTitles(ctx context.Context) ([]series.Title, error) {
	query, args, err := qb.Select("id", "title", "aliases", "category").
		From(r.titlesTable).
		OrderBy("id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list series titles query: %w", err)
	}

	var rows []seriesTitleTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list series titles: %w", err)
	}

	out := make([]series.Title, 0, len(rows))
	for _, row := range rows {
		out = append(out, titleFromRow(row))
	}
	return out, nil
}

func (r *SeriesRepository) GetTitleByID(ctx context.Context, titleID string) (series.Title, bool, error) {
	query, args, err := qb.Select("id", "title", "aliases", "category").
		From(r.titlesTable).
		Where(qb.Eq("id", titleID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return series.Title{}, false, fmt.Errorf("build select series title query: %w", err)
	}

	var row seriesTitleTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return series.Title{}, false, nil
		}
		return series.Title{}, false, fmt.Errorf("select series title id=%s: %w", titleID, err)
	}
	return titleFromRow(row), true, nil
}

func titleFromRow(row seriesTitleTableModel) series.Title {
	return series.Title{
		ID:       row.ID,
		Title:    row.Title,
		Aliases:  append([]string(nil), row.Aliases...),
		Category: row.Category,
	}
}

func (r *SeriesRepository) GetByID(ctx context.Context, seriesID string) (series.Series, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(qb.Eq("id", seriesID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return series.Series{}, false, fmt.Errorf("build select series query: %w", err)
	}

	var row seriesTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return series.Series{}, false, nil
		}
		return series.Series{}, false, fmt.Errorf("select series id=%s: %w", seriesID, err)
	}
	return seriesFromRow(row), true, nil
}

func (r *SeriesRepository) ListByTitle(ctx context.Context, titleID string) ([]series.Series, error) {
	return r.list(ctx, "title="+titleID, qb.Eq("title_id", titleID))
}

func (r *SeriesRepository) ListByYear(ctx context.Context, year int) ([]series.Series, error) {
	return r.list(ctx, fmt.Sprintf("year=%d", year), qb.Eq("year", year))
}

func (r *SeriesRepository) list(ctx context.Context, label string, conditions ...qb.Condition) ([]series.Series, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		OrderBy("id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list series query: %w", err)
	}

	var rows []seriesTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list series %s: %w", label, err)
	}

	out := make([]series.Series, 0, len(rows))
	for _, row := range rows {
		out = append(out, seriesFromRow(row))
	}
	return out, nil
}

func (r *SeriesRepository) Create(ctx context.Context, s series.Series) error {
	now := time.Now().UTC()
	model := seriesTableModel{
		ID:         s.ID,
		TitleID:    s.TitleID,
		EntityID:   s.EntityID,
		VenueID:    s.VenueID,
		Name:       s.Name,
		Year:       s.Year,
		Month:      intParam(s.Month),
		Quarter:    intParam(s.Quarter),
		StartDate:  utcPtr(s.StartDate),
		EndDate:    utcPtr(s.EndDate),
		EventCount: s.EventCount,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = now
	}
	if model.Status == "" {
		model.Status = string(series.StatusScheduled)
	}

	query, args, err := qb.InsertModel(r.table, model, "ON CONFLICT (id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert series query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("insert series id=%s: %w", s.ID, err)
	}
	return nil
}

func (r *SeriesRepository) ExpandRange(ctx context.Context, seriesID string, at time.Time) error {
	at = at.UTC()
	query, args, err := qb.Update(r.table).
		SetExpr("start_date", "LEAST(COALESCE(start_date, ?), ?)", at, at).
		SetExpr("end_date", "GREATEST(COALESCE(end_date, ?), ?)", at, at).
		SetExpr("event_count", "event_count + 1").
		Set("updated_at", at).
		Where(qb.Eq("id", seriesID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build expand series range query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("expand series range id=%s: %w", seriesID, err)
	}
	return nil
}

func seriesFromRow(row seriesTableModel) series.Series {
	return series.Series{
		ID:         row.ID,
		TitleID:    row.TitleID,
		EntityID:   row.EntityID,
		VenueID:    row.VenueID,
		Name:       row.Name,
		Year:       row.Year,
		Month:      nullInt(row.Month),
		Quarter:    nullInt(row.Quarter),
		StartDate:  utcPtr(row.StartDate),
		EndDate:    utcPtr(row.EndDate),
		EventCount: row.EventCount,
		Status:     series.Status(row.Status),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}
