package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

type blobRecordTableModel struct {
	ID               string     `db:"id"`
	ScrapeURLID      string     `db:"scrape_url_id"`
	URL              string     `db:"url"`
	EntityID         string     `db:"entity_id"`
	TournamentID     int64      `db:"tournament_id"`
	Source           string     `db:"source"`
	BlobKey          string     `db:"blob_key"`
	ContentHash      string     `db:"content_hash"`
	ContentSize      int        `db:"content_size"`
	GameStatus       string     `db:"game_status"`
	VersionNumber    int        `db:"version_number"`
	TotalVersions    int        `db:"total_versions"`
	StoredAt         time.Time  `db:"stored_at"`
	PreviousVersions string     `db:"previous_versions"`
	IsParsed         bool       `db:"is_parsed"`
	ParseCount       int        `db:"parse_count"`
	LastParsedAt     *time.Time `db:"last_parsed_at"`
	DataChangedAt    *time.Time `db:"data_changed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type BlobRepository struct {
	db    *sqlx.DB
	table string
}

func NewBlobRepository(db *sqlx.DB, table string) *BlobRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().BlobRecords
	}
	return &BlobRepository{db: db, table: table}
}

func (r *BlobRepository) FindByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (blob.Record, bool, error) {
	return r.findOne(ctx,
		fmt.Sprintf("entity=%s tournament=%d", entityID, tournamentID),
		qb.Eq("entity_id", entityID),
		qb.Eq("tournament_id", tournamentID),
	)
}

func (r *BlobRepository) FindByBlobKey(ctx context.Context, blobKey string) (blob.Record, bool, error) {
	return r.findOne(ctx, "blob_key="+blobKey, qb.Eq("blob_key", blobKey))
}

func (r *BlobRepository) FindByURL(ctx context.Context, url string) (blob.Record, bool, error) {
	return r.findOne(ctx, "url="+url, qb.Eq("url", url))
}

func (r *BlobRepository) GetByID(ctx context.Context, id string) (blob.Record, bool, error) {
	return r.findOne(ctx, "id="+id, qb.Eq("id", id))
}

func (r *BlobRepository) findOne(ctx context.Context, label string, conditions ...qb.Condition) (blob.Record, bool, error) {
	query, args, err := qb.Select("*").From(r.table).
		Where(conditions...).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return blob.Record{}, false, fmt.Errorf("build select blob record query: %w", err)
	}

	var row blobRecordTableModel
	if err := getRow(ctx, r.db, &row, query, args...); err != nil {
		if isNotFound(err) {
			return blob.Record{}, false, nil
		}
		return blob.Record{}, false, fmt.Errorf("select blob record %s: %w", label, err)
	}

	rec, err := blobRecordFromRow(row)
	if err != nil {
		return blob.Record{}, false, fmt.Errorf("decode blob record %s: %w", label, err)
	}
	return rec, true, nil
}

func (r *BlobRepository) Create(ctx context.Context, rec blob.Record) error {
	model, err := blobRecordToRow(rec)
	if err != nil {
		return fmt.Errorf("encode blob record id=%s: %w", rec.ID, err)
	}

	query, args, err := qb.InsertModel(r.table, model, "")
	if err != nil {
		return fmt.Errorf("build insert blob record query: %w", err)
	}
	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("insert blob record id=%s: %w", rec.ID, err)
	}
	return nil
}

func (r *BlobRepository) Update(ctx context.Context, rec blob.Record) error {
	model, err := blobRecordToRow(rec)
	if err != nil {
		return fmt.Errorf("encode blob record id=%s: %w", rec.ID, err)
	}

	query, args, err := qb.Update(r.table).
		Set("scrape_url_id", model.ScrapeURLID).
		Set("url", model.URL).
		Set("source", model.Source).
		Set("blob_key", model.BlobKey).
		Set("content_hash", model.ContentHash).
		Set("content_size", model.ContentSize).
		Set("game_status", model.GameStatus).
		Set("version_number", model.VersionNumber).
		Set("total_versions", model.TotalVersions).
		Set("stored_at", model.StoredAt).
		SetExpr("previous_versions", "?::jsonb", model.PreviousVersions).
		Set("is_parsed", model.IsParsed).
		Set("parse_count", model.ParseCount).
		Set("last_parsed_at", model.LastParsedAt).
		Set("data_changed_at", model.DataChangedAt).
		Set("updated_at", model.UpdatedAt).
		Where(qb.Eq("id", rec.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update blob record query: %w", err)
	}

	affected, err := execRows(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("update blob record id=%s: %w", rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update blob record id=%s: not found", rec.ID)
	}
	return nil
}

func blobRecordToRow(rec blob.Record) (blobRecordTableModel, error) {
	previous := rec.PreviousVersions
	if previous == nil {
		previous = []blob.Version{}
	}
	encoded, err := encodeJSON(previous)
	if err != nil {
		return blobRecordTableModel{}, err
	}

	now := time.Now().UTC()
	row := blobRecordTableModel{
		ID:               rec.ID,
		ScrapeURLID:      rec.ScrapeURLID,
		URL:              rec.URL,
		EntityID:         rec.EntityID,
		TournamentID:     rec.TournamentID,
		Source:           string(rec.Source),
		BlobKey:          rec.BlobKey,
		ContentHash:      rec.ContentHash,
		ContentSize:      rec.ContentSize,
		GameStatus:       string(rec.GameStatus),
		VersionNumber:    rec.VersionNumber,
		TotalVersions:    rec.TotalVersions,
		StoredAt:         rec.StoredAt.UTC(),
		PreviousVersions: encoded,
		IsParsed:         rec.IsParsed,
		ParseCount:       rec.ParseCount,
		LastParsedAt:     utcPtr(rec.LastParsedAt),
		DataChangedAt:    utcPtr(rec.DataChangedAt),
		CreatedAt:        rec.CreatedAt.UTC(),
		UpdatedAt:        rec.UpdatedAt.UTC(),
	}
	if row.Source == "" {
		row.Source = string(blob.SourceScrape)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	return row, nil
}

func blobRecordFromRow(row blobRecordTableModel) (blob.Record, error) {
	var previous []blob.Version
	if err := decodeJSON(row.PreviousVersions, &previous); err != nil {
		return blob.Record{}, err
	}
	return blob.Record{
		ID:               row.ID,
		ScrapeURLID:      row.ScrapeURLID,
		URL:              row.URL,
		EntityID:         row.EntityID,
		TournamentID:     row.TournamentID,
		Source:           blob.Source(row.Source),
		BlobKey:          row.BlobKey,
		ContentHash:      row.ContentHash,
		ContentSize:      row.ContentSize,
		GameStatus:       game.Status(row.GameStatus),
		VersionNumber:    row.VersionNumber,
		TotalVersions:    row.TotalVersions,
		StoredAt:         row.StoredAt.UTC(),
		PreviousVersions: previous,
		IsParsed:         row.IsParsed,
		ParseCount:       row.ParseCount,
		LastParsedAt:     utcPtr(row.LastParsedAt),
		DataChangedAt:    utcPtr(row.DataChangedAt),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}
