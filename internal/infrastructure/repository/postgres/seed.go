package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the reference entity, venues and series titles into an empty database.
func BootstrapSeed(ctx context.Context, db *sqlx.DB, tables Tables) error {
	tables = tables.WithDefaults()

	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM `+tables.Entities); err != nil {
		return fmt.Errorf("count entities for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range memory.SeedEntities() {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO `+tables.Entities+` (id, name, default_venue_id, game_url_template, active)
VALUES (:id, :name, :default_venue_id, :game_url_template, :active)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":                e.ID,
			"name":              e.Name,
			"default_venue_id":  e.DefaultVenueID,
			"game_url_template": e.GameURLTemplate,
			"active":            e.Active,
		})
		if err != nil {
			return fmt.Errorf("bind seed entity %s query: %w", e.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed entity %s: %w", e.ID, err)
		}
	}

	for _, v := range memory.SeedVenues() {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO `+tables.Venues+` (id, entity_id, name, aliases, fee, active)
VALUES (:id, :entity_id, :name, :aliases, :fee, :active)
ON CONFLICT (entity_id, id) DO NOTHING`, map[string]any{
			"id":        v.ID,
			"entity_id": v.EntityID,
			"name":      v.Name,
			"aliases":   pq.StringArray(v.Aliases),
			"fee":       v.Fee,
			"active":    v.Active,
		})
		if err != nil {
			return fmt.Errorf("bind seed venue %s query: %w", v.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed venue %s: %w", v.ID, err)
		}
	}

	for _, t := range memory.SeedSeriesTitles() {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO `+tables.SeriesTitles+` (id, title, aliases, category)
VALUES (:id, :title, :aliases, :category)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":       t.ID,
			"title":    t.Title,
			"aliases":  pq.StringArray(t.Aliases),
			"category": t.Category,
		})
		if err != nil {
			return fmt.Errorf("bind seed series title %s query: %w", t.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed series title %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
