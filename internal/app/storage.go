package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/kingsroom-ingest/internal/config"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/blob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/jobscheduler"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	cacherepo "github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/postgres"
	basecache "github.com/riskibarqy/kingsroom-ingest/internal/platform/cache"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const dbPingTimeout = 5 * time.Second

type repositories struct {
	entities   entity.Repository
	venues     venue.Repository
	titles     series.TitleRepository
	series     series.Repository
	recurring  recurring.Repository
	games      game.Repository
	entries    game.PlayerEntryRepository
	snapshots  game.SnapshotRepository
	urls       scrapeurl.Repository
	attempts   scrapeurl.AttemptRepository
	blobs      blob.Repository
	jobs       scraperjob.Repository
	states     scraperjob.StateRepository
	dispatches jobscheduler.Repository
}

func newMemoryRepositories() repositories {
	seriesRepo := memory.NewSeriesRepository(memory.SeedSeriesTitles(), nil)
	return repositories{
		entities:   memory.NewEntityRepository(memory.SeedEntities()),
		venues:     memory.NewVenueRepository(memory.SeedVenues()),
		titles:     seriesRepo,
		series:     seriesRepo,
		recurring:  memory.NewRecurringRepository(),
		games:      memory.NewGameRepository(),
		entries:    memory.NewPlayerEntryRepository(),
		snapshots:  memory.NewSnapshotRepository(),
		urls:       memory.NewScrapeURLRepository(),
		attempts:   memory.NewScrapeAttemptRepository(),
		blobs:      memory.NewBlobRepository(),
		jobs:       memory.NewScraperJobRepository(),
		states:     memory.NewScraperStateRepository(),
		dispatches: memory.NewDispatchEventRepository(),
	}
}

func newPostgresRepositories(db *sqlx.DB, tables postgres.Tables) repositories {
	tables = tables.WithDefaults()
	seriesRepo := postgres.NewSeriesRepository(db, tables.SeriesTitles, tables.Series)
	return repositories{
		entities:   postgres.NewEntityRepository(db, tables.Entities),
		venues:     postgres.NewVenueRepository(db, tables.Venues),
		titles:     seriesRepo,
		series:     seriesRepo,
		recurring:  postgres.NewRecurringRepository(db, tables.RecurringGames),
		games:      postgres.NewGameRepository(db, tables.Games),
		entries:    postgres.NewPlayerEntryRepository(db, tables.PlayerEntries),
		snapshots:  postgres.NewSnapshotRepository(db, tables.FinancialSnapshots),
		urls:       postgres.NewScrapeURLRepository(db, tables.ScrapeURLs),
		attempts:   postgres.NewScrapeAttemptRepository(db, tables.ScrapeAttempts),
		blobs:      postgres.NewBlobRepository(db, tables.BlobRecords),
		jobs:       postgres.NewScraperJobRepository(db, tables.ScraperJobs),
		states:     postgres.NewScraperStateRepository(db, tables.ScraperStates),
		dispatches: postgres.NewJobDispatchRepository(db, tables.JobDispatches),
	}
}

// withCache fronts the read-mostly reference repositories with the TTL store.
func withCache(repos repositories, ttl time.Duration) repositories {
	store := basecache.NewStore(ttl)
	repos.entities = cacherepo.NewEntityRepository(repos.entities, store)
	repos.venues = cacherepo.NewVenueRepository(repos.venues, store)
	repos.titles = cacherepo.NewSeriesTitleRepository(repos.titles, store)
	repos.recurring = cacherepo.NewRecurringRepository(repos.recurring, store)
	return repos
}

func postgresTables(t config.Tables) postgres.Tables {
	return postgres.Tables{
		Entities:           t.Entities,
		Venues:             t.Venues,
		SeriesTitles:       t.SeriesTitles,
		Series:             t.Series,
		RecurringGames:     t.RecurringGames,
		Games:              t.Games,
		PlayerEntries:      t.PlayerEntries,
		FinancialSnapshots: t.FinancialSnapshots,
		ScrapeURLs:         t.ScrapeURLs,
		ScrapeAttempts:     t.ScrapeAttempts,
		BlobRecords:        t.BlobRecords,
		ScraperJobs:        t.ScraperJobs,
		ScraperStates:      t.ScraperStates,
		JobDispatches:      t.JobDispatches,
	}.WithDefaults()
}

func openDatabase(ctx context.Context, cfg config.Config, logger *logging.Logger) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	dbName := dbNameFromURL(dsn)

	opts := []otelsql.Option{
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
		otelsql.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
	}
	if dbName != "" {
		opts = append(opts, otelsql.WithDBName(dbName))
	}

	db, err := otelsqlx.Open("postgres", dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	otelsql.ReportDBStatsMetrics(db.DB, otelsql.WithDBName(dbName))

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres db=%s: %w", dbName, err)
	}

	logger.Info("postgres connected",
		"db_name", dbName,
		"max_open_conns", cfg.DBMaxOpenConns,
		"prepared_binary_disabled", strings.Contains(dsn, "disable_prepared_binary_result=yes"),
	)
	return db, nil
}
