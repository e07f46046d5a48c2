package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/external/jobqueue"
	"github.com/riskibarqy/kingsroom-ingest/external/tournamentsite"
	"github.com/riskibarqy/kingsroom-ingest/internal/config"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/blobstore"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/kingsroom-ingest/internal/interfaces/httpapi"
	"github.com/riskibarqy/kingsroom-ingest/internal/interfaces/scheduler"
	idgen "github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/resilience"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

// App is the assembled process: the HTTP server plus the optional cron trigger.
type App struct {
	Server    *http.Server
	Scheduler *scheduler.CronScheduler

	closers []func(context.Context) error
	logger  *logging.Logger
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{logger: logger}

	repos, err := a.buildRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheEnabled {
		repos = withCache(repos, cfg.CacheTTL)
	}

	ids := idgen.NewUUIDGenerator()

	var publisher *jobqueue.QStashPublisher
	if cfg.QStashToken != "" {
		publisher = jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			Timeout:          cfg.QStashTimeout,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.QStashCircuitEnabled,
				FailureThreshold: cfg.QStashCircuitFailureCount,
				OpenTimeout:      cfg.QStashCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
			},
		}, logger)
	}

	var playerQueue game.PlayerQueue = memory.NewPlayerQueue()
	if cfg.PlayerProcessorQueueURL != "" && publisher != nil {
		playerQueue = jobqueue.NewPlayerQueue(publisher, jobqueue.PlayerQueueConfig{
			ProcessorURL: cfg.PlayerProcessorQueueURL,
			QueueName:    cfg.PlayerQueueName,
			Partitions:   cfg.PlayerQueuePartitions,
		})
	}

	urlSvc := usecase.NewScrapeURLService(repos.urls, repos.attempts, ids, logger)
	thresholds := usecase.DefaultRecurringThresholds()

	saver := usecase.NewGameSaver(usecase.GameSaverDeps{
		Games:         repos.games,
		Entries:       repos.entries,
		Snapshots:     repos.snapshots,
		SeriesRepo:    repos.series,
		RecurringRepo: repos.recurring,
		Queue:         playerQueue,
		Attempts:      urlSvc,
		Venues:        usecase.NewVenueResolver(repos.venues, repos.entities, logger),
		Series:        usecase.NewSeriesResolver(repos.titles, repos.series, ids, logger),
		Recurring:     usecase.NewRecurringResolver(repos.recurring, thresholds, logger),
		IDGen:         ids,
	}, usecase.GameSaverConfig{
		PlayerBatchSize:       cfg.PlayerBatchSize,
		PlayerEnqueueParallel: cfg.PlayerEnqueueParallel,
		PlayerEnqueueRetry: resilience.RetryPolicy{
			MaxAttempts: cfg.PlayerEnqueueRetries + 1,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		SeriesAutoCreate: cfg.SeriesAutoCreate,
	}, logger)

	gaps := usecase.NewGapTracker(repos.games, repos.states, usecase.GapTrackerConfig{CacheTTL: cfg.GapCacheTTL}, logger)
	blobs := usecase.NewBlobTracker(blobstore.NewFSStore(cfg.BlobStorePath), repos.blobs, ids, logger)

	fetcher := tournamentsite.NewFetcher(tournamentsite.FetcherConfig{
		Timeout:        cfg.ScraperFetchTimeout,
		UserAgent:      cfg.ScraperUserAgent,
		MaxRetries:     cfg.ScraperMaxRetries,
		RetryBaseDelay: cfg.ScraperRetryBaseDelay,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.ScraperCircuitEnabled,
			FailureThreshold: cfg.ScraperCircuitFailureCount,
			OpenTimeout:      cfg.ScraperCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.ScraperCircuitHalfOpenMaxReq,
		},
		Logger: logger,
	})

	runner := usecase.NewScrapeRunner(usecase.ScrapeRunnerDeps{
		Jobs:     repos.jobs,
		Entities: repos.entities,
		Games:    repos.games,
		URLs:     repos.urls,
		Fetcher:  fetcher,
		Parser:   tournamentsite.NewParser(cfg.ScraperTimezone),
		Blobs:    blobs,
		Saver:    saver,
		Gaps:     gaps,
		URLSvc:   urlSvc,
	}, usecase.ScrapeRunnerConfig{
		BulkCount:      cfg.ScraperBulkCount,
		CandidateLimit: cfg.ScraperCandidateLimit,
	}, logger)

	var (
		dispatcher      usecase.JobDispatcher
		queueDispatcher *usecase.QueueDispatcher
	)
	switch cfg.ScraperDispatchMode {
	case config.DispatchQStash:
		if publisher == nil {
			return nil, fmt.Errorf("qstash dispatch requires QSTASH_TOKEN")
		}
		queueDispatcher = usecase.NewQueueDispatcher(publisher, repos.dispatches, logger)
		dispatcher = queueDispatcher
	default:
		pool, err := usecase.NewPoolDispatcher(cfg.ScraperWorkers, runner, cfg.ScraperJobTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("build scraper worker pool: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		dispatcher = pool
	}

	jobs := usecase.NewScraperJobService(repos.jobs, repos.entities, repos.attempts, dispatcher, ids, cfg.ScraperBulkCount, logger)

	handler := httpapi.NewHandler(httpapi.Services{
		Saver:      saver,
		Runner:     runner,
		Jobs:       jobs,
		URLs:       urlSvc,
		Gaps:       gaps,
		Admin:      usecase.NewAdminService(repos.games, repos.recurring, thresholds, logger),
		Recurring:  usecase.NewRecurringService(repos.games, repos.recurring, repos.venues, ids, cfg.RecurringWorkers, logger),
		Dispatches: queueDispatcher,
	}, logger)

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if a.Server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	if cfg.ScraperScheduleEnabled {
		sched, err := scheduler.NewCronScheduler(scheduler.Config{
			Spec:     cfg.ScraperSchedule,
			Timeout:  cfg.ScraperScheduleTimeout,
			Location: cfg.ScraperTimezone,
		}, jobs, logger)
		if err != nil {
			return nil, fmt.Errorf("build scraper schedule: %w", err)
		}
		a.Scheduler = sched
	}

	logger.Info("app assembled",
		"storage_driver", cfg.StorageDriver,
		"dispatch_mode", cfg.ScraperDispatchMode,
		"cache_enabled", cfg.CacheEnabled,
		"schedule_enabled", cfg.ScraperScheduleEnabled,
		"player_queue_remote", cfg.PlayerProcessorQueueURL != "",
	)
	return a, nil
}

func (a *App) buildRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		return newMemoryRepositories(), nil
	}

	db, err := openDatabase(ctx, cfg, a.logger)
	if err != nil {
		return repositories{}, err
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	tables := postgresTables(cfg.Tables)
	if cfg.DBSeedReference {
		if err := postgres.BootstrapSeed(ctx, db, tables); err != nil {
			return repositories{}, fmt.Errorf("seed reference data: %w", err)
		}
	}
	return newPostgresRepositories(db, tables), nil
}

// Close stops the scheduler, then releases workers and the database in reverse build order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
