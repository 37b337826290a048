package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentpipeline/internal/config"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/infrastructure/ai"
	"contentpipeline/internal/infrastructure/extract"
	"contentpipeline/internal/infrastructure/feed"
	"contentpipeline/internal/infrastructure/scheduler"
	"contentpipeline/internal/infrastructure/storage"
	"contentpipeline/internal/infrastructure/wordpress"
	"contentpipeline/internal/usecase"
)

// Application wires configuration to the pipeline stages and the scheduler.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	cycle     *usecase.Cycle
	scheduler *scheduler.Scheduler
}

// New builds a runnable application instance. The schema is applied on
// startup so a fresh database works out of the box.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	repo := storage.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	reader := feed.NewReader(cfg.Extractor.UserAgent, logger.With("component", "feed"))
	extractor := extract.New(nil, cfg.Extractor.UserAgent, cfg.Extractor.MaxLength)

	registry := ai.NewRegistry()
	for family, pair := range cfg.AI.Families {
		if pair.Primary != "" {
			registry.Register(family, domain.TierPrimary,
				ai.NewGeminiClient(cfg.AI.Endpoint, cfg.AI.Model, pair.Primary))
		}
		if pair.Backup != "" {
			registry.Register(family, domain.TierBackup,
				ai.NewGeminiClient(cfg.AI.Endpoint, cfg.AI.Model, pair.Backup))
		}
	}

	cms := wordpress.NewClient(cfg.WordPress.BaseURL, cfg.WordPress.User,
		cfg.WordPress.Password, cfg.Extractor.UserAgent,
		logger.With("component", "wordpress"))

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Feeds:      cfg.Feeds,
		Reader:     reader,
		Extractor:  extractor,
		Repository: repo,
		PerFeed:    cfg.Scheduler.EntriesPerFeed,
		Retention:  cfg.Scheduler.Retention(),
		Logger:     logger.With("component", "ingestor"),
	})

	engine := usecase.NewEngine(usecase.EngineDeps{
		Repository: repo,
		Providers:  registry,
		Logger:     logger.With("component", "rewrite"),
	})

	publisher := usecase.NewPublisher(usecase.PublisherDeps{
		Repository: repo,
		CMS:        cms,
		Categories: cfg.WordPress.Categories,
		Logger:     logger.With("component", "publisher"),
	})

	cycle := usecase.NewCycle(usecase.CycleDeps{
		Ingestor:   ingestor,
		Engine:     engine,
		Publisher:  publisher,
		CMS:        cms,
		MaxPerRun:  cfg.Scheduler.MaxArticlesPerRun,
		StagePause: cfg.Scheduler.StagePause(),
		Logger:     logger.With("component", "cycle"),
	})

	cycleJob := func(ctx context.Context) {
		if err := cycle.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("automation cycle failed", "error", err)
		}
	}
	cleanupJob := func(ctx context.Context) {
		_ = cycle.Cleanup(ctx)
	}

	sched := scheduler.New(cfg.Scheduler.CycleInterval(), cfg.Scheduler.CleanupInterval(),
		cycleJob, cleanupJob, logger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		cycle:     cycle,
		scheduler: sched,
	}, nil
}

// Scheduler exposes the control handle consumed by dashboards and CLIs.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts the scheduler and blocks until the context is cancelled. With
// once set, it executes a single cycle synchronously and returns.
func (a *Application) Run(ctx context.Context, once bool) error {
	defer a.pool.Close()

	if once {
		return a.cycle.Run(ctx)
	}

	a.scheduler.Start(ctx)
	<-ctx.Done()
	a.scheduler.Stop()
	return nil
}
