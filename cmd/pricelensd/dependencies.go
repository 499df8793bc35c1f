package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundimports/pricelens/internal/domain/catalog"
	"github.com/soundimports/pricelens/internal/domain/extraction"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pipeline"
	"github.com/soundimports/pricelens/internal/domain/template"
	"github.com/soundimports/pricelens/pkg/config"
	"github.com/soundimports/pricelens/pkg/cron"
	"github.com/soundimports/pricelens/pkg/storage"
)

// Dependencies holds all daemon dependencies
type Dependencies struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	TemplateStore *template.PostgresStore
	Catalog       *catalog.Index
	Archive       storage.Storage

	Matcher   *template.Matcher
	Pipeline  *pipeline.Service
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all daemon dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initStores(); err != nil {
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase opens the pgx pool and makes sure the schema exists
func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, d.Config.Database.DSN())
	if err != nil {
		return err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	d.Pool = pool
	d.TemplateStore = template.NewPostgresStore(pool)

	if err := d.TemplateStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return err
	}

	d.Logger.Info("database connected and schema ensured")
	return nil
}

// initStores initializes the catalog index and the file archive
func (d *Dependencies) initStores() error {
	index, err := catalog.NewIndex(d.Config.Catalog.IndexPath)
	if err != nil {
		return err
	}
	d.Catalog = index

	archive, err := storage.NewLocalStorage(d.Config.Inbox.ArchivePath)
	if err != nil {
		return err
	}
	d.Archive = archive

	d.Logger.Info("stores initialized",
		slog.String("archive", d.Config.Inbox.ArchivePath),
	)
	return nil
}

// initServices wires the pipeline and the maintenance scheduler
func (d *Dependencies) initServices() error {
	classifier := layout.NewClassifier(nil, d.Logger)
	extractor := extraction.NewExtractor(d.Logger)
	d.Matcher = template.NewMatcher(d.TemplateStore, d.TemplateStore, d.Logger)

	d.Pipeline = pipeline.NewService(classifier, extractor, d.Matcher, d.Logger).
		WithCatalog(d.Catalog)

	d.Scheduler = cron.NewScheduler(
		d.TemplateStore,
		d.Config.Maintenance.PruneSchedule,
		d.Config.Maintenance.PruneAfter,
		d.Config.Maintenance.MaxSuccessRate,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup releases all held resources
func (d *Dependencies) Cleanup() {
	if d.Catalog != nil {
		if err := d.Catalog.Close(); err != nil {
			d.Logger.Warn("closing catalog index", slog.Any("error", err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("dependencies cleaned up")
}
