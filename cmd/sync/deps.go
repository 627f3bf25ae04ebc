package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ynabmirror/internal/domain/budgetsync"
	"ynabmirror/internal/infrastructure/postgres"
	"ynabmirror/internal/infrastructure/ynab"
	"ynabmirror/internal/shared/config"
	"ynabmirror/internal/shared/logger"
	"ynabmirror/internal/shared/telemetry"
)

// Dependencies holds the components the sync commands share.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *postgres.DB

	Budgets *postgres.BudgetRepository
	Prune   *postgres.PruneRepository

	// Orchestrator is nil for commands that never call the upstream.
	Orchestrator *budgetsync.Orchestrator

	shutdownTelemetry telemetry.Shutdown
}

// NewDependencies loads configuration and connects to the database. With
// upstream set it also requires the access token and builds the sync
// pipeline, migrating the schema first.
func NewDependencies(ctx context.Context, upstream bool) (*Dependencies, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	load := config.LoadAPI
	if upstream {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log).With().Str("component", "sync").Logger()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		shutdownTelemetry(ctx)
		return nil, err
	}

	d := &Dependencies{
		Config:            cfg,
		Logger:            log,
		DB:                db,
		Budgets:           postgres.NewBudgetRepository(db),
		Prune:             postgres.NewPruneRepository(db),
		shutdownTelemetry: shutdownTelemetry,
	}
	if !upstream {
		return d, nil
	}

	if err := postgres.Migrate(ctx, db, log); err != nil {
		d.Close()
		return nil, err
	}

	client := ynab.NewClient(ynab.Options{
		BaseURL:         cfg.YNAB.BaseURL,
		AccessToken:     cfg.YNAB.AccessToken,
		Timeout:         cfg.YNAB.RequestTimeout,
		RequestsPerHour: cfg.YNAB.RequestsPerHour,
	})
	fetcher := budgetsync.NewFetcher(client, log,
		budgetsync.WithMonthDetails(true),
		budgetsync.WithMonthTimeout(cfg.Sync.MonthTimeout),
	)
	reconciler := budgetsync.NewReconciler(postgres.NewSyncStore(db, log), log)

	d.Orchestrator = budgetsync.NewOrchestrator(
		fetcher,
		reconciler,
		postgres.NewCursorRepository(db),
		postgres.NewRunRepository(db),
		log,
		budgetsync.Options{
			BudgetIDs:         cfg.Sync.BudgetIDs,
			BudgetConcurrency: cfg.Sync.BudgetConcurrency,
			CollectionTimeout: cfg.Sync.CollectionTimeout,
		},
	)
	return d, nil
}

// Close releases the database and flushes telemetry.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.shutdownTelemetry(ctx); err != nil {
			d.Logger.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}
}
