package main

import (
	"context"

	"github.com/rs/zerolog"

	"ynabmirror/internal/domain/budget"
	"ynabmirror/internal/infrastructure/postgres"
	httphandlers "ynabmirror/internal/interfaces/http"
	"ynabmirror/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	HealthHandler *httphandlers.HealthHandler
	BudgetHandler *httphandlers.BudgetHandler
}

// NewDependencies connects to the database and builds the read side.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	db, err := postgres.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to database")

	service := budget.NewService(budget.Repositories{
		Budgets:      postgres.NewBudgetRepository(db),
		Accounts:     postgres.NewAccountRepository(db),
		Categories:   postgres.NewCategoryRepository(db),
		Payees:       postgres.NewPayeeRepository(db),
		Transactions: postgres.NewTransactionRepository(db),
	})

	return &Dependencies{
		DB:            db,
		HealthHandler: httphandlers.NewHealthHandler(db),
		BudgetHandler: httphandlers.NewBudgetHandler(service),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
