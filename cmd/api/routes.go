package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"ynabmirror/internal/shared/config"
	"ynabmirror/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	api := http.NewServeMux()
	b := deps.BudgetHandler
	api.HandleFunc("GET /api/v1/budgets", b.HandleListBudgets)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}", b.HandleGetBudget)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/sync", b.HandleSyncStatus)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/accounts", b.HandleListAccounts)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/accounts/{id}", b.HandleGetAccount)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/categories", b.HandleListCategories)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/categories/{id}", b.HandleGetCategory)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/payees", b.HandleListPayees)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/payees/{id}", b.HandleGetPayee)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/transactions", b.HandleListTransactions)
	api.HandleFunc("GET /api/v1/budgets/{budget_id}/transactions/{id}", b.HandleGetTransaction)

	// Tracing sits inside the API mux so r.Pattern is set when it records.
	mux.Handle("/api/", middleware.APIKey(cfg.Auth.APIKeyHash)(middleware.Tracing(api)))

	handler := middleware.CORS(cfg.Server.CORSOrigins)(mux)
	handler = middleware.AllowedHosts(cfg.Server.AllowedHosts)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Logging(log)(handler)

	return middleware.Telemetry(handler)
}
