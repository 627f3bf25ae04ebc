package http

import (
	"context"
	"net/http"
	"time"

	"ynabmirror/internal/domain/budget"
	"ynabmirror/internal/domain/budgetsync"
)

// BudgetService is the read side the handlers depend on.
type BudgetService interface {
	ListBudgets(ctx context.Context, page budget.Page) ([]*budget.Budget, error)
	GetBudget(ctx context.Context, id string) (*budget.Budget, error)
	SyncStatus(ctx context.Context, budgetID string) (*budget.SyncStatus, error)

	ListAccounts(ctx context.Context, b *budget.Budget, page budget.Page) ([]*budget.Account, error)
	GetAccount(ctx context.Context, b *budget.Budget, id string) (*budget.Account, error)
	ListCategories(ctx context.Context, b *budget.Budget, page budget.Page) ([]*budget.Category, error)
	GetCategory(ctx context.Context, b *budget.Budget, id string) (*budget.Category, error)
	ListPayees(ctx context.Context, b *budget.Budget, page budget.Page) ([]*budget.Payee, error)
	GetPayee(ctx context.Context, b *budget.Budget, id string) (*budget.Payee, error)
	ListTransactions(ctx context.Context, b *budget.Budget, page budget.Page) ([]*budget.Transaction, error)
	GetTransaction(ctx context.Context, b *budget.Budget, id string) (*budget.Transaction, error)
}

// BudgetHandler serves budgets and their sync status.
type BudgetHandler struct {
	service BudgetService
}

func NewBudgetHandler(service BudgetService) *BudgetHandler {
	return &BudgetHandler{service: service}
}

type BudgetResponse struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	LastModifiedOn        *string `json:"last_modified_on"`
	FirstMonth            *string `json:"first_month"`
	LastMonth             *string `json:"last_month"`
	CurrencyISOCode       *string `json:"currency_iso_code"`
	CurrencySymbol        *string `json:"currency_symbol"`
	CurrencyDecimalDigits int32   `json:"currency_decimal_digits"`
	DateFormat            *string `json:"date_format"`
}

type CursorResponse struct {
	Collection      string `json:"collection"`
	ServerKnowledge int64  `json:"server_knowledge"`
	UpdatedAt       string `json:"updated_at"`
}

type RunResponse struct {
	ID         string               `json:"id"`
	StartedAt  string               `json:"started_at"`
	FinishedAt *string              `json:"finished_at"`
	Status     string               `json:"status"`
	Budgets    int                  `json:"budgets"`
	Failures   []budgetsync.Failure `json:"failures"`
}

type SyncStatusResponse struct {
	BudgetID string           `json:"budget_id"`
	Cursors  []CursorResponse `json:"cursors"`
	LastRun  *RunResponse     `json:"last_run"`
}

// HandleListBudgets handles GET /api/v1/budgets.
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeServiceError(w, r, "budget", err)
		return
	}

	budgets, err := h.service.ListBudgets(r.Context(), page)
	if err != nil {
		writeServiceError(w, r, "budget", err)
		return
	}

	response := make([]BudgetResponse, 0, len(budgets))
	for _, b := range budgets {
		response = append(response, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": response})
}

// HandleGetBudget handles GET /api/v1/budgets/{budget_id}.
func (h *BudgetHandler) HandleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBudget(r.Context(), r.PathValue("budget_id"))
	if err != nil {
		writeServiceError(w, r, "budget", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budget": toBudgetResponse(b)})
}

// HandleSyncStatus handles GET /api/v1/budgets/{budget_id}/sync.
func (h *BudgetHandler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.SyncStatus(r.Context(), r.PathValue("budget_id"))
	if err != nil {
		writeServiceError(w, r, "budget", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync": toSyncStatusResponse(status)})
}

// loadBudget resolves the {budget_id} path value, writing a 404 when the
// budget is unknown.
func (h *BudgetHandler) loadBudget(w http.ResponseWriter, r *http.Request) (*budget.Budget, bool) {
	b, err := h.service.GetBudget(r.Context(), r.PathValue("budget_id"))
	if err != nil {
		writeServiceError(w, r, "budget", err)
		return nil, false
	}
	return b, true
}

func toBudgetResponse(b *budget.Budget) BudgetResponse {
	return BudgetResponse{
		ID:                    b.ID,
		Name:                  b.Name,
		LastModifiedOn:        formatTime(b.LastModifiedOn),
		FirstMonth:            b.FirstMonth,
		LastMonth:             b.LastMonth,
		CurrencyISOCode:       b.CurrencyISOCode,
		CurrencySymbol:        b.CurrencySymbol,
		CurrencyDecimalDigits: b.DecimalDigits(),
		DateFormat:            b.DateFormat,
	}
}

func toSyncStatusResponse(s *budget.SyncStatus) SyncStatusResponse {
	resp := SyncStatusResponse{
		BudgetID: s.BudgetID,
		Cursors:  make([]CursorResponse, 0, len(s.Cursors)),
	}
	for _, c := range s.Cursors {
		resp.Cursors = append(resp.Cursors, CursorResponse{
			Collection:      c.Collection.String(),
			ServerKnowledge: c.Value,
			UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	if run := s.LastRun; run != nil {
		failures := run.Failures
		if failures == nil {
			failures = []budgetsync.Failure{}
		}
		resp.LastRun = &RunResponse{
			ID:         run.ID,
			StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt: formatTime(run.FinishedAt),
			Status:     string(run.Status),
			Budgets:    run.Budgets,
			Failures:   failures,
		}
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
