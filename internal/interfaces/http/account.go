package http

import (
	"net/http"

	"ynabmirror/internal/domain/budget"
)

type AccountResponse struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Type                    string  `json:"type"`
	OnBudget                bool    `json:"on_budget"`
	Closed                  bool    `json:"closed"`
	Note                    *string `json:"note"`
	Balance                 int64   `json:"balance"`
	BalanceDecimal          string  `json:"balance_decimal"`
	ClearedBalance          int64   `json:"cleared_balance"`
	ClearedBalanceDecimal   string  `json:"cleared_balance_decimal"`
	UnclearedBalance        int64   `json:"uncleared_balance"`
	UnclearedBalanceDecimal string  `json:"uncleared_balance_decimal"`
	TransferPayeeID         *string `json:"transfer_payee_id"`
}

// HandleListAccounts handles GET /api/v1/budgets/{budget_id}/accounts.
func (h *BudgetHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeServiceError(w, r, "account", err)
		return
	}
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), b, page)
	if err != nil {
		writeServiceError(w, r, "account", err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, toAccountResponse(a, b.DecimalDigits()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": response})
}

// HandleGetAccount handles GET /api/v1/budgets/{budget_id}/accounts/{id}.
func (h *BudgetHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	a, err := h.service.GetAccount(r.Context(), b, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": toAccountResponse(a, b.DecimalDigits())})
}

func toAccountResponse(a *budget.Account, digits int32) AccountResponse {
	return AccountResponse{
		ID:                      a.ID,
		Name:                    a.Name,
		Type:                    a.Type,
		OnBudget:                a.OnBudget,
		Closed:                  a.Closed,
		Note:                    a.Note,
		Balance:                 a.Balance,
		BalanceDecimal:          formatAmount(a.Balance, digits),
		ClearedBalance:          a.ClearedBalance,
		ClearedBalanceDecimal:   formatAmount(a.ClearedBalance, digits),
		UnclearedBalance:        a.UnclearedBalance,
		UnclearedBalanceDecimal: formatAmount(a.UnclearedBalance, digits),
		TransferPayeeID:         a.TransferPayeeID,
	}
}
