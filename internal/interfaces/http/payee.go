package http

import (
	"net/http"

	"ynabmirror/internal/domain/budget"
)

type PayeeResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TransferAccountID *string `json:"transfer_account_id"`
}

// HandleListPayees handles GET /api/v1/budgets/{budget_id}/payees.
func (h *BudgetHandler) HandleListPayees(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeServiceError(w, r, "payee", err)
		return
	}
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	payees, err := h.service.ListPayees(r.Context(), b, page)
	if err != nil {
		writeServiceError(w, r, "payee", err)
		return
	}

	response := make([]PayeeResponse, 0, len(payees))
	for _, p := range payees {
		response = append(response, toPayeeResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payees": response})
}

// HandleGetPayee handles GET /api/v1/budgets/{budget_id}/payees/{id}.
func (h *BudgetHandler) HandleGetPayee(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetPayee(r.Context(), b, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "payee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payee": toPayeeResponse(p)})
}

func toPayeeResponse(p *budget.Payee) PayeeResponse {
	return PayeeResponse{ID: p.ID, Name: p.Name, TransferAccountID: p.TransferAccountID}
}
