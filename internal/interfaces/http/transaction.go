package http

import (
	"net/http"

	"ynabmirror/internal/domain/budget"
)

type TransactionResponse struct {
	ID                string                   `json:"id"`
	Date              string                   `json:"date"`
	Amount            int64                    `json:"amount"`
	AmountDecimal     string                   `json:"amount_decimal"`
	Memo              *string                  `json:"memo"`
	Cleared           string                   `json:"cleared"`
	Approved          bool                     `json:"approved"`
	FlagColor         *string                  `json:"flag_color"`
	FlagName          *string                  `json:"flag_name"`
	AccountID         string                   `json:"account_id"`
	AccountName       *string                  `json:"account_name"`
	PayeeID           *string                  `json:"payee_id"`
	PayeeName         *string                  `json:"payee_name"`
	CategoryID        *string                  `json:"category_id"`
	CategoryName      *string                  `json:"category_name"`
	TransferAccountID *string                  `json:"transfer_account_id"`
	ImportID          *string                  `json:"import_id"`
	SubTransactions   []SubTransactionResponse `json:"subtransactions"`
}

type SubTransactionResponse struct {
	ID                string  `json:"id"`
	Amount            int64   `json:"amount"`
	AmountDecimal     string  `json:"amount_decimal"`
	Memo              *string `json:"memo"`
	PayeeID           *string `json:"payee_id"`
	CategoryID        *string `json:"category_id"`
	TransferAccountID *string `json:"transfer_account_id"`
}

// HandleListTransactions handles GET /api/v1/budgets/{budget_id}/transactions.
func (h *BudgetHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeServiceError(w, r, "transaction", err)
		return
	}
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), b, page)
	if err != nil {
		writeServiceError(w, r, "transaction", err)
		return
	}

	response := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		response = append(response, toTransactionResponse(t, b.DecimalDigits()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": response})
}

// HandleGetTransaction handles GET /api/v1/budgets/{budget_id}/transactions/{id}.
func (h *BudgetHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetTransaction(r.Context(), b, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionResponse(t, b.DecimalDigits())})
}

func toTransactionResponse(t *budget.Transaction, digits int32) TransactionResponse {
	subs := make([]SubTransactionResponse, 0, len(t.SubTransactions))
	for _, s := range t.SubTransactions {
		subs = append(subs, SubTransactionResponse{
			ID:                s.ID,
			Amount:            s.Amount,
			AmountDecimal:     formatAmount(s.Amount, digits),
			Memo:              s.Memo,
			PayeeID:           s.PayeeID,
			CategoryID:        s.CategoryID,
			TransferAccountID: s.TransferAccountID,
		})
	}

	return TransactionResponse{
		ID:                t.ID,
		Date:              t.Date,
		Amount:            t.Amount,
		AmountDecimal:     formatAmount(t.Amount, digits),
		Memo:              t.Memo,
		Cleared:           t.Cleared,
		Approved:          t.Approved,
		FlagColor:         t.FlagColor,
		FlagName:          t.FlagName,
		AccountID:         t.AccountID,
		AccountName:       t.AccountName,
		PayeeID:           t.PayeeID,
		PayeeName:         t.PayeeName,
		CategoryID:        t.CategoryID,
		CategoryName:      t.CategoryName,
		TransferAccountID: t.TransferAccountID,
		ImportID:          t.ImportID,
		SubTransactions:   subs,
	}
}
