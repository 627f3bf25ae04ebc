package http

import (
	"net/http"

	"ynabmirror/internal/domain/budget"
)

type CategoryResponse struct {
	ID                     string  `json:"id"`
	CategoryGroupID        string  `json:"category_group_id"`
	CategoryGroupName      string  `json:"category_group_name"`
	Name                   string  `json:"name"`
	Hidden                 bool    `json:"hidden"`
	Note                   *string `json:"note"`
	Budgeted               int64   `json:"budgeted"`
	BudgetedDecimal        string  `json:"budgeted_decimal"`
	Activity               int64   `json:"activity"`
	ActivityDecimal        string  `json:"activity_decimal"`
	Balance                int64   `json:"balance"`
	BalanceDecimal         string  `json:"balance_decimal"`
	GoalType               *string `json:"goal_type"`
	GoalTarget             *int64  `json:"goal_target"`
	GoalTargetDecimal      *string `json:"goal_target_decimal"`
	GoalTargetMonth        *string `json:"goal_target_month"`
	GoalPercentageComplete *int    `json:"goal_percentage_complete"`
}

// HandleListCategories handles GET /api/v1/budgets/{budget_id}/categories.
func (h *BudgetHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeServiceError(w, r, "category", err)
		return
	}
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	categories, err := h.service.ListCategories(r.Context(), b, page)
	if err != nil {
		writeServiceError(w, r, "category", err)
		return
	}

	response := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		response = append(response, toCategoryResponse(c, b.DecimalDigits()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": response})
}

// HandleGetCategory handles GET /api/v1/budgets/{budget_id}/categories/{id}.
func (h *BudgetHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCategory(r.Context(), b, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": toCategoryResponse(c, b.DecimalDigits())})
}

func toCategoryResponse(c *budget.Category, digits int32) CategoryResponse {
	resp := CategoryResponse{
		ID:                     c.ID,
		CategoryGroupID:        c.CategoryGroupID,
		CategoryGroupName:      c.CategoryGroupName,
		Name:                   c.Name,
		Hidden:                 c.Hidden,
		Note:                   c.Note,
		Budgeted:               c.Budgeted,
		BudgetedDecimal:        formatAmount(c.Budgeted, digits),
		Activity:               c.Activity,
		ActivityDecimal:        formatAmount(c.Activity, digits),
		Balance:                c.Balance,
		BalanceDecimal:         formatAmount(c.Balance, digits),
		GoalType:               c.GoalType,
		GoalTarget:             c.GoalTarget,
		GoalTargetMonth:        c.GoalTargetMonth,
		GoalPercentageComplete: c.GoalPercentageComplete,
	}
	if c.GoalTarget != nil {
		s := formatAmount(*c.GoalTarget, digits)
		resp.GoalTargetDecimal = &s
	}
	return resp
}
