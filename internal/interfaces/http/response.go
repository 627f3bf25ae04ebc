package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"ynabmirror/internal/domain/budget"
	"ynabmirror/internal/shared/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to status codes. Anything unexpected
// is logged and reported as a 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, budget.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, budget.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parsePage reads skip and limit from the query string.
func parsePage(r *http.Request) (budget.Page, error) {
	q := r.URL.Query()
	skip, err := queryInt(q.Get("skip"))
	if err != nil {
		return budget.Page{}, budget.ErrInvalidPage
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		return budget.Page{}, budget.ErrInvalidPage
	}
	return budget.NewPage(skip, limit)
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// formatAmount renders milliunits with the budget's currency precision,
// e.g. -12340 with 2 digits is "-12.34".
func formatAmount(milliunits int64, digits int32) string {
	return decimal.New(milliunits, -3).StringFixed(digits)
}
