package budgetsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ynabmirror/internal/infrastructure/ynab"
)

// FetchFailed reports that a collection could not be retrieved: either a
// non-retryable upstream error or retries were exhausted.
type FetchFailed struct {
	Collection Collection
	BudgetID   string
	Cursor     *int64
	Attempts   int
	Err        error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetch %s for budget %s failed after %d attempt(s): %v",
		e.Collection, e.BudgetID, e.Attempts, e.Err)
}

func (e *FetchFailed) Unwrap() error { return e.Err }

// ReconcileFailed reports that a fetched batch could not be stored. The
// transaction was rolled back and the cursor left untouched.
type ReconcileFailed struct {
	Collection Collection
	BudgetID   string
	Err        error
}

func (e *ReconcileFailed) Error() string {
	return fmt.Sprintf("reconcile %s for budget %s failed: %v", e.Collection, e.BudgetID, e.Err)
}

func (e *ReconcileFailed) Unwrap() error { return e.Err }

// Failure is one (budget, collection) pair that did not complete in a pass.
type Failure struct {
	BudgetID   string     `json:"budget_id"`
	Collection Collection `json:"collection"`
	Err        error      `json:"-"`
	Message    string     `json:"error"`
}

// RunFailed summarizes a pass in which at least one collection failed.
type RunFailed struct {
	RunID    string
	Failures []Failure
}

func (e *RunFailed) Error() string {
	pairs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		budget := f.BudgetID
		if budget == "" {
			budget = "*"
		}
		pairs[i] = budget + "/" + string(f.Collection)
	}
	return fmt.Sprintf("sync run %s failed for %d collection(s): %s",
		e.RunID, len(e.Failures), strings.Join(pairs, ", "))
}

// Unwrap exposes the individual failure causes to errors.Is and errors.As.
func (e *RunFailed) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Retryable reports whether err is a transient upstream failure worth
// repeating: rate limiting, upstream 5xx, or no response at all.
// Authentication failures and malformed payloads are not retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *ynab.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var tErr *ynab.TransportError
	return errors.As(err, &tErr)
}

// Unauthorized reports whether the upstream rejected the access token.
func Unauthorized(err error) bool {
	var apiErr *ynab.APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
