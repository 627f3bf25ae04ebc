package budgetsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ynabmirror/internal/infrastructure/ynab"
)

func noDelay() backoff.BackOff { return &backoff.ZeroBackOff{} }

func newTestFetcher(client ynab.ClientInterface, opts ...FetcherOption) *Fetcher {
	return NewFetcher(client, zerolog.Nop(), append([]FetcherOption{WithBackOff(noDelay)}, opts...)...)
}

func TestFetcher_RetryBound(t *testing.T) {
	store := newMemStore()
	client := &fakeClient{
		accounts: func(string, *int64) (*ynab.AccountsResponse, error) {
			return nil, &ynab.APIError{StatusCode: http.StatusServiceUnavailable}
		},
	}
	f := newTestFetcher(client)

	_, err := f.Fetch(context.Background(), CollectionAccounts, "b1", ptr(int64(42)))

	var ff *FetchFailed
	if !errors.As(err, &ff) {
		t.Fatalf("Fetch() error = %v, want *FetchFailed", err)
	}
	if got := client.callCount(CollectionAccounts); got != MaxAttempts {
		t.Errorf("upstream calls = %d, want %d", got, MaxAttempts)
	}
	if ff.Attempts != MaxAttempts {
		t.Errorf("Attempts = %d, want %d", ff.Attempts, MaxAttempts)
	}
	if ff.Cursor == nil || *ff.Cursor != 42 {
		t.Errorf("Cursor = %v, want 42", ff.Cursor)
	}
	if _, ok := store.cursor("b1", CollectionAccounts); ok {
		t.Error("cursor recorded after failed fetch")
	}
}

func TestFetcher_NonRetryableErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", &ynab.APIError{StatusCode: http.StatusUnauthorized, Name: "unauthorized"}},
		{"not found", &ynab.APIError{StatusCode: http.StatusNotFound, Name: "resource_not_found"}},
		{"malformed", fmt.Errorf("%w: unexpected EOF", ynab.ErrMalformedResponse)},
		{"cancelled", &ynab.TransportError{Err: context.Canceled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				payees: func(string, *int64) (*ynab.PayeesResponse, error) { return nil, tt.err },
			}
			f := newTestFetcher(client)

			_, err := f.Fetch(context.Background(), CollectionPayees, "b1", nil)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Fetch() error = %v, want wrapping %v", err, tt.err)
			}
			if got := client.callCount(CollectionPayees); got != 1 {
				t.Errorf("upstream calls = %d, want 1", got)
			}
		})
	}
}

func TestFetcher_RecoversWithinBound(t *testing.T) {
	calls := 0
	client := &fakeClient{
		accounts: func(string, *int64) (*ynab.AccountsResponse, error) {
			calls++
			if calls < MaxAttempts {
				return nil, &ynab.TransportError{Err: errors.New("connection reset")}
			}
			return &ynab.AccountsResponse{Accounts: []ynab.Account{account("a1", 5)}, ServerKnowledge: 9}, nil
		},
	}
	f := newTestFetcher(client)

	batch, err := f.Fetch(context.Background(), CollectionAccounts, "b1", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !batch.Full {
		t.Error("batch without cursor should be full")
	}
	if batch.Cursor == nil || *batch.Cursor != 9 {
		t.Errorf("Cursor = %v, want 9", batch.Cursor)
	}
	if batch.Len() != 1 {
		t.Errorf("Len() = %d, want 1", batch.Len())
	}
}

func TestFetcher_DeltaPassesCursor(t *testing.T) {
	client := &fakeClient{}
	f := newTestFetcher(client)

	batch, err := f.Fetch(context.Background(), CollectionScheduledTransactions, "b1", ptr(int64(17)))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if batch.Full {
		t.Error("batch with cursor should be a delta")
	}
	got := client.cursors[CollectionScheduledTransactions]
	if len(got) != 1 || got[0] == nil || *got[0] != 17 {
		t.Errorf("cursor sent upstream = %v, want 17", got)
	}
}

func TestFetcher_MonthDetails(t *testing.T) {
	client := &fakeClient{
		months: func(string, *int64) (*ynab.MonthsResponse, error) {
			return &ynab.MonthsResponse{
				Months: []ynab.Month{
					{Month: "2024-01-01", Income: 100},
					{Month: "2023-12-01", Deleted: true},
				},
				ServerKnowledge: 30,
			}, nil
		},
		month: func(budgetID, month string) (*ynab.Month, error) {
			return &ynab.Month{
				Month:  month,
				Income: 100,
				Categories: []ynab.Category{
					{ID: "c1", Budgeted: 10, Activity: -5, Balance: 5},
					{ID: "c2", Budgeted: 20},
				},
			}, nil
		},
	}

	batch, err := newTestFetcher(client).Fetch(context.Background(), CollectionMonths, "b1", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	set := batch.Sets[0]
	if set.Table != MonthsTable {
		t.Fatalf("table = %s, want months with children", set.Table.Name)
	}
	if n := len(set.Rows[0].Children[CategoryMonthsTable.Name]); n != 2 {
		t.Errorf("category months of 2024-01 = %d, want 2", n)
	}
	deleted := set.Rows[1]
	if !deleted.Deleted {
		t.Error("deleted month lost its flag")
	}
	if kids, ok := deleted.Children[CategoryMonthsTable.Name]; !ok || len(kids) != 0 {
		t.Errorf("deleted month children = %v (present %v), want empty set", kids, ok)
	}

	summaries, err := newTestFetcher(client, WithMonthDetails(false)).Fetch(context.Background(), CollectionMonths, "b1", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if summaries.Sets[0].Table != MonthSummariesTable {
		t.Errorf("table without details = %+v, want MonthSummariesTable", summaries.Sets[0].Table)
	}
}

func TestFetcher_MonthDetailFailureKeepsCursor(t *testing.T) {
	client := &fakeClient{
		months: func(string, *int64) (*ynab.MonthsResponse, error) {
			return &ynab.MonthsResponse{Months: []ynab.Month{{Month: "2024-01-01"}}, ServerKnowledge: 31}, nil
		},
		month: func(budgetID, month string) (*ynab.Month, error) {
			return nil, &ynab.APIError{StatusCode: http.StatusNotFound, Name: "resource_not_found"}
		},
	}

	_, err := newTestFetcher(client).Fetch(context.Background(), CollectionMonths, "b1", ptr(int64(30)))

	var ff *FetchFailed
	if !errors.As(err, &ff) {
		t.Fatalf("Fetch() error = %v, want *FetchFailed", err)
	}
	if ff.Collection != CollectionMonths || ff.BudgetID != "b1" {
		t.Errorf("FetchFailed = %+v, want months of b1", ff)
	}
	if ff.Cursor == nil || *ff.Cursor != 30 {
		t.Errorf("Cursor = %v, want 30", ff.Cursor)
	}
}

func TestFetcher_DetailContext(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	collection, cancel := context.WithTimeout(context.WithValue(parent, unboundedKey{}, parent), time.Second)
	defer cancel()

	t.Run("scales with months", func(t *testing.T) {
		f := newTestFetcher(&fakeClient{}, WithMonthTimeout(time.Minute))
		ctx, cancel := f.detailContext(collection, 10)
		defer cancel()

		d, ok := ctx.Deadline()
		if !ok || time.Until(d) < 9*time.Minute {
			t.Errorf("deadline in %v, want about 10m", time.Until(d))
		}
	})

	t.Run("keeps a later collection deadline", func(t *testing.T) {
		f := newTestFetcher(&fakeClient{}, WithMonthTimeout(time.Millisecond))
		ctx, cancel := f.detailContext(collection, 3)
		defer cancel()

		got, _ := ctx.Deadline()
		want, _ := collection.Deadline()
		if !got.Equal(want) {
			t.Errorf("deadline = %v, want collection deadline %v", got, want)
		}
	})

	t.Run("without a per-month timeout", func(t *testing.T) {
		f := newTestFetcher(&fakeClient{})
		ctx, cancel := f.detailContext(collection, 100)
		defer cancel()

		got, _ := ctx.Deadline()
		want, _ := collection.Deadline()
		if !got.Equal(want) {
			t.Errorf("deadline = %v, want collection deadline %v", got, want)
		}
	})

	t.Run("pass cancellation still stops details", func(t *testing.T) {
		f := newTestFetcher(&fakeClient{}, WithMonthTimeout(time.Hour))
		ctx, cancel := f.detailContext(collection, 5)
		defer cancel()

		cancelParent()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("detail context outlived the cancelled pass")
		}
	})
}

func TestFetcher_FetchBudgets(t *testing.T) {
	client := &fakeClient{budgets: []ynab.Budget{{ID: "b1"}, {ID: "b2"}}}

	budgets, err := newTestFetcher(client).FetchBudgets(context.Background())
	if err != nil {
		t.Fatalf("FetchBudgets() error = %v", err)
	}
	if len(budgets) != 2 {
		t.Errorf("budgets = %d, want 2", len(budgets))
	}

	client.budgetsErr = &ynab.APIError{StatusCode: http.StatusInternalServerError}
	_, err = newTestFetcher(client).FetchBudgets(context.Background())
	var ff *FetchFailed
	if !errors.As(err, &ff) || ff.Collection != CollectionBudgets {
		t.Fatalf("FetchBudgets() error = %v, want *FetchFailed for budgets", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &ynab.APIError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &ynab.APIError{StatusCode: http.StatusBadGateway}, true},
		{"unauthorized", &ynab.APIError{StatusCode: http.StatusUnauthorized}, false},
		{"bad request", &ynab.APIError{StatusCode: http.StatusBadRequest}, false},
		{"transport", &ynab.TransportError{Err: errors.New("timeout")}, true},
		{"wrapped transport", fmt.Errorf("get: %w", &ynab.TransportError{Err: errors.New("eof")}), true},
		{"malformed", ynab.ErrMalformedResponse, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnauthorized(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", &ynab.APIError{StatusCode: http.StatusUnauthorized}, true},
		{"forbidden", &ynab.APIError{StatusCode: http.StatusForbidden}, true},
		{"server error", &ynab.APIError{StatusCode: http.StatusBadGateway}, false},
		{"inside fetch failure", &FetchFailed{Collection: CollectionBudgets, Err: &ynab.APIError{StatusCode: http.StatusUnauthorized}}, true},
		{"inside run failure", &RunFailed{Failures: []Failure{{Err: &FetchFailed{Err: &ynab.APIError{StatusCode: http.StatusUnauthorized}}}}}, true},
		{"transport", &ynab.TransportError{Err: errors.New("timeout")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Unauthorized(tt.err); got != tt.want {
				t.Errorf("Unauthorized(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultBackOff_Delays(t *testing.T) {
	b := backoff.WithMaxRetries(DefaultBackOff(), MaxAttempts-1)
	b.Reset()

	var delays []string
	for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
		delays = append(delays, d.String())
	}
	if fmt.Sprint(delays) != "[4s 8s]" {
		t.Errorf("delays = %v, want [4s 8s]", delays)
	}
}
