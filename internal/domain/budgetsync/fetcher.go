package budgetsync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ynabmirror/internal/infrastructure/ynab"
)

const (
	// MaxAttempts bounds every upstream call, first try included.
	MaxAttempts = 3

	retryInitialInterval = 4 * time.Second
	retryMaxInterval     = 10 * time.Second
)

// DefaultBackOff waits 4s, then 8s between the three attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Fetcher retrieves collections from the upstream and turns them into
// batches ready for the reconciler.
type Fetcher struct {
	client       ynab.ClientInterface
	logger       zerolog.Logger
	newBackOff   func() backoff.BackOff
	monthDetails bool
	monthTimeout time.Duration
}

type FetcherOption func(*Fetcher)

// WithBackOff overrides the delay policy between attempts.
func WithBackOff(fn func() backoff.BackOff) FetcherOption {
	return func(f *Fetcher) { f.newBackOff = fn }
}

// WithMonthDetails makes the months collection fetch each returned month
// individually so per-category figures are stored too.
func WithMonthDetails(enabled bool) FetcherOption {
	return func(f *Fetcher) { f.monthDetails = enabled }
}

// WithMonthTimeout grants the month detail calls of one fetch perMonth per
// returned month, even past the collection deadline set by the orchestrator.
func WithMonthTimeout(perMonth time.Duration) FetcherOption {
	return func(f *Fetcher) { f.monthTimeout = perMonth }
}

func NewFetcher(client ynab.ClientInterface, logger zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:       client,
		logger:       logger,
		newBackOff:   DefaultBackOff,
		monthDetails: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBudgets returns the full budget list.
func (f *Fetcher) FetchBudgets(ctx context.Context) ([]ynab.Budget, error) {
	var resp *ynab.BudgetsResponse
	attempts, err := f.retry(ctx, CollectionBudgets, "", func() error {
		var err error
		resp, err = f.client.GetBudgets(ctx)
		return err
	})
	if err != nil {
		return nil, &FetchFailed{Collection: CollectionBudgets, Attempts: attempts, Err: err}
	}
	return resp.Budgets, nil
}

// Fetch retrieves one collection of a budget. A nil cursor requests a full
// snapshot; otherwise only changes after cursor are returned.
func (f *Fetcher) Fetch(ctx context.Context, c Collection, budgetID string, cursor *int64) (*Batch, error) {
	batch := &Batch{Collection: c, BudgetID: budgetID, Full: cursor == nil}

	var knowledge int64
	attempts, err := f.retry(ctx, c, budgetID, func() error {
		switch c {
		case CollectionAccounts:
			resp, err := f.client.GetAccounts(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			batch.Sets = []RowSet{{Table: AccountsTable, Rows: accountRows(budgetID, resp.Accounts)}}

		case CollectionCategories:
			resp, err := f.client.GetCategories(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			groups, cats := categoryRows(budgetID, resp.CategoryGroups)
			batch.Sets = []RowSet{
				{Table: CategoryGroupsTable, Rows: groups},
				{Table: CategoriesTable, Rows: cats},
			}

		case CollectionPayees:
			resp, err := f.client.GetPayees(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			batch.Sets = []RowSet{{Table: PayeesTable, Rows: payeeRows(budgetID, resp.Payees)}}

		case CollectionTransactions:
			resp, err := f.client.GetTransactions(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			batch.Sets = []RowSet{{Table: TransactionsTable, Rows: transactionRows(budgetID, resp.Transactions)}}

		case CollectionScheduledTransactions:
			resp, err := f.client.GetScheduledTransactions(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			batch.Sets = []RowSet{{Table: ScheduledTransactionsTable, Rows: scheduledTransactionRows(budgetID, resp.ScheduledTransactions)}}

		case CollectionMonths:
			resp, err := f.client.GetMonths(ctx, budgetID, cursor)
			if err != nil {
				return err
			}
			knowledge = resp.ServerKnowledge
			months := resp.Months

			if !f.monthDetails {
				rows := make([]Row, 0, len(months))
				for _, m := range months {
					rows = append(rows, monthRow(budgetID, m, false))
				}
				batch.Sets = []RowSet{{Table: MonthSummariesTable, Rows: rows}}
				return nil
			}
			// Details are fetched outside this attempt so that one failing
			// month does not repeat the list call.
			batch.Sets = []RowSet{{Table: MonthsTable, Rows: make([]Row, 0, len(months))}}
			for _, m := range months {
				batch.Sets[0].Rows = append(batch.Sets[0].Rows, monthRow(budgetID, m, false))
			}

		default:
			return fmt.Errorf("unknown collection %q", c)
		}
		return nil
	})
	if err != nil {
		return nil, &FetchFailed{Collection: c, BudgetID: budgetID, Cursor: cursor, Attempts: attempts, Err: err}
	}

	if c == CollectionMonths && f.monthDetails {
		dctx, cancel := f.detailContext(ctx, len(batch.Sets[0].Rows))
		err := f.fetchMonthDetails(dctx, batch, cursor)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	batch.Cursor = &knowledge
	return batch, nil
}

// fetchMonthDetails replaces each month row with its detailed form. Deleted
// months keep an empty category set. cursor is the one the list call used.
func (f *Fetcher) fetchMonthDetails(ctx context.Context, batch *Batch, cursor *int64) error {
	rows := batch.Sets[0].Rows
	for i, row := range rows {
		month, _ := row.Values["month"].(string)
		if row.Deleted {
			rows[i].Children = map[string][]Row{CategoryMonthsTable.Name: {}}
			continue
		}

		var detail *ynab.Month
		attempts, err := f.retry(ctx, CollectionMonths, batch.BudgetID, func() error {
			var err error
			detail, err = f.client.GetMonth(ctx, batch.BudgetID, month)
			return err
		})
		if err != nil {
			return &FetchFailed{
				Collection: CollectionMonths,
				BudgetID:   batch.BudgetID,
				Cursor:     cursor,
				Attempts:   attempts,
				Err:        fmt.Errorf("month %s: %w", month, err),
			}
		}
		rows[i] = monthRow(batch.BudgetID, *detail, true)
	}
	return nil
}

// detailContext bounds the month detail phase. When months*monthTimeout
// reaches past the deadline of ctx and the orchestrator left the unbounded
// collection context behind, the deadline is moved out to it. Cancellation
// of the pass still stops the calls.
func (f *Fetcher) detailContext(ctx context.Context, months int) (context.Context, context.CancelFunc) {
	if f.monthTimeout <= 0 || months == 0 {
		return context.WithCancel(ctx)
	}
	want := time.Now().Add(time.Duration(months) * f.monthTimeout)
	if d, ok := ctx.Deadline(); !ok || !d.Before(want) {
		return context.WithCancel(ctx)
	}
	parent, ok := ctx.Value(unboundedKey{}).(context.Context)
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(parent, want)
}

// retry runs op until it succeeds, fails permanently, or MaxAttempts is
// reached, and returns how many attempts were made.
func (f *Fetcher) retry(ctx context.Context, c Collection, budgetID string, op func() error) (int, error) {
	attempts := 0
	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), MaxAttempts-1), ctx)

	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("budget_id", budgetID).
			Str("collection", c.String()).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("upstream call failed, retrying")
	})

	fetchAttempts.Add(ctx, int64(attempts), metric.WithAttributes(attribute.String("collection", c.String())))
	return attempts, err
}
