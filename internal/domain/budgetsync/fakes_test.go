package budgetsync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"ynabmirror/internal/infrastructure/ynab"
)

type memRow struct {
	Values  map[string]any
	Deleted bool
}

type memState struct {
	tables  map[string]map[string]memRow
	cursors map[string]map[Collection]int64
}

func (s memState) clone() memState {
	out := memState{
		tables:  make(map[string]map[string]memRow, len(s.tables)),
		cursors: make(map[string]map[Collection]int64, len(s.cursors)),
	}
	for name, rows := range s.tables {
		cp := make(map[string]memRow, len(rows))
		for k, r := range rows {
			cp[k] = memRow{Values: maps.Clone(r.Values), Deleted: r.Deleted}
		}
		out.tables[name] = cp
	}
	for b, cs := range s.cursors {
		out.cursors[b] = maps.Clone(cs)
	}
	return out
}

// memStore is an in-memory Store and CursorStore with all-or-nothing
// transactions.
type memStore struct {
	mu    sync.Mutex
	state memState
	// failUpsert makes Upsert fail for the named table after failAfter
	// successful upserts within one transaction.
	failUpsert string
	failAfter  int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		tables:  map[string]map[string]memRow{},
		cursors: map[string]map[Collection]int64{},
	}}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) Get(ctx context.Context, budgetID string) (map[Collection]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.state.cursors[budgetID]), nil
}

func (m *memStore) Set(ctx context.Context, budgetID string, c Collection, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setCursor(m.state, budgetID, c, cursor)
	return nil
}

func (m *memStore) row(table string, key ...any) (memRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.tables[table][keyString(key)]
	return r, ok
}

func (m *memStore) rows(table string) map[string]memRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone().tables[table]
}

func (m *memStore) cursor(budgetID string, c Collection) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.cursors[budgetID][c]
	return v, ok
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func setCursor(s memState, budgetID string, c Collection, cursor int64) {
	if s.cursors[budgetID] == nil {
		s.cursors[budgetID] = map[Collection]int64{}
	}
	if old, ok := s.cursors[budgetID][c]; !ok || cursor > old {
		s.cursors[budgetID][c] = cursor
	}
}

func keyString(key []any) string { return fmt.Sprintf("%v", key) }

type memTx struct {
	store   *memStore
	state   memState
	upserts int
}

func (tx *memTx) table(name string) map[string]memRow {
	if tx.state.tables[name] == nil {
		tx.state.tables[name] = map[string]memRow{}
	}
	return tx.state.tables[name]
}

func (tx *memTx) MarkDeleted(ctx context.Context, t *Table, budgetID string) (int64, error) {
	var n int64
	rows := tx.table(t.Name)
	for k, r := range rows {
		if r.Values[t.Scope] == budgetID && !r.Deleted {
			r.Deleted = true
			rows[k] = r
			n++
		}
	}
	return n, nil
}

func (tx *memTx) Upsert(ctx context.Context, t *Table, row Row) error {
	if tx.store.failUpsert == t.Name && tx.upserts >= tx.store.failAfter {
		return errors.New("injected upsert failure")
	}
	tx.upserts++
	tx.table(t.Name)[keyString(t.KeyOf(row))] = toMemRow(t, row)
	return nil
}

func (tx *memTx) ReplaceChildren(ctx context.Context, c *ChildTable, parentKey []any, rows []Row) error {
	table := tx.table(c.Name)
	for k, r := range table {
		match := true
		for i, col := range c.ParentKey {
			if r.Values[col] != parentKey[i] {
				match = false
				break
			}
		}
		if match {
			delete(table, k)
		}
	}
	for _, row := range rows {
		table[keyString(c.KeyOf(row))] = toMemRow(c.Table, row)
	}
	return nil
}

func (tx *memTx) SetCursor(ctx context.Context, budgetID string, c Collection, cursor int64) error {
	setCursor(tx.state, budgetID, c, cursor)
	return nil
}

func toMemRow(t *Table, row Row) memRow {
	values := make(map[string]any, len(t.AllColumns()))
	for _, col := range t.AllColumns() {
		values[col] = row.Values[col]
	}
	return memRow{Values: values, Deleted: row.Deleted}
}

// fakeClient serves canned upstream responses and records calls.
type fakeClient struct {
	mu sync.Mutex

	budgets    []ynab.Budget
	budgetsErr error

	accounts     func(budgetID string, cursor *int64) (*ynab.AccountsResponse, error)
	categories   func(budgetID string, cursor *int64) (*ynab.CategoriesResponse, error)
	payees       func(budgetID string, cursor *int64) (*ynab.PayeesResponse, error)
	transactions func(budgetID string, cursor *int64) (*ynab.TransactionsResponse, error)
	scheduled    func(budgetID string, cursor *int64) (*ynab.ScheduledTransactionsResponse, error)
	months       func(budgetID string, cursor *int64) (*ynab.MonthsResponse, error)
	month        func(budgetID, month string) (*ynab.Month, error)

	calls   map[Collection]int
	cursors map[Collection][]*int64
}

var _ ynab.ClientInterface = (*fakeClient)(nil)

func (f *fakeClient) called(c Collection, cursor *int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[Collection]int{}
		f.cursors = map[Collection][]*int64{}
	}
	f.calls[c]++
	var cp *int64
	if cursor != nil {
		v := *cursor
		cp = &v
	}
	f.cursors[c] = append(f.cursors[c], cp)
}

func (f *fakeClient) callCount(c Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[c]
}

func (f *fakeClient) GetBudgets(ctx context.Context) (*ynab.BudgetsResponse, error) {
	f.called(CollectionBudgets, nil)
	if f.budgetsErr != nil {
		return nil, f.budgetsErr
	}
	return &ynab.BudgetsResponse{Budgets: f.budgets}, nil
}

func (f *fakeClient) GetAccounts(ctx context.Context, budgetID string, cursor *int64) (*ynab.AccountsResponse, error) {
	f.called(CollectionAccounts, cursor)
	if f.accounts == nil {
		return &ynab.AccountsResponse{ServerKnowledge: 1}, nil
	}
	return f.accounts(budgetID, cursor)
}

func (f *fakeClient) GetCategories(ctx context.Context, budgetID string, cursor *int64) (*ynab.CategoriesResponse, error) {
	f.called(CollectionCategories, cursor)
	if f.categories == nil {
		return &ynab.CategoriesResponse{ServerKnowledge: 1}, nil
	}
	return f.categories(budgetID, cursor)
}

func (f *fakeClient) GetPayees(ctx context.Context, budgetID string, cursor *int64) (*ynab.PayeesResponse, error) {
	f.called(CollectionPayees, cursor)
	if f.payees == nil {
		return &ynab.PayeesResponse{ServerKnowledge: 1}, nil
	}
	return f.payees(budgetID, cursor)
}

func (f *fakeClient) GetTransactions(ctx context.Context, budgetID string, cursor *int64) (*ynab.TransactionsResponse, error) {
	f.called(CollectionTransactions, cursor)
	if f.transactions == nil {
		return &ynab.TransactionsResponse{ServerKnowledge: 1}, nil
	}
	return f.transactions(budgetID, cursor)
}

func (f *fakeClient) GetScheduledTransactions(ctx context.Context, budgetID string, cursor *int64) (*ynab.ScheduledTransactionsResponse, error) {
	f.called(CollectionScheduledTransactions, cursor)
	if f.scheduled == nil {
		return &ynab.ScheduledTransactionsResponse{ServerKnowledge: 1}, nil
	}
	return f.scheduled(budgetID, cursor)
}

func (f *fakeClient) GetMonths(ctx context.Context, budgetID string, cursor *int64) (*ynab.MonthsResponse, error) {
	f.called(CollectionMonths, cursor)
	if f.months == nil {
		return &ynab.MonthsResponse{ServerKnowledge: 1}, nil
	}
	return f.months(budgetID, cursor)
}

func (f *fakeClient) GetMonth(ctx context.Context, budgetID, month string) (*ynab.Month, error) {
	if f.month == nil {
		return &ynab.Month{Month: month}, nil
	}
	return f.month(budgetID, month)
}

func ptr[T any](v T) *T { return &v }
