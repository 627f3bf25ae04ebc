package budgetsync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"ynabmirror/internal/infrastructure/ynab"
)

func accountBatch(budgetID string, full bool, cursor int64, accounts ...ynab.Account) *Batch {
	return &Batch{
		Collection: CollectionAccounts,
		BudgetID:   budgetID,
		Full:       full,
		Cursor:     &cursor,
		Sets:       []RowSet{{Table: AccountsTable, Rows: accountRows(budgetID, accounts)}},
	}
}

func account(id string, balance int64) ynab.Account {
	return ynab.Account{ID: id, Name: "Account " + id, Type: "checking", OnBudget: true, Balance: balance}
}

func TestReconciler_Idempotent(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	batch := accountBatch("b1", false, 10, account("a1", 100), account("a2", 200))

	if _, err := r.Apply(context.Background(), batch); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	first := store.snapshot()

	if _, err := r.Apply(context.Background(), batch); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	second := store.snapshot()

	if diff := cmp.Diff(first.tables, second.tables); diff != "" {
		t.Errorf("state changed on re-apply (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.cursors, second.cursors); diff != "" {
		t.Errorf("cursors changed on re-apply (-first +second):\n%s", diff)
	}
}

func TestReconciler_FullSyncSoftDeletesAbsentRows(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	if _, err := r.Apply(ctx, accountBatch("b1", true, 1, account("A", 1), account("B", 2), account("C", 3))); err != nil {
		t.Fatalf("seed Apply() error = %v", err)
	}
	// Another budget's rows must be outside the full sync's scope.
	if _, err := r.Apply(ctx, accountBatch("b2", true, 1, account("X", 9))); err != nil {
		t.Fatalf("seed Apply() error = %v", err)
	}

	res, err := r.Apply(ctx, accountBatch("b1", true, 2, account("A", 1), account("C", 3)))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Upserted != 2 {
		t.Errorf("Upserted = %d, want 2", res.Upserted)
	}

	want := map[string]bool{"A": false, "B": true, "C": false, "X": false}
	for id, deleted := range want {
		row, ok := store.row("accounts", id)
		if !ok {
			t.Fatalf("row %s missing", id)
		}
		if row.Deleted != deleted {
			t.Errorf("row %s deleted = %v, want %v", id, row.Deleted, deleted)
		}
	}
}

func TestReconciler_DeltaLeavesOtherRowsUntouched(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	b := account("B", 2)
	b.Deleted = true
	if _, err := r.Apply(ctx, accountBatch("b1", true, 1, account("A", 1), b)); err != nil {
		t.Fatalf("seed Apply() error = %v", err)
	}
	before, _ := store.row("accounts", "B")

	if _, err := r.Apply(ctx, accountBatch("b1", false, 2, account("A", 50))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	after, _ := store.row("accounts", "B")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("row B modified by delta (-before +after):\n%s", diff)
	}
	a, _ := store.row("accounts", "A")
	if a.Values["balance"] != int64(50) {
		t.Errorf("A balance = %v, want 50", a.Values["balance"])
	}
}

func TestReconciler_FailureKeepsCursorAndRows(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	if _, err := r.Apply(ctx, accountBatch("b1", true, 7, account("A", 1), account("B", 2))); err != nil {
		t.Fatalf("seed Apply() error = %v", err)
	}
	before := store.snapshot()

	store.failUpsert = "accounts"
	store.failAfter = 1
	_, err := r.Apply(ctx, accountBatch("b1", true, 9, account("A", 100), account("B", 200)))

	var rf *ReconcileFailed
	if !errors.As(err, &rf) {
		t.Fatalf("Apply() error = %v, want *ReconcileFailed", err)
	}
	if rf.Collection != CollectionAccounts || rf.BudgetID != "b1" {
		t.Errorf("ReconcileFailed = %+v", rf)
	}

	after := store.snapshot()
	if diff := cmp.Diff(before.tables, after.tables); diff != "" {
		t.Errorf("partial writes visible (-before +after):\n%s", diff)
	}
	if got, _ := store.cursor("b1", CollectionAccounts); got != 7 {
		t.Errorf("cursor = %d, want 7", got)
	}
}

func TestReconciler_ReplacesChildren(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	txn := func(subs ...string) *Batch {
		tr := ynab.Transaction{ID: "t1", Date: "2024-01-10", Amount: -3000, Cleared: "cleared", AccountID: "a1"}
		for _, id := range subs {
			tr.SubTransactions = append(tr.SubTransactions, ynab.SubTransaction{ID: id, TransactionID: "t1", Amount: -1000})
		}
		cursor := int64(len(subs))
		return &Batch{
			Collection: CollectionTransactions,
			BudgetID:   "b1",
			Cursor:     &cursor,
			Sets:       []RowSet{{Table: TransactionsTable, Rows: transactionRows("b1", []ynab.Transaction{tr})}},
		}
	}

	if _, err := r.Apply(ctx, txn("s1", "s2")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := r.Apply(ctx, txn("s3")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got := map[string]bool{}
	for _, row := range store.rows("subtransactions") {
		got[row.Values["id"].(string)] = true
	}
	if diff := cmp.Diff(map[string]bool{"s3": true}, got); diff != "" {
		t.Errorf("subtransactions mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.Apply(ctx, txn()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n := len(store.rows("subtransactions")); n != 0 {
		t.Errorf("subtransactions = %d, want 0 after empty re-fetch", n)
	}
}

func TestReconciler_WritesAbsentOptionalsAsNull(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	withNote := account("A", 1)
	withNote.Note = ptr("old note")
	if _, err := r.Apply(ctx, accountBatch("b1", false, 1, withNote)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := r.Apply(ctx, accountBatch("b1", false, 2, account("A", 1))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	row, _ := store.row("accounts", "A")
	if v, ok := row.Values["note"]; !ok || v != nil {
		t.Errorf("note = %v (present %v), want explicit nil", v, ok)
	}
}

func TestReconciler_BudgetsNeverFlagged(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	apply := func(ids ...string) {
		var budgets []ynab.Budget
		for _, id := range ids {
			budgets = append(budgets, ynab.Budget{ID: id, Name: id})
		}
		batch := &Batch{Collection: CollectionBudgets, Full: true, Sets: []RowSet{{Table: BudgetsTable, Rows: BudgetRows(budgets)}}}
		res, err := r.Apply(ctx, batch)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if res.Flagged != 0 {
			t.Errorf("Flagged = %d, want 0", res.Flagged)
		}
	}

	apply("b1", "b2")
	apply("b1")

	row, ok := store.row("budgets", "b2")
	if !ok || row.Deleted {
		t.Errorf("budget b2 = %+v (present %v), want kept and not deleted", row, ok)
	}
	if _, ok := store.cursor("", CollectionBudgets); ok {
		t.Error("budgets must not record a cursor")
	}
}

func TestReconciler_CategoryDeltaKeepsUnchangedCategories(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())
	ctx := context.Background()

	batch := func(full bool, cursor int64, cats ...ynab.Category) *Batch {
		groups, rows := categoryRows("b1", []ynab.CategoryGroup{{ID: "g1", Name: "Bills", Categories: cats}})
		return &Batch{
			Collection: CollectionCategories,
			BudgetID:   "b1",
			Full:       full,
			Cursor:     &cursor,
			Sets:       []RowSet{{Table: CategoryGroupsTable, Rows: groups}, {Table: CategoriesTable, Rows: rows}},
		}
	}

	if _, err := r.Apply(ctx, batch(true, 1,
		ynab.Category{ID: "c1", CategoryGroupID: "g1", Name: "Rent"},
		ynab.Category{ID: "c2", CategoryGroupID: "g1", Name: "Power"},
	)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := r.Apply(ctx, batch(false, 2,
		ynab.Category{ID: "c1", CategoryGroupID: "g1", Name: "Rent", Budgeted: 90000},
	)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	c2, ok := store.row("categories", "c2")
	if !ok || c2.Deleted {
		t.Errorf("category c2 = %+v (present %v), want untouched", c2, ok)
	}
	c1, _ := store.row("categories", "c1")
	if c1.Values["budgeted"] != int64(90000) {
		t.Errorf("c1 budgeted = %v, want 90000", c1.Values["budgeted"])
	}
}

func TestReconciler_RejectsRowWithoutKey(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zerolog.Nop())

	batch := accountBatch("b1", false, 3, ynab.Account{Name: "no id"})
	batch.Sets[0].Rows[0].Values["id"] = nil

	_, err := r.Apply(context.Background(), batch)
	var rf *ReconcileFailed
	if !errors.As(err, &rf) {
		t.Fatalf("Apply() error = %v, want *ReconcileFailed", err)
	}
	if _, ok := store.cursor("b1", CollectionAccounts); ok {
		t.Error("cursor recorded despite failed batch")
	}
}
