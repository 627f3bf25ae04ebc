package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"ynabmirror/internal/domain/budgetsync"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return Wrap(db), mock
}

func accountRow(id string) budgetsync.Row {
	return budgetsync.Row{Values: map[string]any{
		"id":        id,
		"budget_id": "b1",
		"name":      "Checking",
		"type":      "checking",
		"on_budget": true,
		"closed":    false,
		"balance":   int64(1000),
	}}
}

func cursorOf(v int64) *int64 { return &v }

func TestBuildUpsert(t *testing.T) {
	q := buildUpsert(budgetsync.AccountsTable)

	for _, want := range []string{
		`INSERT INTO "accounts" ("id", "budget_id", "name"`,
		`"transfer_payee_id", deleted, deleted_at)`,
		`$11, $12, CASE WHEN $12::boolean THEN CURRENT_TIMESTAMP END)`,
		`ON CONFLICT ("id") DO UPDATE SET "budget_id" = EXCLUDED."budget_id"`,
		`deleted = EXCLUDED.deleted`,
		`deleted_at = CASE WHEN EXCLUDED.deleted THEN COALESCE("accounts".deleted_at, EXCLUDED.deleted_at) END`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("upsert missing %q\n%s", want, q)
		}
	}
	if strings.Contains(q, `"id" = EXCLUDED."id"`) {
		t.Error("upsert must not overwrite the key")
	}

	budgets := buildUpsert(budgetsync.BudgetsTable)
	if strings.Contains(budgets, "deleted") {
		t.Errorf("budgets carry no deleted flag:\n%s", budgets)
	}

	months := buildUpsert(budgetsync.MonthsTable)
	if !strings.Contains(months, `ON CONFLICT ("budget_id", "month")`) {
		t.Errorf("months conflict target wrong:\n%s", months)
	}
}

func TestBuildInsert_MultiRow(t *testing.T) {
	q := buildInsert(budgetsync.SubtransactionsTable.Table, 2)

	want := `INSERT INTO "subtransactions" ("id", "transaction_id", "category_id", "payee_id", "transfer_account_id", "amount", "memo", deleted) ` +
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $8), ($9, $10, $11, $12, $13, $14, $15, $16)`
	if q != want {
		t.Errorf("buildInsert() =\n%s\nwant\n%s", q, want)
	}
}

func TestSyncStore_FullBatchInOneTransaction(t *testing.T) {
	db, mock := newMock(t)
	store := NewSyncStore(db, zerolog.Nop())
	r := budgetsync.NewReconciler(store, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "accounts" SET deleted = TRUE, deleted_at = CURRENT_TIMESTAMP WHERE "budget_id" = $1 AND NOT deleted`)).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "accounts"`)).
		WithArgs("a1", "b1", "Checking", "checking", true, false, nil, int64(1000), nil, nil, nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sync_cursors`)).
		WithArgs("b1", "accounts", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := r.Apply(context.Background(), &budgetsync.Batch{
		Collection: budgetsync.CollectionAccounts,
		BudgetID:   "b1",
		Full:       true,
		Cursor:     cursorOf(9),
		Sets:       []budgetsync.RowSet{{Table: budgetsync.AccountsTable, Rows: []budgetsync.Row{accountRow("a1")}}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Flagged != 3 || res.Upserted != 1 {
		t.Errorf("ApplyResult = %+v, want 3 flagged 1 upserted", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncStore_RollsBackWithoutCursor(t *testing.T) {
	db, mock := newMock(t)
	r := budgetsync.NewReconciler(NewSyncStore(db, zerolog.Nop()), zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "accounts"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := r.Apply(context.Background(), &budgetsync.Batch{
		Collection: budgetsync.CollectionAccounts,
		BudgetID:   "b1",
		Cursor:     cursorOf(9),
		Sets:       []budgetsync.RowSet{{Table: budgetsync.AccountsTable, Rows: []budgetsync.Row{accountRow("a1")}}},
	})

	var rf *budgetsync.ReconcileFailed
	if !errors.As(err, &rf) {
		t.Fatalf("Apply() error = %v, want *ReconcileFailed", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncStore_RetriesTransientErrors(t *testing.T) {
	db, mock := newMock(t)
	r := budgetsync.NewReconciler(NewSyncStore(db, zerolog.Nop()), zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "accounts"`)).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "accounts"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sync_cursors`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := r.Apply(context.Background(), &budgetsync.Batch{
		Collection: budgetsync.CollectionAccounts,
		BudgetID:   "b1",
		Cursor:     cursorOf(10),
		Sets:       []budgetsync.RowSet{{Table: budgetsync.AccountsTable, Rows: []budgetsync.Row{accountRow("a1")}}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Upserted != 1 {
		t.Errorf("Upserted = %d, want 1 (counters reset on retry)", res.Upserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncStore_ReplacesChildren(t *testing.T) {
	db, mock := newMock(t)
	r := budgetsync.NewReconciler(NewSyncStore(db, zerolog.Nop()), zerolog.Nop())

	sub := func(id string) budgetsync.Row {
		return budgetsync.Row{Values: map[string]any{"id": id, "transaction_id": "t1", "amount": int64(-500)}}
	}
	txn := budgetsync.Row{
		Values: map[string]any{"id": "t1", "budget_id": "b1", "account_id": "a1", "date": "2024-01-10", "amount": int64(-1000), "cleared": "cleared", "approved": true},
		Children: map[string][]budgetsync.Row{
			budgetsync.SubtransactionsTable.Name: {sub("s1"), sub("s2")},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "transactions"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "subtransactions" WHERE "transaction_id" = $1`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "subtransactions"`)).
		WithArgs(
			"s1", "t1", nil, nil, nil, int64(-500), nil, false,
			"s2", "t1", nil, nil, nil, int64(-500), nil, false,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	res, err := r.Apply(context.Background(), &budgetsync.Batch{
		Collection: budgetsync.CollectionTransactions,
		BudgetID:   "b1",
		Sets:       []budgetsync.RowSet{{Table: budgetsync.TransactionsTable, Rows: []budgetsync.Row{txn}}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Children != 2 {
		t.Errorf("Children = %d, want 2", res.Children)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncStore_EmptyChildSetOnlyDeletes(t *testing.T) {
	db, mock := newMock(t)
	r := budgetsync.NewReconciler(NewSyncStore(db, zerolog.Nop()), zerolog.Nop())

	month := budgetsync.Row{
		Values:   map[string]any{"budget_id": "b1", "month": "2024-01-01", "income": int64(0)},
		Children: map[string][]budgetsync.Row{budgetsync.CategoryMonthsTable.Name: {}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "months"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "category_months" WHERE "budget_id" = $1 AND "month" = $2`)).
		WithArgs("b1", "2024-01-01").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	_, err := r.Apply(context.Background(), &budgetsync.Batch{
		Collection: budgetsync.CollectionMonths,
		BudgetID:   "b1",
		Sets:       []budgetsync.RowSet{{Table: budgetsync.MonthsTable, Rows: []budgetsync.Row{month}}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
