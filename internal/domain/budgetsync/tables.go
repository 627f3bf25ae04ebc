package budgetsync

import "fmt"

// Table describes how one entity type is laid out in the store. The
// reconciler is driven entirely by these descriptors.
type Table struct {
	Name string
	// Key lists the primary key columns.
	Key []string
	// Columns lists every non-key column written on upsert. A column missing
	// from a row's Values is written as NULL.
	Columns []string
	// Scope is the column that ties a row to its budget. Full syncs flag
	// rows as deleted within this scope.
	Scope string
	// SoftDelete reports whether the table carries a deleted flag. Tables
	// without one are never flagged by a full sync.
	SoftDelete bool
	Children   []*ChildTable
}

// ChildTable is a table whose rows belong to exactly one parent row and
// are always replaced as a set.
type ChildTable struct {
	*Table
	// ParentKey lists the child's columns holding the parent's key, in the
	// order of the parent's Key.
	ParentKey []string
}

// AllColumns returns the key columns followed by the data columns.
func (t *Table) AllColumns() []string {
	cols := make([]string, 0, len(t.Key)+len(t.Columns))
	cols = append(cols, t.Key...)
	return append(cols, t.Columns...)
}

// KeyOf extracts the primary key values of row.
func (t *Table) KeyOf(row Row) []any {
	key := make([]any, len(t.Key))
	for i, col := range t.Key {
		key[i] = row.Values[col]
	}
	return key
}

// Validate reports rows that cannot be written to t.
func (t *Table) Validate(row Row) error {
	for _, col := range t.Key {
		if v, ok := row.Values[col]; !ok || v == nil {
			return fmt.Errorf("%s: missing key column %s", t.Name, col)
		}
	}
	return nil
}

// Row is one entity as delivered by the upstream, keyed by column name.
type Row struct {
	Values   map[string]any
	Deleted  bool
	Children map[string][]Row
}

// RowSet groups rows destined for one table.
type RowSet struct {
	Table *Table
	Rows  []Row
}

// Batch is the result of one fetch: every row the upstream returned for a
// collection of one budget, plus the cursor to record once they are stored.
type Batch struct {
	Collection Collection
	BudgetID   string
	// Full is set when the batch is a complete snapshot rather than a delta.
	Full bool
	// Cursor is nil for collections the upstream does not version.
	Cursor *int64
	// Sets are applied in order; parents precede the tables referencing them.
	Sets []RowSet
}

// Len returns the number of top-level rows in the batch.
func (b *Batch) Len() int {
	n := 0
	for _, s := range b.Sets {
		n += len(s.Rows)
	}
	return n
}

var (
	BudgetsTable = &Table{
		Name: "budgets",
		Key:  []string{"id"},
		Columns: []string{
			"name", "last_modified_on", "first_month", "last_month",
			"currency_format_iso_code", "currency_format_symbol",
			"currency_decimal_digits", "date_format",
		},
	}

	AccountsTable = &Table{
		Name: "accounts",
		Key:  []string{"id"},
		Columns: []string{
			"budget_id", "name", "type", "on_budget", "closed", "note",
			"balance", "cleared_balance", "uncleared_balance", "transfer_payee_id",
		},
		Scope:      "budget_id",
		SoftDelete: true,
	}

	CategoryGroupsTable = &Table{
		Name:       "category_groups",
		Key:        []string{"id"},
		Columns:    []string{"budget_id", "name", "hidden"},
		Scope:      "budget_id",
		SoftDelete: true,
	}

	CategoriesTable = &Table{
		Name: "categories",
		Key:  []string{"id"},
		Columns: []string{
			"budget_id", "category_group_id", "name", "hidden", "note",
			"budgeted", "activity", "balance",
			"goal_type", "goal_target", "goal_target_month", "goal_percentage_complete",
			"goal_months_to_budget", "goal_under_funded", "goal_overall_funded", "goal_overall_left",
		},
		Scope:      "budget_id",
		SoftDelete: true,
	}

	PayeesTable = &Table{
		Name:       "payees",
		Key:        []string{"id"},
		Columns:    []string{"budget_id", "name", "transfer_account_id"},
		Scope:      "budget_id",
		SoftDelete: true,
	}

	SubtransactionsTable = &ChildTable{
		Table: &Table{
			Name: "subtransactions",
			Key:  []string{"id"},
			Columns: []string{
				"transaction_id", "category_id", "payee_id", "transfer_account_id", "amount", "memo",
			},
			SoftDelete: true,
		},
		ParentKey: []string{"transaction_id"},
	}

	TransactionsTable = &Table{
		Name: "transactions",
		Key:  []string{"id"},
		Columns: []string{
			"budget_id", "account_id", "category_id", "payee_id", "transfer_account_id",
			"date", "amount", "memo", "cleared", "approved", "flag_color", "flag_name", "import_id",
		},
		Scope:      "budget_id",
		SoftDelete: true,
		Children:   []*ChildTable{SubtransactionsTable},
	}

	ScheduledSubtransactionsTable = &ChildTable{
		Table: &Table{
			Name: "scheduled_subtransactions",
			Key:  []string{"id"},
			Columns: []string{
				"scheduled_transaction_id", "category_id", "payee_id", "transfer_account_id", "amount", "memo",
			},
			SoftDelete: true,
		},
		ParentKey: []string{"scheduled_transaction_id"},
	}

	ScheduledTransactionsTable = &Table{
		Name: "scheduled_transactions",
		Key:  []string{"id"},
		Columns: []string{
			"budget_id", "account_id", "category_id", "payee_id", "transfer_account_id",
			"date_first", "date_next", "frequency", "amount", "memo", "flag_color", "flag_name",
		},
		Scope:      "budget_id",
		SoftDelete: true,
		Children:   []*ChildTable{ScheduledSubtransactionsTable},
	}

	CategoryMonthsTable = &ChildTable{
		Table: &Table{
			Name:    "category_months",
			Key:     []string{"budget_id", "month", "category_id"},
			Columns: []string{"budgeted", "activity", "balance"},
		},
		ParentKey: []string{"budget_id", "month"},
	}

	MonthsTable = &Table{
		Name: "months",
		Key:  []string{"budget_id", "month"},
		Columns: []string{
			"note", "income", "budgeted", "activity", "to_be_budgeted", "age_of_money",
		},
		Scope:      "budget_id",
		SoftDelete: true,
		Children:   []*ChildTable{CategoryMonthsTable},
	}

	// MonthSummariesTable is MonthsTable without the per-category children,
	// used when month details are not fetched so stored figures survive.
	MonthSummariesTable = &Table{
		Name:       MonthsTable.Name,
		Key:        MonthsTable.Key,
		Columns:    MonthsTable.Columns,
		Scope:      MonthsTable.Scope,
		SoftDelete: MonthsTable.SoftDelete,
	}
)

// Tables lists every table the sync engine writes, parents first.
var Tables = []*Table{
	BudgetsTable,
	AccountsTable,
	CategoryGroupsTable,
	CategoriesTable,
	PayeesTable,
	TransactionsTable,
	SubtransactionsTable.Table,
	ScheduledTransactionsTable,
	ScheduledSubtransactionsTable.Table,
	MonthsTable,
	CategoryMonthsTable.Table,
}
