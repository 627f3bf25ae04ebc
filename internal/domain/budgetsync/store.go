package budgetsync

import (
	"context"
	"time"
)

// Store runs reconciliation work inside a single transaction.
type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of writes the reconciler needs. Implementations derive
// their statements from the Table descriptors.
type Tx interface {
	// MarkDeleted flags every live row of t within the budget scope as
	// deleted and returns how many rows it flagged.
	MarkDeleted(ctx context.Context, t *Table, budgetID string) (int64, error)
	// Upsert inserts row or overwrites every column of the existing row
	// with the same key, including the deleted flag.
	Upsert(ctx context.Context, t *Table, row Row) error
	// ReplaceChildren removes all rows of c belonging to parentKey and
	// inserts rows in their place.
	ReplaceChildren(ctx context.Context, c *ChildTable, parentKey []any, rows []Row) error
	// SetCursor records the collection's watermark. It never lowers a
	// stored value.
	SetCursor(ctx context.Context, budgetID string, c Collection, cursor int64) error
}

// CursorStore reads and writes per (budget, collection) watermarks outside
// of a reconciliation.
type CursorStore interface {
	// Get returns the stored cursors for a budget; a missing collection
	// means it has never completed a sync.
	Get(ctx context.Context, budgetID string) (map[Collection]int64, error)
	Set(ctx context.Context, budgetID string, c Collection, cursor int64) error
}

// Cursor is a stored watermark.
type Cursor struct {
	BudgetID   string
	Collection Collection
	Value      int64
	UpdatedAt  time.Time
}

// RunStatus is the lifecycle state of a recorded sync pass.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one sync pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Budgets    int
	Failures   []Failure
}

// RunStore records sync passes for operators.
type RunStore interface {
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
}
