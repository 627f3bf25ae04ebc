package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"ynabmirror/internal/domain/budgetsync"
)

// txAttempts bounds how often a reconciliation is re-run after a transient
// database error such as a deadlock.
const txAttempts = 3

// SyncStore implements budgetsync.Store. Statements are generated from the
// table descriptors and cached per table.
type SyncStore struct {
	db     *DB
	logger zerolog.Logger

	upserts sync.Map // *budgetsync.Table -> string
}

func NewSyncStore(db *DB, logger zerolog.Logger) *SyncStore {
	return &SyncStore{db: db, logger: logger}
}

var _ budgetsync.Store = (*SyncStore)(nil)

// WithinTx runs fn in a READ COMMITTED transaction. Serialization failures,
// deadlocks and dropped connections re-run fn from scratch.
func (s *SyncStore) WithinTx(ctx context.Context, fn func(budgetsync.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.db.WithinTx(ctx, func(tx *Tx) error {
			return fn(&syncTx{tx: tx, store: s})
		})
		if err == nil || !IsTransient(err) || ctx.Err() != nil {
			return err
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("transient database error, retrying transaction")
	}
	return err
}

func (s *SyncStore) upsertQuery(t *budgetsync.Table) string {
	if q, ok := s.upserts.Load(t); ok {
		return q.(string)
	}
	q := buildUpsert(t)
	s.upserts.Store(t, q)
	return q
}

type syncTx struct {
	tx    *Tx
	store *SyncStore
}

func (t *syncTx) MarkDeleted(ctx context.Context, table *budgetsync.Table, budgetID string) (int64, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted = TRUE, deleted_at = CURRENT_TIMESTAMP WHERE %s = $1 AND NOT deleted`,
		pq.QuoteIdentifier(table.Name), pq.QuoteIdentifier(table.Scope),
	)
	res, err := t.tx.ExecContext(ctx, query, budgetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *syncTx) Upsert(ctx context.Context, table *budgetsync.Table, row budgetsync.Row) error {
	_, err := t.tx.ExecContext(ctx, t.store.upsertQuery(table), rowArgs(table, row)...)
	return err
}

func (t *syncTx) ReplaceChildren(ctx context.Context, c *budgetsync.ChildTable, parentKey []any, rows []budgetsync.Row) error {
	conds := make([]string, len(c.ParentKey))
	for i, col := range c.ParentKey {
		conds[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s`, pq.QuoteIdentifier(c.Name), strings.Join(conds, " AND "))
	if _, err := t.tx.ExecContext(ctx, del, parentKey...); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	args := make([]any, 0, len(rows)*(len(c.AllColumns())+1))
	for _, row := range rows {
		args = append(args, rowArgs(c.Table, row)...)
	}
	_, err := t.tx.ExecContext(ctx, buildInsert(c.Table, len(rows)), args...)
	return err
}

func (t *syncTx) SetCursor(ctx context.Context, budgetID string, c budgetsync.Collection, cursor int64) error {
	_, err := t.tx.ExecContext(ctx, setCursorQuery, budgetID, c.String(), cursor)
	return err
}

// rowArgs orders row values as the generated statements expect: key and
// data columns, then the deleted flag for soft-delete tables.
func rowArgs(t *budgetsync.Table, row budgetsync.Row) []any {
	cols := t.AllColumns()
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		args = append(args, row.Values[col])
	}
	if t.SoftDelete {
		args = append(args, row.Deleted)
	}
	return args
}

// buildUpsert renders the insert-or-overwrite statement for a parent table.
// deleted_at keeps the moment a row was first flagged and is cleared when
// the flag drops.
func buildUpsert(t *budgetsync.Table) string {
	table := pq.QuoteIdentifier(t.Name)
	cols := quoteAll(t.AllColumns())
	params := placeholders(1, len(cols))

	sets := make([]string, 0, len(t.Columns)+2)
	for _, col := range quoteAll(t.Columns) {
		sets = append(sets, col+" = EXCLUDED."+col)
	}

	if t.SoftDelete {
		n := len(cols) + 1
		cols = append(cols, "deleted", "deleted_at")
		params = append(params,
			fmt.Sprintf("$%d", n),
			fmt.Sprintf("CASE WHEN $%d::boolean THEN CURRENT_TIMESTAMP END", n),
		)
		sets = append(sets,
			"deleted = EXCLUDED.deleted",
			fmt.Sprintf("deleted_at = CASE WHEN EXCLUDED.deleted THEN COALESCE(%s.deleted_at, EXCLUDED.deleted_at) END", table),
		)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		strings.Join(quoteAll(t.Key), ", "),
		strings.Join(sets, ", "),
	)
}

// buildInsert renders a plain multi-row insert for child rows.
func buildInsert(t *budgetsync.Table, rows int) string {
	cols := quoteAll(t.AllColumns())
	if t.SoftDelete {
		cols = append(cols, "deleted")
	}

	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = "(" + strings.Join(placeholders(i*len(cols)+1, len(cols)), ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(t.Name), strings.Join(cols, ", "), strings.Join(tuples, ", "))
}

func quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pq.QuoteIdentifier(c)
	}
	return out
}

func placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return out
}
