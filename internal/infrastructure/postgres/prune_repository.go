package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ynabmirror/internal/domain/budgetsync"
)

// pruneGuards keep rows that live rows still reference.
var pruneGuards = map[string]string{
	budgetsync.CategoryGroupsTable.Name: `NOT EXISTS (SELECT 1 FROM categories c WHERE c.category_group_id = category_groups.id)`,
}

// PruneRepository hard-deletes soft-deleted rows.
type PruneRepository struct {
	db *DB
}

func NewPruneRepository(db *DB) *PruneRepository {
	return &PruneRepository{db: db}
}

// Prune removes rows flagged deleted before cutoff from every budget-scoped
// table, children going with their parents. budgetIDs narrows the prune;
// empty means every budget. Budgets themselves are never removed. It returns
// the rows removed per table.
func (r *PruneRepository) Prune(ctx context.Context, cutoff time.Time, budgetIDs []string) (map[string]int64, error) {
	removed := make(map[string]int64)

	err := r.db.WithinTx(ctx, func(tx *Tx) error {
		// Reverse order so referencing tables go first.
		for i := len(budgetsync.Tables) - 1; i >= 0; i-- {
			t := budgetsync.Tables[i]
			if !t.SoftDelete || t.Scope == "" {
				continue
			}

			query := fmt.Sprintf(`
				DELETE FROM %[1]s
				WHERE deleted AND deleted_at < $1
				AND ($2::text[] IS NULL OR %[2]s = ANY($2::text[]))`,
				pq.QuoteIdentifier(t.Name), pq.QuoteIdentifier(t.Scope),
			)
			if guard, ok := pruneGuards[t.Name]; ok {
				query += " AND " + guard
			}

			res, err := tx.ExecContext(ctx, query, cutoff, pq.Array(budgetIDs))
			if err != nil {
				return fmt.Errorf("failed to prune %s: %w", t.Name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count pruned %s: %w", t.Name, err)
			}
			removed[t.Name] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
