package postgres

import (
	"context"
	"fmt"

	"ynabmirror/internal/domain/budgetsync"
)

// setCursorQuery never lowers a stored cursor.
const setCursorQuery = `
	INSERT INTO sync_cursors (budget_id, collection, cursor, updated_at)
	VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
	ON CONFLICT (budget_id, collection) DO UPDATE SET
		cursor = GREATEST(sync_cursors.cursor, EXCLUDED.cursor),
		updated_at = CURRENT_TIMESTAMP
`

type CursorRepository struct {
	db *DB
}

func NewCursorRepository(db *DB) *CursorRepository {
	return &CursorRepository{db: db}
}

var _ budgetsync.CursorStore = (*CursorRepository)(nil)

func (r *CursorRepository) Get(ctx context.Context, budgetID string) (map[budgetsync.Collection]int64, error) {
	cursors, err := r.List(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	out := make(map[budgetsync.Collection]int64, len(cursors))
	for _, c := range cursors {
		out[c.Collection] = c.Value
	}
	return out, nil
}

func (r *CursorRepository) Set(ctx context.Context, budgetID string, c budgetsync.Collection, cursor int64) error {
	if _, err := r.db.ExecContext(ctx, setCursorQuery, budgetID, c.String(), cursor); err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

// List returns the stored cursors of a budget ordered by collection.
func (r *CursorRepository) List(ctx context.Context, budgetID string) ([]budgetsync.Cursor, error) {
	query := `
		SELECT budget_id, collection, cursor, updated_at
		FROM sync_cursors
		WHERE budget_id = $1
		ORDER BY collection
	`

	rows, err := r.db.QueryContext(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cursors: %w", err)
	}
	defer rows.Close()

	var cursors []budgetsync.Cursor
	for rows.Next() {
		var c budgetsync.Cursor
		var collection string
		if err := rows.Scan(&c.BudgetID, &collection, &c.Value, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cursor: %w", err)
		}
		c.Collection = budgetsync.Collection(collection)
		cursors = append(cursors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cursors: %w", err)
	}
	return cursors, nil
}
