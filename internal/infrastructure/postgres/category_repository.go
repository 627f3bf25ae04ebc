package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ynabmirror/internal/domain/budget"
)

const categoryColumns = `
	c.id, c.budget_id, c.category_group_id, g.name, c.name, c.hidden, c.note,
	c.budgeted, c.activity, c.balance,
	c.goal_type, c.goal_target, c.goal_target_month, c.goal_percentage_complete
`

type CategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ budget.CategoryRepository = (*CategoryRepository)(nil)

// ListByBudget orders categories by group, the way the budget screen does.
func (r *CategoryRepository) ListByBudget(ctx context.Context, budgetID string, page budget.Page) ([]*budget.Category, error) {
	query := `SELECT ` + categoryColumns + `
		FROM categories c
		JOIN category_groups g ON g.id = c.category_group_id
		WHERE c.budget_id = $1 AND NOT c.deleted
		ORDER BY g.name, c.name, c.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, budgetID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []*budget.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, budgetID, id string) (*budget.Category, error) {
	query := `SELECT ` + categoryColumns + `
		FROM categories c
		JOIN category_groups g ON g.id = c.category_group_id
		WHERE c.budget_id = $1 AND c.id = $2 AND NOT c.deleted
	`

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, budgetID, id))
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func scanCategory(s scanner) (*budget.Category, error) {
	var c budget.Category
	var note, goalType sql.NullString
	var goalTarget sql.NullInt64
	var goalTargetMonth sql.NullTime
	var goalPct sql.NullInt32

	if err := s.Scan(
		&c.ID, &c.BudgetID, &c.CategoryGroupID, &c.CategoryGroupName, &c.Name, &c.Hidden, &note,
		&c.Budgeted, &c.Activity, &c.Balance,
		&goalType, &goalTarget, &goalTargetMonth, &goalPct,
	); err != nil {
		return nil, err
	}

	c.Note = stringPtr(note)
	c.GoalType = stringPtr(goalType)
	c.GoalTarget = int64Ptr(goalTarget)
	c.GoalTargetMonth = datePtr(goalTargetMonth)
	c.GoalPercentageComplete = intPtr(goalPct)
	return &c, nil
}
