package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ynabmirror/internal/domain/budget"
)

const budgetColumns = `
	id, name, last_modified_on, first_month, last_month,
	currency_format_iso_code, currency_format_symbol, currency_decimal_digits, date_format
`

type BudgetRepository struct {
	db      *DB
	cursors *CursorRepository
	runs    *RunRepository
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{
		db:      db,
		cursors: NewCursorRepository(db),
		runs:    NewRunRepository(db),
	}
}

var _ budget.Repository = (*BudgetRepository)(nil)

func (r *BudgetRepository) List(ctx context.Context, page budget.Page) ([]*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + `
		FROM budgets
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	budgets := []*budget.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, id string) (*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1`

	b, err := scanBudget(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return b, nil
}

func (r *BudgetRepository) SyncStatus(ctx context.Context, budgetID string) (*budget.SyncStatus, error) {
	cursors, err := r.cursors.List(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	run, err := r.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &budget.SyncStatus{BudgetID: budgetID, Cursors: cursors, LastRun: run}, nil
}

func scanBudget(s scanner) (*budget.Budget, error) {
	var b budget.Budget
	var lastModified, firstMonth, lastMonth sql.NullTime
	var isoCode, symbol, dateFormat sql.NullString
	var digits sql.NullInt32

	if err := s.Scan(
		&b.ID, &b.Name, &lastModified, &firstMonth, &lastMonth,
		&isoCode, &symbol, &digits, &dateFormat,
	); err != nil {
		return nil, err
	}

	b.LastModifiedOn = timePtr(lastModified)
	b.FirstMonth = datePtr(firstMonth)
	b.LastMonth = datePtr(lastMonth)
	b.CurrencyISOCode = stringPtr(isoCode)
	b.CurrencySymbol = stringPtr(symbol)
	b.CurrencyDecimalDigits = intPtr(digits)
	b.DateFormat = stringPtr(dateFormat)
	return &b, nil
}
