package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ynabmirror/internal/domain/budget"
)

type PayeeRepository struct {
	db *DB
}

func NewPayeeRepository(db *DB) *PayeeRepository {
	return &PayeeRepository{db: db}
}

var _ budget.PayeeRepository = (*PayeeRepository)(nil)

func (r *PayeeRepository) ListByBudget(ctx context.Context, budgetID string, page budget.Page) ([]*budget.Payee, error) {
	query := `
		SELECT id, budget_id, name, transfer_account_id
		FROM payees
		WHERE budget_id = $1 AND NOT deleted
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, budgetID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query payees: %w", err)
	}
	defer rows.Close()

	payees := []*budget.Payee{}
	for rows.Next() {
		p, err := scanPayee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payee: %w", err)
		}
		payees = append(payees, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payees: %w", err)
	}
	return payees, nil
}

func (r *PayeeRepository) GetByID(ctx context.Context, budgetID, id string) (*budget.Payee, error) {
	query := `
		SELECT id, budget_id, name, transfer_account_id
		FROM payees
		WHERE budget_id = $1 AND id = $2 AND NOT deleted
	`

	p, err := scanPayee(r.db.QueryRowContext(ctx, query, budgetID, id))
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payee: %w", err)
	}
	return p, nil
}

func scanPayee(s scanner) (*budget.Payee, error) {
	var p budget.Payee
	var transferAccountID sql.NullString
	if err := s.Scan(&p.ID, &p.BudgetID, &p.Name, &transferAccountID); err != nil {
		return nil, err
	}
	p.TransferAccountID = stringPtr(transferAccountID)
	return &p, nil
}
