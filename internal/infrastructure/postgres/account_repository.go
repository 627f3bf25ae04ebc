package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ynabmirror/internal/domain/budget"
)

const accountColumns = `
	id, budget_id, name, type, on_budget, closed, note,
	balance, cleared_balance, uncleared_balance, transfer_payee_id
`

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ budget.AccountRepository = (*AccountRepository)(nil)

func (r *AccountRepository) ListByBudget(ctx context.Context, budgetID string, page budget.Page) ([]*budget.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE budget_id = $1 AND NOT deleted
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, budgetID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*budget.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, budgetID, id string) (*budget.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE budget_id = $1 AND id = $2 AND NOT deleted
	`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, budgetID, id))
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func scanAccount(s scanner) (*budget.Account, error) {
	var acc budget.Account
	var note, transferPayeeID sql.NullString

	if err := s.Scan(
		&acc.ID, &acc.BudgetID, &acc.Name, &acc.Type, &acc.OnBudget, &acc.Closed, &note,
		&acc.Balance, &acc.ClearedBalance, &acc.UnclearedBalance, &transferPayeeID,
	); err != nil {
		return nil, err
	}

	acc.Note = stringPtr(note)
	acc.TransferPayeeID = stringPtr(transferPayeeID)
	return &acc, nil
}
