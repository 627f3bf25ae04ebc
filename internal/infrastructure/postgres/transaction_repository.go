package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ynabmirror/internal/domain/budget"
)

const transactionSelect = `
	SELECT t.id, t.budget_id, t.account_id, a.name, t.category_id, c.name,
		t.payee_id, p.name, t.transfer_account_id, t.date, t.amount, t.memo,
		t.cleared, t.approved, t.flag_color, t.flag_name, t.import_id
	FROM transactions t
	LEFT JOIN accounts a ON a.id = t.account_id
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN payees p ON p.id = t.payee_id
`

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ budget.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) ListByBudget(ctx context.Context, budgetID string, page budget.Page) ([]*budget.Transaction, error) {
	query := transactionSelect + `
		WHERE t.budget_id = $1 AND NOT t.deleted
		ORDER BY t.date DESC, t.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, budgetID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*budget.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	if err := r.attachSubTransactions(ctx, transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, budgetID, id string) (*budget.Transaction, error) {
	query := transactionSelect + `WHERE t.budget_id = $1 AND t.id = $2 AND NOT t.deleted`

	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, budgetID, id))
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if err := r.attachSubTransactions(ctx, []*budget.Transaction{txn}); err != nil {
		return nil, err
	}
	return txn, nil
}

// attachSubTransactions loads the live subtransactions of every given
// transaction in a single query.
func (r *TransactionRepository) attachSubTransactions(ctx context.Context, transactions []*budget.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	byID := make(map[string]*budget.Transaction, len(transactions))
	ids := make([]string, 0, len(transactions))
	for _, txn := range transactions {
		txn.SubTransactions = []budget.SubTransaction{}
		byID[txn.ID] = txn
		ids = append(ids, txn.ID)
	}

	query := `
		SELECT id, transaction_id, category_id, payee_id, transfer_account_id, amount, memo
		FROM subtransactions
		WHERE transaction_id = ANY($1) AND NOT deleted
		ORDER BY transaction_id, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query subtransactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub budget.SubTransaction
		var categoryID, payeeID, transferAccountID, memo sql.NullString
		if err := rows.Scan(
			&sub.ID, &sub.TransactionID, &categoryID, &payeeID, &transferAccountID, &sub.Amount, &memo,
		); err != nil {
			return fmt.Errorf("failed to scan subtransaction: %w", err)
		}
		sub.CategoryID = stringPtr(categoryID)
		sub.PayeeID = stringPtr(payeeID)
		sub.TransferAccountID = stringPtr(transferAccountID)
		sub.Memo = stringPtr(memo)

		if parent, ok := byID[sub.TransactionID]; ok {
			parent.SubTransactions = append(parent.SubTransactions, sub)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating subtransactions: %w", err)
	}
	return nil
}

func scanTransaction(s scanner) (*budget.Transaction, error) {
	var txn budget.Transaction
	var accountName, categoryID, categoryName, payeeID, payeeName sql.NullString
	var transferAccountID, memo, flagColor, flagName, importID sql.NullString
	var date time.Time

	if err := s.Scan(
		&txn.ID, &txn.BudgetID, &txn.AccountID, &accountName, &categoryID, &categoryName,
		&payeeID, &payeeName, &transferAccountID, &date, &txn.Amount, &memo,
		&txn.Cleared, &txn.Approved, &flagColor, &flagName, &importID,
	); err != nil {
		return nil, err
	}

	txn.AccountName = stringPtr(accountName)
	txn.CategoryID = stringPtr(categoryID)
	txn.CategoryName = stringPtr(categoryName)
	txn.PayeeID = stringPtr(payeeID)
	txn.PayeeName = stringPtr(payeeName)
	txn.TransferAccountID = stringPtr(transferAccountID)
	txn.Date = date.Format(dateLayout)
	txn.Memo = stringPtr(memo)
	txn.FlagColor = stringPtr(flagColor)
	txn.FlagName = stringPtr(flagName)
	txn.ImportID = stringPtr(importID)
	return &txn, nil
}
