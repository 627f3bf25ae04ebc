package ynab

import (
	"context"
)

// ClientInterface defines the YNAB endpoints the sync engine consumes.
// A nil lastKnowledge requests a full snapshot.
type ClientInterface interface {
	GetBudgets(ctx context.Context) (*BudgetsResponse, error)
	GetAccounts(ctx context.Context, budgetID string, lastKnowledge *int64) (*AccountsResponse, error)
	GetCategories(ctx context.Context, budgetID string, lastKnowledge *int64) (*CategoriesResponse, error)
	GetPayees(ctx context.Context, budgetID string, lastKnowledge *int64) (*PayeesResponse, error)
	GetTransactions(ctx context.Context, budgetID string, lastKnowledge *int64) (*TransactionsResponse, error)
	GetScheduledTransactions(ctx context.Context, budgetID string, lastKnowledge *int64) (*ScheduledTransactionsResponse, error)
	GetMonths(ctx context.Context, budgetID string, lastKnowledge *int64) (*MonthsResponse, error)
	GetMonth(ctx context.Context, budgetID, month string) (*Month, error)
}
