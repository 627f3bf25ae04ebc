package budget

import "context"

// Repositories are implemented in the infrastructure layer. Every lookup
// excludes soft-deleted rows and reports ErrNotFound for them.

type Repository interface {
	List(ctx context.Context, page Page) ([]*Budget, error)
	GetByID(ctx context.Context, id string) (*Budget, error)
	// SyncStatus returns the budget's cursors and the latest recorded pass.
	SyncStatus(ctx context.Context, budgetID string) (*SyncStatus, error)
}

type AccountRepository interface {
	ListByBudget(ctx context.Context, budgetID string, page Page) ([]*Account, error)
	GetByID(ctx context.Context, budgetID, id string) (*Account, error)
}

type CategoryRepository interface {
	ListByBudget(ctx context.Context, budgetID string, page Page) ([]*Category, error)
	GetByID(ctx context.Context, budgetID, id string) (*Category, error)
}

type PayeeRepository interface {
	ListByBudget(ctx context.Context, budgetID string, page Page) ([]*Payee, error)
	GetByID(ctx context.Context, budgetID, id string) (*Payee, error)
}

// TransactionRepository returns transactions newest first, each with its
// subtransactions.
type TransactionRepository interface {
	ListByBudget(ctx context.Context, budgetID string, page Page) ([]*Transaction, error)
	GetByID(ctx context.Context, budgetID, id string) (*Transaction, error)
}
