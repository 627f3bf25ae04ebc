package budget

import (
	"context"
	"errors"
	"fmt"
)

// Repositories groups the read-side stores the service needs.
type Repositories struct {
	Budgets      Repository
	Accounts     AccountRepository
	Categories   CategoryRepository
	Payees       PayeeRepository
	Transactions TransactionRepository
}

// Service answers read queries over the mirror. It never writes.
type Service struct {
	repos Repositories
}

func NewService(repos Repositories) *Service {
	return &Service{repos: repos}
}

func (s *Service) ListBudgets(ctx context.Context, page Page) ([]*Budget, error) {
	return s.repos.Budgets.List(ctx, page)
}

func (s *Service) GetBudget(ctx context.Context, id string) (*Budget, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return notFound(s.repos.Budgets.GetByID(ctx, id))
}

// SyncStatus reports cursors and the latest pass for an existing budget.
func (s *Service) SyncStatus(ctx context.Context, budgetID string) (*SyncStatus, error) {
	if _, err := s.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}
	status, err := s.repos.Budgets.SyncStatus(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync status: %w", err)
	}
	return status, nil
}

// The nested listings expect a budget already resolved with GetBudget.

func (s *Service) ListAccounts(ctx context.Context, b *Budget, page Page) ([]*Account, error) {
	return s.repos.Accounts.ListByBudget(ctx, b.ID, page)
}

func (s *Service) GetAccount(ctx context.Context, b *Budget, id string) (*Account, error) {
	return notFound(s.repos.Accounts.GetByID(ctx, b.ID, id))
}

func (s *Service) ListCategories(ctx context.Context, b *Budget, page Page) ([]*Category, error) {
	return s.repos.Categories.ListByBudget(ctx, b.ID, page)
}

func (s *Service) GetCategory(ctx context.Context, b *Budget, id string) (*Category, error) {
	return notFound(s.repos.Categories.GetByID(ctx, b.ID, id))
}

func (s *Service) ListPayees(ctx context.Context, b *Budget, page Page) ([]*Payee, error) {
	return s.repos.Payees.ListByBudget(ctx, b.ID, page)
}

func (s *Service) GetPayee(ctx context.Context, b *Budget, id string) (*Payee, error) {
	return notFound(s.repos.Payees.GetByID(ctx, b.ID, id))
}

func (s *Service) ListTransactions(ctx context.Context, b *Budget, page Page) ([]*Transaction, error) {
	return s.repos.Transactions.ListByBudget(ctx, b.ID, page)
}

func (s *Service) GetTransaction(ctx context.Context, b *Budget, id string) (*Transaction, error) {
	return notFound(s.repos.Transactions.GetByID(ctx, b.ID, id))
}

// notFound turns a nil result without error into ErrNotFound.
func notFound[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}
