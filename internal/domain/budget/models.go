package budget

import (
	"errors"
	"time"

	"ynabmirror/internal/domain/budgetsync"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500

	// defaultDecimalDigits applies when a budget has no currency format.
	defaultDecimalDigits = 2
)

// Domain errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPage = errors.New("invalid pagination")
)

// Page is a skip/limit window over an ordered listing.
type Page struct {
	Skip  int
	Limit int
}

// NewPage validates a window. A zero limit selects DefaultLimit.
func NewPage(skip, limit int) (Page, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if skip < 0 || limit < 1 || limit > MaxLimit {
		return Page{}, ErrInvalidPage
	}
	return Page{Skip: skip, Limit: limit}, nil
}

// Budget is a mirrored YNAB budget.
type Budget struct {
	ID                    string
	Name                  string
	LastModifiedOn        *time.Time
	FirstMonth            *string
	LastMonth             *string
	CurrencyISOCode       *string
	CurrencySymbol        *string
	CurrencyDecimalDigits *int
	DateFormat            *string
}

// DecimalDigits is the number of fractional digits amounts of this budget
// are shown with.
func (b *Budget) DecimalDigits() int32 {
	if b == nil || b.CurrencyDecimalDigits == nil {
		return defaultDecimalDigits
	}
	return int32(*b.CurrencyDecimalDigits)
}

// Amounts below are milliunits.

type Account struct {
	ID               string
	BudgetID         string
	Name             string
	Type             string
	OnBudget         bool
	Closed           bool
	Note             *string
	Balance          int64
	ClearedBalance   int64
	UnclearedBalance int64
	TransferPayeeID  *string
}

type Category struct {
	ID                     string
	BudgetID               string
	CategoryGroupID        string
	CategoryGroupName      string
	Name                   string
	Hidden                 bool
	Note                   *string
	Budgeted               int64
	Activity               int64
	Balance                int64
	GoalType               *string
	GoalTarget             *int64
	GoalTargetMonth        *string
	GoalPercentageComplete *int
}

type Payee struct {
	ID                string
	BudgetID          string
	Name              string
	TransferAccountID *string
}

type Transaction struct {
	ID                string
	BudgetID          string
	AccountID         string
	AccountName       *string
	CategoryID        *string
	CategoryName      *string
	PayeeID           *string
	PayeeName         *string
	TransferAccountID *string
	Date              string
	Amount            int64
	Memo              *string
	Cleared           string
	Approved          bool
	FlagColor         *string
	FlagName          *string
	ImportID          *string
	SubTransactions   []SubTransaction
}

type SubTransaction struct {
	ID                string
	TransactionID     string
	CategoryID        *string
	PayeeID           *string
	TransferAccountID *string
	Amount            int64
	Memo              *string
}

// SyncStatus reports how far a budget's mirror has caught up.
type SyncStatus struct {
	BudgetID string
	Cursors  []budgetsync.Cursor
	// LastRun is nil before the first recorded pass.
	LastRun *budgetsync.Run
}
