package ynab

import "encoding/json"

// Amounts are milliunits (1000 = one unit of the budget currency).
// Optional fields are pointers; nil means the upstream sent null or omitted them.

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// ErrorResponse is the body YNAB returns with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

type DateFormat struct {
	Format string `json:"format"`
}

type CurrencyFormat struct {
	ISOCode          string `json:"iso_code"`
	ExampleFormat    string `json:"example_format"`
	DecimalDigits    int    `json:"decimal_digits"`
	DecimalSeparator string `json:"decimal_separator"`
	SymbolFirst      bool   `json:"symbol_first"`
	GroupSeparator   string `json:"group_separator"`
	CurrencySymbol   string `json:"currency_symbol"`
	DisplaySymbol    bool   `json:"display_symbol"`
}

type Budget struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	LastModifiedOn *string         `json:"last_modified_on"`
	FirstMonth     *string         `json:"first_month"`
	LastMonth      *string         `json:"last_month"`
	DateFormat     *DateFormat     `json:"date_format"`
	CurrencyFormat *CurrencyFormat `json:"currency_format"`
}

type BudgetsResponse struct {
	Budgets []Budget `json:"budgets"`
}

type Account struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	OnBudget         bool    `json:"on_budget"`
	Closed           bool    `json:"closed"`
	Note             *string `json:"note"`
	Balance          int64   `json:"balance"`
	ClearedBalance   int64   `json:"cleared_balance"`
	UnclearedBalance int64   `json:"uncleared_balance"`
	TransferPayeeID  *string `json:"transfer_payee_id"`
	Deleted          bool    `json:"deleted"`
}

type AccountsResponse struct {
	Accounts        []Account `json:"accounts"`
	ServerKnowledge int64     `json:"server_knowledge"`
}

type Category struct {
	ID                     string  `json:"id"`
	CategoryGroupID        string  `json:"category_group_id"`
	Name                   string  `json:"name"`
	Hidden                 bool    `json:"hidden"`
	Note                   *string `json:"note"`
	Budgeted               int64   `json:"budgeted"`
	Activity               int64   `json:"activity"`
	Balance                int64   `json:"balance"`
	GoalType               *string `json:"goal_type"`
	GoalTarget             *int64  `json:"goal_target"`
	GoalTargetMonth        *string `json:"goal_target_month"`
	GoalPercentageComplete *int    `json:"goal_percentage_complete"`
	GoalMonthsToBudget     *int    `json:"goal_months_to_budget"`
	GoalUnderFunded        *int64  `json:"goal_under_funded"`
	GoalOverallFunded      *int64  `json:"goal_overall_funded"`
	GoalOverallLeft        *int64  `json:"goal_overall_left"`
	Deleted                bool    `json:"deleted"`
}

type CategoryGroup struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Hidden     bool       `json:"hidden"`
	Deleted    bool       `json:"deleted"`
	Categories []Category `json:"categories"`
}

type CategoriesResponse struct {
	CategoryGroups  []CategoryGroup `json:"category_groups"`
	ServerKnowledge int64           `json:"server_knowledge"`
}

type Payee struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TransferAccountID *string `json:"transfer_account_id"`
	Deleted           bool    `json:"deleted"`
}

type PayeesResponse struct {
	Payees          []Payee `json:"payees"`
	ServerKnowledge int64   `json:"server_knowledge"`
}

type SubTransaction struct {
	ID                string  `json:"id"`
	TransactionID     string  `json:"transaction_id"`
	Amount            int64   `json:"amount"`
	Memo              *string `json:"memo"`
	PayeeID           *string `json:"payee_id"`
	CategoryID        *string `json:"category_id"`
	TransferAccountID *string `json:"transfer_account_id"`
	Deleted           bool    `json:"deleted"`
}

type Transaction struct {
	ID                string           `json:"id"`
	Date              string           `json:"date"`
	Amount            int64            `json:"amount"`
	Memo              *string          `json:"memo"`
	Cleared           string           `json:"cleared"`
	Approved          bool             `json:"approved"`
	FlagColor         *string          `json:"flag_color"`
	FlagName          *string          `json:"flag_name"`
	AccountID         string           `json:"account_id"`
	PayeeID           *string          `json:"payee_id"`
	CategoryID        *string          `json:"category_id"`
	TransferAccountID *string          `json:"transfer_account_id"`
	ImportID          *string          `json:"import_id"`
	Deleted           bool             `json:"deleted"`
	SubTransactions   []SubTransaction `json:"subtransactions"`
}

type TransactionsResponse struct {
	Transactions    []Transaction `json:"transactions"`
	ServerKnowledge int64         `json:"server_knowledge"`
}

type ScheduledSubTransaction struct {
	ID                     string  `json:"id"`
	ScheduledTransactionID string  `json:"scheduled_transaction_id"`
	Amount                 int64   `json:"amount"`
	Memo                   *string `json:"memo"`
	PayeeID                *string `json:"payee_id"`
	CategoryID             *string `json:"category_id"`
	TransferAccountID      *string `json:"transfer_account_id"`
	Deleted                bool    `json:"deleted"`
}

type ScheduledTransaction struct {
	ID                string                    `json:"id"`
	DateFirst         string                    `json:"date_first"`
	DateNext          string                    `json:"date_next"`
	Frequency         string                    `json:"frequency"`
	Amount            int64                     `json:"amount"`
	Memo              *string                   `json:"memo"`
	FlagColor         *string                   `json:"flag_color"`
	FlagName          *string                   `json:"flag_name"`
	AccountID         string                    `json:"account_id"`
	PayeeID           *string                   `json:"payee_id"`
	CategoryID        *string                   `json:"category_id"`
	TransferAccountID *string                   `json:"transfer_account_id"`
	Deleted           bool                      `json:"deleted"`
	SubTransactions   []ScheduledSubTransaction `json:"subtransactions"`
}

type ScheduledTransactionsResponse struct {
	ScheduledTransactions []ScheduledTransaction `json:"scheduled_transactions"`
	ServerKnowledge       int64                  `json:"server_knowledge"`
}

// Month is a month summary. Categories is only populated by the single
// month endpoint.
type Month struct {
	Month        string     `json:"month"`
	Note         *string    `json:"note"`
	Income       int64      `json:"income"`
	Budgeted     int64      `json:"budgeted"`
	Activity     int64      `json:"activity"`
	ToBeBudgeted int64      `json:"to_be_budgeted"`
	AgeOfMoney   *int       `json:"age_of_money"`
	Deleted      bool       `json:"deleted"`
	Categories   []Category `json:"categories,omitempty"`
}

type MonthsResponse struct {
	Months          []Month `json:"months"`
	ServerKnowledge int64   `json:"server_knowledge"`
}

type MonthResponse struct {
	Month Month `json:"month"`
}
