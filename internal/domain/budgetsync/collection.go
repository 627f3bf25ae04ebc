package budgetsync

// Collection names one upstream entity collection. The string value is
// also the key stored in sync_cursors.
type Collection string

const (
	CollectionBudgets               Collection = "budgets"
	CollectionAccounts              Collection = "accounts"
	CollectionCategories            Collection = "categories"
	CollectionPayees                Collection = "payees"
	CollectionTransactions          Collection = "transactions"
	CollectionScheduledTransactions Collection = "scheduled_transactions"
	CollectionMonths                Collection = "months"
)

// BudgetCollections is the fixed order in which a budget's collections are
// synchronized. Payees and accounts precede transactions so that most
// references resolve within one pass.
var BudgetCollections = []Collection{
	CollectionAccounts,
	CollectionCategories,
	CollectionPayees,
	CollectionTransactions,
	CollectionScheduledTransactions,
	CollectionMonths,
}

func (c Collection) String() string { return string(c) }
