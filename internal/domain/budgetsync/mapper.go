package budgetsync

import (
	"ynabmirror/internal/infrastructure/ynab"
)

// opt turns an optional upstream field into a column value: nil for absent,
// the plain value otherwise.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// BudgetRows maps the budget list. Budgets carry no deleted flag upstream.
func BudgetRows(budgets []ynab.Budget) []Row {
	rows := make([]Row, 0, len(budgets))
	for _, b := range budgets {
		values := map[string]any{
			"id":               b.ID,
			"name":             b.Name,
			"last_modified_on": opt(b.LastModifiedOn),
			"first_month":      opt(b.FirstMonth),
			"last_month":       opt(b.LastMonth),
		}
		if b.CurrencyFormat != nil {
			values["currency_format_iso_code"] = b.CurrencyFormat.ISOCode
			values["currency_format_symbol"] = b.CurrencyFormat.CurrencySymbol
			values["currency_decimal_digits"] = b.CurrencyFormat.DecimalDigits
		}
		if b.DateFormat != nil {
			values["date_format"] = b.DateFormat.Format
		}
		rows = append(rows, Row{Values: values})
	}
	return rows
}

func accountRows(budgetID string, accounts []ynab.Account) []Row {
	rows := make([]Row, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, Row{
			Values: map[string]any{
				"id":                a.ID,
				"budget_id":         budgetID,
				"name":              a.Name,
				"type":              a.Type,
				"on_budget":         a.OnBudget,
				"closed":            a.Closed,
				"note":              opt(a.Note),
				"balance":           a.Balance,
				"cleared_balance":   a.ClearedBalance,
				"uncleared_balance": a.UnclearedBalance,
				"transfer_payee_id": opt(a.TransferPayeeID),
			},
			Deleted: a.Deleted,
		})
	}
	return rows
}

// categoryRows flattens groups into two row sets. Categories are stored as
// independent rows rather than children of their group: delta responses
// only list changed categories, so replacing a group's set would drop the
// unchanged ones.
func categoryRows(budgetID string, groups []ynab.CategoryGroup) (groupRows, catRows []Row) {
	for _, g := range groups {
		groupRows = append(groupRows, Row{
			Values: map[string]any{
				"id":        g.ID,
				"budget_id": budgetID,
				"name":      g.Name,
				"hidden":    g.Hidden,
			},
			Deleted: g.Deleted,
		})
		for _, c := range g.Categories {
			groupID := c.CategoryGroupID
			if groupID == "" {
				groupID = g.ID
			}
			catRows = append(catRows, Row{
				Values: map[string]any{
					"id":                       c.ID,
					"budget_id":                budgetID,
					"category_group_id":        groupID,
					"name":                     c.Name,
					"hidden":                   c.Hidden,
					"note":                     opt(c.Note),
					"budgeted":                 c.Budgeted,
					"activity":                 c.Activity,
					"balance":                  c.Balance,
					"goal_type":                opt(c.GoalType),
					"goal_target":              opt(c.GoalTarget),
					"goal_target_month":        opt(c.GoalTargetMonth),
					"goal_percentage_complete": opt(c.GoalPercentageComplete),
					"goal_months_to_budget":    opt(c.GoalMonthsToBudget),
					"goal_under_funded":        opt(c.GoalUnderFunded),
					"goal_overall_funded":      opt(c.GoalOverallFunded),
					"goal_overall_left":        opt(c.GoalOverallLeft),
				},
				Deleted: c.Deleted,
			})
		}
	}
	return groupRows, catRows
}

func payeeRows(budgetID string, payees []ynab.Payee) []Row {
	rows := make([]Row, 0, len(payees))
	for _, p := range payees {
		rows = append(rows, Row{
			Values: map[string]any{
				"id":                  p.ID,
				"budget_id":           budgetID,
				"name":                p.Name,
				"transfer_account_id": opt(p.TransferAccountID),
			},
			Deleted: p.Deleted,
		})
	}
	return rows
}

func transactionRows(budgetID string, txns []ynab.Transaction) []Row {
	rows := make([]Row, 0, len(txns))
	for _, t := range txns {
		subs := make([]Row, 0, len(t.SubTransactions))
		for _, s := range t.SubTransactions {
			subs = append(subs, Row{
				Values: map[string]any{
					"id":                  s.ID,
					"transaction_id":      t.ID,
					"category_id":         opt(s.CategoryID),
					"payee_id":            opt(s.PayeeID),
					"transfer_account_id": opt(s.TransferAccountID),
					"amount":              s.Amount,
					"memo":                opt(s.Memo),
				},
				Deleted: s.Deleted,
			})
		}
		rows = append(rows, Row{
			Values: map[string]any{
				"id":                  t.ID,
				"budget_id":           budgetID,
				"account_id":          t.AccountID,
				"category_id":         opt(t.CategoryID),
				"payee_id":            opt(t.PayeeID),
				"transfer_account_id": opt(t.TransferAccountID),
				"date":                t.Date,
				"amount":              t.Amount,
				"memo":                opt(t.Memo),
				"cleared":             t.Cleared,
				"approved":            t.Approved,
				"flag_color":          opt(t.FlagColor),
				"flag_name":           opt(t.FlagName),
				"import_id":           opt(t.ImportID),
			},
			Deleted:  t.Deleted,
			Children: map[string][]Row{SubtransactionsTable.Name: subs},
		})
	}
	return rows
}

func scheduledTransactionRows(budgetID string, txns []ynab.ScheduledTransaction) []Row {
	rows := make([]Row, 0, len(txns))
	for _, t := range txns {
		subs := make([]Row, 0, len(t.SubTransactions))
		for _, s := range t.SubTransactions {
			subs = append(subs, Row{
				Values: map[string]any{
					"id":                       s.ID,
					"scheduled_transaction_id": t.ID,
					"category_id":              opt(s.CategoryID),
					"payee_id":                 opt(s.PayeeID),
					"transfer_account_id":      opt(s.TransferAccountID),
					"amount":                   s.Amount,
					"memo":                     opt(s.Memo),
				},
				Deleted: s.Deleted,
			})
		}
		rows = append(rows, Row{
			Values: map[string]any{
				"id":                  t.ID,
				"budget_id":           budgetID,
				"account_id":          t.AccountID,
				"category_id":         opt(t.CategoryID),
				"payee_id":            opt(t.PayeeID),
				"transfer_account_id": opt(t.TransferAccountID),
				"date_first":          t.DateFirst,
				"date_next":           t.DateNext,
				"frequency":           t.Frequency,
				"amount":              t.Amount,
				"memo":                opt(t.Memo),
				"flag_color":          opt(t.FlagColor),
				"flag_name":           opt(t.FlagName),
			},
			Deleted:  t.Deleted,
			Children: map[string][]Row{ScheduledSubtransactionsTable.Name: subs},
		})
	}
	return rows
}

// monthRow maps a month. withCategories attaches the per-category figures
// as children; only set it when m came from the single month endpoint.
func monthRow(budgetID string, m ynab.Month, withCategories bool) Row {
	row := Row{
		Values: map[string]any{
			"budget_id":      budgetID,
			"month":          m.Month,
			"note":           opt(m.Note),
			"income":         m.Income,
			"budgeted":       m.Budgeted,
			"activity":       m.Activity,
			"to_be_budgeted": m.ToBeBudgeted,
			"age_of_money":   opt(m.AgeOfMoney),
		},
		Deleted: m.Deleted,
	}
	if withCategories {
		cats := make([]Row, 0, len(m.Categories))
		for _, c := range m.Categories {
			cats = append(cats, Row{
				Values: map[string]any{
					"budget_id":   budgetID,
					"month":       m.Month,
					"category_id": c.ID,
					"budgeted":    c.Budgeted,
					"activity":    c.Activity,
					"balance":     c.Balance,
				},
			})
		}
		row.Children = map[string][]Row{CategoryMonthsTable.Name: cats}
	}
	return row
}
