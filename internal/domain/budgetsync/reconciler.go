package budgetsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ApplyResult counts the effects of one reconciliation.
type ApplyResult struct {
	Upserted int
	Flagged  int64
	Children int
}

// Reconciler stores fetched batches. Every batch is applied in one
// transaction together with its cursor.
type Reconciler struct {
	store  Store
	logger zerolog.Logger
}

func NewReconciler(store Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Apply reconciles batch against the store.
//
// For a full batch every row in scope is first flagged deleted; upserting
// the fetched rows then clears the flag on survivors, so only rows absent
// from the snapshot stay flagged. Delta batches only touch the rows they
// carry. Child sets of every fetched parent are replaced wholesale. The
// cursor is written last, so it advances only when everything else commits.
func (r *Reconciler) Apply(ctx context.Context, batch *Batch) (*ApplyResult, error) {
	res := &ApplyResult{}

	err := r.store.WithinTx(ctx, func(tx Tx) error {
		// The store may re-run this function after a transient failure.
		*res = ApplyResult{}

		if batch.Full {
			for _, set := range batch.Sets {
				if !set.Table.SoftDelete || set.Table.Scope == "" {
					continue
				}
				n, err := tx.MarkDeleted(ctx, set.Table, batch.BudgetID)
				if err != nil {
					return fmt.Errorf("failed to flag %s: %w", set.Table.Name, err)
				}
				res.Flagged += n
			}
		}

		for _, set := range batch.Sets {
			for _, row := range set.Rows {
				if err := set.Table.Validate(row); err != nil {
					return err
				}
				if err := tx.Upsert(ctx, set.Table, row); err != nil {
					return fmt.Errorf("failed to upsert %s %v: %w", set.Table.Name, set.Table.KeyOf(row), err)
				}
				res.Upserted++

				for _, child := range set.Table.Children {
					children := row.Children[child.Name]
					for _, c := range children {
						if err := child.Validate(c); err != nil {
							return err
						}
					}
					if err := tx.ReplaceChildren(ctx, child, set.Table.KeyOf(row), children); err != nil {
						return fmt.Errorf("failed to replace %s of %v: %w", child.Name, set.Table.KeyOf(row), err)
					}
					res.Children += len(children)
				}
			}
		}

		if batch.Cursor != nil {
			if err := tx.SetCursor(ctx, batch.BudgetID, batch.Collection, *batch.Cursor); err != nil {
				return fmt.Errorf("failed to set cursor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &ReconcileFailed{Collection: batch.Collection, BudgetID: batch.BudgetID, Err: err}
	}

	// Flagged counts rows marked before survivors were restored, so it is
	// an upper bound on rows that ended up deleted.
	r.logger.Debug().
		Str("budget_id", batch.BudgetID).
		Str("collection", batch.Collection.String()).
		Bool("full", batch.Full).
		Int("upserted", res.Upserted).
		Int64("flagged", res.Flagged).
		Int("children", res.Children).
		Msg("batch reconciled")

	return res, nil
}
