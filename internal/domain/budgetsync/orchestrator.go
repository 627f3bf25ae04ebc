package budgetsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ynabmirror/internal/infrastructure/ynab"
)

// BatchFetcher is the upstream side of a pass.
type BatchFetcher interface {
	FetchBudgets(ctx context.Context) ([]ynab.Budget, error)
	Fetch(ctx context.Context, c Collection, budgetID string, cursor *int64) (*Batch, error)
}

// BatchApplier is the store side of a pass.
type BatchApplier interface {
	Apply(ctx context.Context, batch *Batch) (*ApplyResult, error)
}

// Options tunes a pass.
type Options struct {
	// BudgetIDs restricts the pass to these budgets; empty means all.
	BudgetIDs []string
	// BudgetConcurrency is how many budgets sync at once. Collections of one
	// budget are always synced one after another.
	BudgetConcurrency int
	// CollectionTimeout bounds the fetch and, separately, the reconcile of
	// one collection. Month details may run longer, see WithMonthTimeout.
	CollectionTimeout time.Duration
}

// unboundedKey carries the collection context, free of the fetch deadline,
// down to the fetcher.
type unboundedKey struct{}

// CollectionResult describes what happened to one collection in a pass.
type CollectionResult struct {
	BudgetID   string
	Collection Collection
	Full       bool
	Cursor     *int64
	NewCursor  *int64
	Upserted   int
	Flagged    int64
	Children   int
	Duration   time.Duration
	Err        error
}

// Report summarizes a pass.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Budgets    []string
	Results    []CollectionResult
}

// Orchestrator drives sync passes: the budget list first, then each
// budget's collections in BudgetCollections order.
type Orchestrator struct {
	fetcher  BatchFetcher
	applier  BatchApplier
	cursors  CursorStore
	runs     RunStore
	logger   zerolog.Logger
	opts     Options
	now      func() time.Time
	newRunID func() string
}

// NewOrchestrator wires a pass. runs may be nil when passes need not be
// recorded.
func NewOrchestrator(fetcher BatchFetcher, applier BatchApplier, cursors CursorStore, runs RunStore, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.BudgetConcurrency < 1 {
		opts.BudgetConcurrency = 1
	}
	return &Orchestrator{
		fetcher:  fetcher,
		applier:  applier,
		cursors:  cursors,
		runs:     runs,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// RunPass performs one complete sync pass. Collection failures never stop
// the pass; they are collected and returned as *RunFailed together with the
// report.
func (o *Orchestrator) RunPass(ctx context.Context) (*Report, error) {
	run := &Run{ID: o.newRunID(), StartedAt: o.now(), Status: RunStatusRunning}
	log := o.logger.With().Str("run_id", run.ID).Logger()

	ctx, span := syncTracer.Start(ctx, "sync.pass", trace.WithAttributes(attribute.String("sync.run_id", run.ID)))
	defer span.End()

	if o.runs != nil {
		if err := o.runs.StartRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("failed to record run start")
		}
	}
	log.Info().Msg("sync pass started")

	report := &Report{RunID: run.ID, StartedAt: run.StartedAt}
	var mu sync.Mutex
	record := func(res CollectionResult) {
		mu.Lock()
		defer mu.Unlock()
		report.Results = append(report.Results, res)
		if res.Err != nil {
			run.Failures = append(run.Failures, Failure{
				BudgetID:   res.BudgetID,
				Collection: res.Collection,
				Err:        res.Err,
				Message:    res.Err.Error(),
			})
		}
	}

	budgetIDs, res := o.syncBudgets(ctx, log)
	record(res)
	if res.Err == nil {
		report.Budgets = budgetIDs
		run.Budgets = len(budgetIDs)

		var g errgroup.Group
		g.SetLimit(o.opts.BudgetConcurrency)
		for _, id := range budgetIDs {
			g.Go(func() error {
				o.syncBudget(ctx, log, id, record)
				return nil
			})
		}
		_ = g.Wait()
	}

	finished := o.now()
	report.FinishedAt = finished
	run.FinishedAt = &finished
	run.Status = RunStatusSucceeded
	if len(run.Failures) > 0 {
		run.Status = RunStatusFailed
	}

	if o.runs != nil {
		// The pass context may already be cancelled; the record should
		// still land.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := o.runs.FinishRun(recCtx, run); err != nil {
			log.Warn().Err(err).Msg("failed to record run result")
		}
		cancel()
	}
	runTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(run.Status))))

	if len(run.Failures) > 0 {
		err := &RunFailed{RunID: run.ID, Failures: run.Failures}
		span.RecordError(err)
		span.SetStatus(codes.Error, "collections failed")
		log.Error().
			Int("failed", len(run.Failures)).
			Dur("duration", finished.Sub(run.StartedAt)).
			Msg("sync pass finished with failures")
		return report, err
	}

	log.Info().
		Int("budgets", run.Budgets).
		Dur("duration", finished.Sub(run.StartedAt)).
		Msg("sync pass finished")
	return report, nil
}

// syncBudgets stores the full budget list and returns the ids to sync.
func (o *Orchestrator) syncBudgets(ctx context.Context, log zerolog.Logger) (ids []string, res CollectionResult) {
	res = CollectionResult{Collection: CollectionBudgets, Full: true}
	start := time.Now()
	defer func() { o.observe(ctx, &res, start) }()

	budgets, err := o.fetcher.FetchBudgets(ctx)
	if err != nil {
		res.Err = err
		if Unauthorized(err) {
			log.Error().Err(err).Msg("access token rejected, check YNAB_ACCESS_TOKEN")
		}
		log.Error().Err(err).Str("collection", CollectionBudgets.String()).Msg("failed to fetch budgets, aborting pass")
		return nil, res
	}

	batch := &Batch{
		Collection: CollectionBudgets,
		Full:       true,
		Sets:       []RowSet{{Table: BudgetsTable, Rows: BudgetRows(budgets)}},
	}
	applied, err := o.applier.Apply(ctx, batch)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Str("collection", CollectionBudgets.String()).Msg("failed to store budgets, aborting pass")
		return nil, res
	}
	res.Upserted = applied.Upserted

	ids = make([]string, 0, len(budgets))
	for _, b := range budgets {
		if o.selected(b.ID) {
			ids = append(ids, b.ID)
		}
	}
	for _, want := range o.opts.BudgetIDs {
		if !containsBudget(budgets, want) {
			log.Warn().Str("budget_id", want).Msg("configured budget not returned by upstream")
		}
	}
	log.Info().Int("budgets", len(budgets)).Int("selected", len(ids)).Msg("budgets synced")
	return ids, res
}

func (o *Orchestrator) syncBudget(ctx context.Context, log zerolog.Logger, budgetID string, record func(CollectionResult)) {
	log = log.With().Str("budget_id", budgetID).Logger()

	cursors, err := o.cursors.Get(ctx, budgetID)
	if err != nil {
		err = fmt.Errorf("failed to load cursors: %w", err)
		log.Error().Err(err).Msg("skipping budget")
		for _, c := range BudgetCollections {
			record(CollectionResult{BudgetID: budgetID, Collection: c, Err: err})
		}
		return
	}

	for _, c := range BudgetCollections {
		var cursor *int64
		if v, ok := cursors[c]; ok {
			cursor = &v
		}
		record(o.syncCollection(ctx, log, budgetID, c, cursor))
	}
}

func (o *Orchestrator) syncCollection(ctx context.Context, log zerolog.Logger, budgetID string, c Collection, cursor *int64) (res CollectionResult) {
	res = CollectionResult{BudgetID: budgetID, Collection: c, Full: cursor == nil, Cursor: cursor}
	start := time.Now()
	defer func() { o.observe(ctx, &res, start) }()

	if err := ctx.Err(); err != nil {
		res.Err = err
		log.Error().Err(err).Str("collection", c.String()).Interface("cursor", cursor).Msg("pass cancelled, collection skipped")
		return res
	}

	ctx, span := syncTracer.Start(ctx, "sync.collection", trace.WithAttributes(
		attribute.String("sync.budget_id", budgetID),
		attribute.String("sync.collection", c.String()),
		attribute.Bool("sync.full", res.Full),
	))
	defer span.End()

	batch, err := o.fetch(ctx, c, budgetID, cursor)
	if err == nil {
		var applied *ApplyResult
		applied, err = o.apply(ctx, batch)
		if err == nil {
			res.Upserted = applied.Upserted
			res.Flagged = applied.Flagged
			res.Children = applied.Children
			res.NewCursor = batch.Cursor
		}
	}
	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().
			Err(err).
			Str("collection", c.String()).
			Interface("cursor", cursor).
			Msg("collection sync failed, skipping")
		return res
	}

	log.Info().
		Str("collection", c.String()).
		Bool("full", res.Full).
		Interface("cursor", cursor).
		Interface("new_cursor", res.NewCursor).
		Int("upserted", res.Upserted).
		Int("children", res.Children).
		Msg("collection synced")
	return res
}

func (o *Orchestrator) fetch(ctx context.Context, c Collection, budgetID string, cursor *int64) (*Batch, error) {
	if o.opts.CollectionTimeout <= 0 {
		return o.fetcher.Fetch(ctx, c, budgetID, cursor)
	}
	bounded, cancel := context.WithTimeout(context.WithValue(ctx, unboundedKey{}, ctx), o.opts.CollectionTimeout)
	defer cancel()
	return o.fetcher.Fetch(bounded, c, budgetID, cursor)
}

func (o *Orchestrator) apply(ctx context.Context, batch *Batch) (*ApplyResult, error) {
	if o.opts.CollectionTimeout <= 0 {
		return o.applier.Apply(ctx, batch)
	}
	bounded, cancel := context.WithTimeout(ctx, o.opts.CollectionTimeout)
	defer cancel()
	return o.applier.Apply(bounded, batch)
}

func (o *Orchestrator) observe(ctx context.Context, res *CollectionResult, start time.Time) {
	res.Duration = time.Since(start)
	status := "success"
	if res.Err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("collection", res.Collection.String()),
		attribute.String("status", status),
	)
	collectionTotal.Add(ctx, 1, attrs)
	collectionDuration.Record(ctx, res.Duration.Seconds(), attrs)
	if res.Upserted > 0 {
		rowsUpserted.Add(ctx, int64(res.Upserted), metric.WithAttributes(attribute.String("collection", res.Collection.String())))
	}
}

func (o *Orchestrator) selected(budgetID string) bool {
	if len(o.opts.BudgetIDs) == 0 {
		return true
	}
	for _, id := range o.opts.BudgetIDs {
		if id == budgetID {
			return true
		}
	}
	return false
}

func containsBudget(budgets []ynab.Budget, id string) bool {
	for _, b := range budgets {
		if b.ID == id {
			return true
		}
	}
	return false
}
