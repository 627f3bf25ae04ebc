package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DB is a *sql.DB whose query methods are traced.
type DB struct {
	*sql.DB
}

// New opens a pool against connStr and verifies it with a ping.
func New(ctx context.Context, connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Wrap adapts an existing pool, mostly for tests.
func Wrap(db *sql.DB) *DB {
	return &DB{db}
}

// QueryContext wraps sql.DB.QueryContext with tracing.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := startSpan(ctx, "db.Query", query)
	defer span.End()

	rows, err := db.DB.QueryContext(ctx, query, args...)
	recordError(span, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with tracing. The span ends
// in Scan, where sql.Row reports its errors.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, span := startSpan(ctx, "db.QueryRow", query)
	return &Row{row: db.DB.QueryRowContext(ctx, query, args...), span: span}
}

// ExecContext wraps sql.DB.ExecContext with tracing.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := startSpan(ctx, "db.Exec", query)
	defer span.End()

	result, err := db.DB.ExecContext(ctx, query, args...)
	recordError(span, err)
	return result, err
}

// BeginTx starts a transaction whose statements are traced as well.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx}, nil
}

// WithinTx runs fn in a transaction, committing when it returns nil.
func (db *DB) WithinTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx is a *sql.Tx with traced statements.
type Tx struct {
	*sql.Tx
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := startSpan(ctx, "db.Tx.Query", query)
	defer span.End()

	rows, err := tx.Tx.QueryContext(ctx, query, args...)
	recordError(span, err)
	return rows, err
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, span := startSpan(ctx, "db.Tx.QueryRow", query)
	return &Row{row: tx.Tx.QueryRowContext(ctx, query, args...), span: span}
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := startSpan(ctx, "db.Tx.Exec", query)
	defer span.End()

	result, err := tx.Tx.ExecContext(ctx, query, args...)
	recordError(span, err)
	return result, err
}

// Row keeps its span open until Scan.
type Row struct {
	row  *sql.Row
	span trace.Span
}

func (r *Row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.span != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			recordError(r.span, err)
		}
		r.span.End()
		r.span = nil
	}
	return err
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
