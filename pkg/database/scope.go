package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
)

// Querier is the subset of pgx behavior repositories depend on. Both a
// pooled connection and an open transaction satisfy it, which is what lets
// the versioning service run multi-repository operations atomically.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// Scope wraps the connection (or transaction) the current operation runs on.
type Scope struct {
	Conn Querier

	release func()
}

// Close releases the underlying pooled connection, if any. Transaction
// scopes created by InTx have nothing to release.
func (s *Scope) Close() {
	if s.release != nil {
		s.release()
	}
}

// Acquire takes a connection from the pool and wraps it in a Scope.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn, release: conn.Release}, nil
}

type contextKey string

// ScopeKey is the context key for storing the operation's database scope.
const ScopeKey contextKey = "dbScope"

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// WithScope acquires a connection, stores it in a derived context and
// returns a cleanup function that must be called when the operation ends.
func (db *DB) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}

// InTx runs fn inside a transaction on the scope found in ctx. Repositories
// invoked through the derived context write through the transaction, so a
// failure anywhere rolls back every write of the operation. Nested calls
// open pgx savepoints. Database failures escaping fn are translated onto the
// engine's error taxonomy via TranslateError.
func InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetScope(ctx)
	if !ok {
		return ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v: %w", err, apperrors.ErrInfrastructure)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	txCtx := SetScope(ctx, &Scope{Conn: tx})
	if err := fn(txCtx); err != nil {
		return TranslateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v: %w", err, apperrors.ErrInfrastructure)
	}
	return nil
}
