// Package store holds the SQLite persistence functions. Lookups return nil
// without an error when the row does not exist.
package store

import (
	"context"
	"database/sql"
	"errors"
)

// Business rule errors. Callers check them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProfileIncomplete = errors.New("student profile incomplete")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
