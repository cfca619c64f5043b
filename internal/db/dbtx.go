package db

import (
	"context"
	"database/sql"
)

// DBTX is what member queries run against: the pool outside a transaction,
// the *sql.Tx inside one.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ DBTX = (*sql.DB)(nil)

var _ DBTX = (*sql.Tx)(nil)
