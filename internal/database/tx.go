// Package database carries a shared *sql.Tx through a context so that
// stores owned by different packages can participate in one transaction.
package database

import (
	"context"
	"database/sql"
)

// Queryer is the subset of *sql.DB and *sql.Tx the stores use.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// WithTx returns a context that carries tx. Store methods called with
// the returned context run their statements inside tx.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Q returns the transaction carried by ctx, or db when there is none.
func Q(ctx context.Context, db *sql.DB) Queryer {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}
