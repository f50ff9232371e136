// Package tx carries a pgx transaction through a context so stores can take
// part in a caller-scoped transaction without changing their signatures.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx. Stores
// issue all SQL through a Querier.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx binds a transaction to the context for downstream store calls.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the bound transaction, if any.
func From(ctx context.Context) (pgx.Tx, bool) {
	t, ok := ctx.Value(txKey).(pgx.Tx)
	return t, ok
}

// QuerierFrom returns the context transaction when one is bound, otherwise
// the fallback (normally the connection pool).
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if t, ok := From(ctx); ok {
		return t
	}
	return fallback
}
