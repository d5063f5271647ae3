package store

import (
	"context"

	"basegraph.app/pulse/core/db"
	"basegraph.app/pulse/core/db/sqlc"
)

type dbTxRunner struct {
	db *db.DB
}

func NewTxRunner(database *db.DB) TxRunner {
	return &dbTxRunner{db: database}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(q)
	})
}
