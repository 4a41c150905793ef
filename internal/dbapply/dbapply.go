// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package dbapply executes compiled or reconciliation DDL against a live
// database, grounded on PostgresStore's transactional apply pattern: begin,
// exec every statement in order, commit, with guaranteed rollback on any
// exit path that isn't a successful commit.
package dbapply

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// Executor runs ordered DDL statements against a pool inside a single
// transaction.
type Executor struct {
	pool *pgxpool.Pool
}

// NewExecutor constructs an Executor over pool. The caller owns pool's
// lifecycle.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Apply executes every statement in statements, in order, inside one
// transaction. Any failure rolls back the whole batch, so a failed apply
// leaves the database as it was before the call.
func (e *Executor) Apply(ctx context.Context, statements []string) error {
	if len(statements) == 0 {
		return nil
	}
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return oops.Code("DBAPPLY_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return oops.Code("DBAPPLY_EXEC_FAILED").
				With("statement_index", i).With("statement", stmt).Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("DBAPPLY_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
