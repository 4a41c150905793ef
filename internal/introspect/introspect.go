// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package introspect is the live catalog bridge: two read-only queries per
// inspected table (RLS flags; policy list) borrowed from the caller's
// connection pool, never mutating. It is the "database driver" external
// collaborator kept out of the core pipeline's concern — kept thin,
// behavior-only, grounded on PostgresStore's pgx usage.
package introspect

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/rlsguard/rlsguard/internal/observed"
	"github.com/rlsguard/rlsguard/internal/schema"
)

// Reader performs read-only catalog queries against a borrowed connection
// pool. It never opens a transaction and never mutates.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader constructs a Reader over pool. The caller owns pool's lifecycle.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// SchemaOf reads (schemaName, tableName, [(columnName, columnTypeName)])
// for every table in the named schema, ordered by table name then column
// ordinal position — the shape of the introspection input's schema tuple.
func (r *Reader) SchemaOf(ctx context.Context, schemaName string) (schema.Metadata, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position
	`, schemaName)
	if err != nil {
		return schema.Metadata{}, oops.Code("INTROSPECT_SCHEMA_FAILED").With("schema", schemaName).Wrap(err)
	}
	defer rows.Close()

	tablesByName := map[string]*schema.TableMetadata{}
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return schema.Metadata{}, oops.Code("INTROSPECT_SCHEMA_FAILED").Wrap(err)
		}
		t, ok := tablesByName[tableName]
		if !ok {
			t = &schema.TableMetadata{Name: tableName, Schema: schemaName}
			tablesByName[tableName] = t
			order = append(order, tableName)
		}
		t.Columns = append(t.Columns, schema.ColumnInfo{Name: columnName, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return schema.Metadata{}, oops.Code("INTROSPECT_SCHEMA_FAILED").Wrap(err)
	}

	meta := schema.Metadata{}
	for _, name := range order {
		meta.Tables = append(meta.Tables, *tablesByName[name])
	}
	return meta, nil
}

// ObservedStateOf reads the RLS flags and policy list for each named table:
// two read-only catalog queries per inspected table. Malformed command
// strings coerce to "UNKNOWN" rather than failing ingest.
func (r *Reader) ObservedStateOf(ctx context.Context, schemaName string, tableNames []string) (observed.State, error) {
	var state observed.State
	for _, tableName := range tableNames {
		ts, err := r.observedTable(ctx, schemaName, tableName)
		if err != nil {
			return observed.State{}, err
		}
		state.Tables = append(state.Tables, ts)
	}
	return state, nil
}

func (r *Reader) observedTable(ctx context.Context, schemaName, tableName string) (observed.TableState, error) {
	var rlsEnabled, rlsForced bool
	err := r.pool.QueryRow(ctx, `
		SELECT relrowsecurity, relforcerowsecurity
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`, schemaName, tableName).Scan(&rlsEnabled, &rlsForced)
	if err != nil {
		if err == pgx.ErrNoRows {
			return observed.TableState{Table: tableName, Schema: schemaName}, nil
		}
		return observed.TableState{}, oops.Code("INTROSPECT_RLS_FLAGS_FAILED").
			With("schema", schemaName).With("table", tableName).Wrap(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT polname, polpermissive, polcmd, pg_get_expr(polqual, polrelid), pg_get_expr(polwithcheck, polrelid)
		FROM pg_policy p
		JOIN pg_class c ON c.oid = p.polrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`, schemaName, tableName)
	if err != nil {
		return observed.TableState{}, oops.Code("INTROSPECT_POLICY_LIST_FAILED").
			With("schema", schemaName).With("table", tableName).Wrap(err)
	}
	defer rows.Close()

	ts := observed.TableState{Table: tableName, Schema: schemaName, RLSEnabled: rlsEnabled, RLSForced: rlsForced}
	for rows.Next() {
		var name string
		var permissive bool
		var cmdChar string
		var usingExpr, checkExpr *string
		if err := rows.Scan(&name, &permissive, &cmdChar, &usingExpr, &checkExpr); err != nil {
			return observed.TableState{}, oops.Code("INTROSPECT_POLICY_LIST_FAILED").Wrap(err)
		}
		mode := "PERMISSIVE"
		if !permissive {
			mode = "RESTRICTIVE"
		}
		p := observed.Policy{
			Name:    name,
			Mode:    mode,
			Command: observed.CoerceCommand(commandFromChar(cmdChar)),
		}
		if usingExpr != nil {
			p.UsingExpr = *usingExpr
		}
		if checkExpr != nil {
			p.CheckExpr = *checkExpr
		}
		ts.Policies = append(ts.Policies, p)
	}
	if err := rows.Err(); err != nil {
		return observed.TableState{}, oops.Code("INTROSPECT_POLICY_LIST_FAILED").Wrap(err)
	}
	return ts, nil
}

// commandFromChar maps pg_policy.polcmd's single-character encoding to the
// known command strings; anything unrecognised comes back as "UNKNOWN(<c>)"
// so CoerceCommand can fold it to "UNKNOWN".
func commandFromChar(c string) string {
	switch c {
	case "r":
		return "SELECT"
	case "a":
		return "INSERT"
	case "w":
		return "UPDATE"
	case "d":
		return "DELETE"
	case "*":
		return "ALL"
	default:
		return fmt.Sprintf("UNKNOWN(%s)", c)
	}
}
