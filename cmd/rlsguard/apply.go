// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/dbapply"
)

func newApplyCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Compile a policy file and execute its DDL against a live database",
		Long: `apply compiles the policy file against --schema and executes the resulting
DDL as a single transaction via DATABASE_URL. Any failing statement rolls
back the whole batch. CREATE POLICY fails when a policy of that name already
exists on the table, so re-applying onto an already-applied database fails
and changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL must be set")
			}

			state, compileErrs, err := compileFromFile(args[0], schemaPath)
			if err != nil {
				return err
			}
			if len(compileErrs) > 0 {
				for _, ce := range compileErrs {
					fmt.Fprintln(cmd.ErrOrStderr(), ce.Error())
				}
				return fmt.Errorf("%d polic(y/ies) failed to compile; refusing to apply", len(compileErrs))
			}

			ctx := context.Background()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			statements := splitStatements(state.Render())
			executor := dbapply.NewExecutor(pool)
			if err := executor.Apply(ctx, statements); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statement(s)\n", len(statements))
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", defaultSchemaPath(), "path to a schema introspection JSON file (defaults to the XDG config cache)")
	return cmd
}

// splitStatements breaks a CompiledState.Render() text blob into individual
// semicolon-terminated DDL statements, in source order.
func splitStatements(rendered string) []string {
	var statements []string
	for _, line := range strings.Split(rendered, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			statements = append(statements, line)
		}
	}
	return statements
}
