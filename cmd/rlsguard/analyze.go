// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/metrics"
	"github.com/rlsguard/rlsguard/internal/normalize"
	"github.com/rlsguard/rlsguard/internal/proof"
	"github.com/rlsguard/rlsguard/internal/selector"
)

func newAnalyzeCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Prove every policy sound against a schema",
		Long: `analyze runs the soundness proof for every (policy, governed table) pair
and exits 0 only if every result is PROVEN (UNSAT). A SAT result prints its
counterexample; UNKNOWN means the solver's timeout could not decide the
query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			src, err := readPolicyFile(args[0])
			if err != nil {
				return err
			}
			meta, tags, err := loadSchemaFile(schemaPath)
			if err != nil {
				return err
			}

			result := dsl.Parse(src)
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), e.String())
				}
				return result.ParseError()
			}
			ps := normalize.Normalize(result.Tree)

			out := cmd.OutOrStdout()
			allProven := true
			for _, policy := range ps.Policies {
				for _, table := range selector.Evaluate(policy.Selector, meta, tags) {
					start := time.Now()
					verdict, err := proof.Prove(context.Background(), policy, table, proof.Options{})
					if err != nil {
						return err
					}
					metrics.RecordProof(time.Since(start), string(verdict.Status))

					fmt.Fprintf(out, "%-30s %-20s %s\n", policy.Name, table.Name, verdict.Status)
					if verdict.Status != proof.StatusProven {
						allProven = false
						if verdict.Counterexample != "" {
							fmt.Fprintf(out, "  counterexample: %s\n", verdict.Counterexample)
						}
					}
				}
			}

			if !allProven {
				return fmt.Errorf("one or more policies failed soundness proof")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", defaultSchemaPath(), "path to a schema introspection JSON file (defaults to the XDG config cache)")
	return cmd
}
