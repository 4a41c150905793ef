// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/lint"
	"github.com/rlsguard/rlsguard/internal/normalize"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file>",
		Short: "Parse, normalize, and flag always-true or clauseless policies",
		Long: `lint parses a policy file, normalizes it, and prints one header line per
normalized policy (name, mode, commands; selectors and clauses are not
printed), followed by any always-true-clause or no-clause warnings. Unlike analyze
it requires no schema, trading soundness proof for a fast, schema-free pass
a developer can run before introspecting a database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readPolicyFile(args[0])
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

			warnings := lint.DetectWarnings(result.Tree)
			normalized := normalize.Normalize(result.Tree)

			out := cmd.OutOrStdout()
			for _, p := range normalized.Policies {
				fmt.Fprintf(out, "POLICY %s %s FOR %s\n", p.Name, p.Mode, p.CommandsSQL())
			}
			if len(warnings) == 0 {
				fmt.Fprintln(out, "no warnings")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w.String())
			}
			return nil
		},
	}
}
