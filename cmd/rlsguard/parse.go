// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/dsl"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Syntax-check a policy DSL file",
		Args:  cobra.ExactArgs(1),
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

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d polic(y/ies) parsed\n", len(result.Tree.Policies))
			return nil
		},
	}
}
