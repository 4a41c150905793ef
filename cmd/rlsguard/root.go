// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/rlslog"
)

// Global flags available to all subcommands.
var (
	logFormat string
)

// NewRootCmd creates the root command for the rlsguard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rlsguard",
		Short: "rlsguard - a declarative row-level-security policy engine",
		Long: `rlsguard parses a declarative row-level-security policy DSL, proves each
policy sound against a schema, compiles it to deterministic PostgreSQL DDL,
and detects (and reconciles) drift between that DDL and a live database's
RLS configuration.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rlslog.SetDefault("rlsguard", version, logFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", `log output format: "json" or "text"`)

	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newLintCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newMonitorCmd())

	return cmd
}

// version is set at build time via -ldflags; defaults to "dev".
var version = "dev"
