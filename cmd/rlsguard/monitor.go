// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/dbapply"
	"github.com/rlsguard/rlsguard/internal/drift"
	"github.com/rlsguard/rlsguard/internal/introspect"
	"github.com/rlsguard/rlsguard/internal/metrics"
	"github.com/rlsguard/rlsguard/internal/observability"
	"github.com/rlsguard/rlsguard/internal/reconcile"
)

func newMonitorCmd() *cobra.Command {
	var (
		schemaPath string
		addr       string
		interval   time.Duration
		once       bool
		fix        bool
	)

	cmd := &cobra.Command{
		Use:   "monitor <file>",
		Short: "Continuously compile a policy file and detect drift against a live database",
		Long: `monitor compiles the policy file against --schema once, then repeatedly
introspects DATABASE_URL and compares the live RLS configuration against
that compiled state. Each pass records a drift report and a
rlsguard_monitor_runs_total{outcome} metric; --once runs a single pass and
exits 0 iff the drift-item list is empty.`,
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
				return fmt.Errorf("%d polic(y/ies) failed to compile; refusing to monitor", len(compileErrs))
			}

			ctx := context.Background()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			reader := introspect.NewReader(pool)
			executor := dbapply.NewExecutor(pool)
			tableNames := make([]string, len(state.Tables))
			for i, t := range state.Tables {
				tableNames[i] = t.Table
			}
			schemaName := "public"
			if len(state.Tables) > 0 {
				schemaName = state.Tables[0].Schema
			}

			out := cmd.OutOrStdout()
			runOnce := func() (drift.Report, error) {
				obs, err := reader.ObservedStateOf(ctx, schemaName, tableNames)
				if err != nil {
					return drift.Report{}, err
				}
				report := drift.Detect(state, obs)
				metrics.RecordDriftItems(itemSeverities(report))
				printDriftReport(out, report)
				if fix && len(report.Items) > 0 {
					ddl := reconcile.Reconcile(report.Items, state)
					if err := executor.Apply(ctx, ddl); err != nil {
						return report, fmt.Errorf("reconciling drift: %w", err)
					}
					fmt.Fprintf(out, "reconciled %d statement(s)\n", len(ddl))
				}
				return report, nil
			}

			if once {
				report, err := runOnce()
				if err != nil {
					return err
				}
				if len(report.Items) > 0 {
					return fmt.Errorf("%d drift item(s) detected", len(report.Items))
				}
				return nil
			}

			var ready atomic.Bool
			srv := observability.NewServer(addr, func() bool { return ready.Load() })
			if err := srv.Start(); err != nil {
				return err
			}
			slog.Info("monitor observability server listening", "addr", srv.Addr())

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				report, err := runOnce()
				outcome := "clean"
				switch {
				case err != nil:
					outcome = "error"
					slog.Error("drift check failed", "error", err)
				case len(report.Items) > 0:
					ready.Store(true)
					outcome = "drift"
				default:
					ready.Store(true)
				}
				srv.Metrics().MonitorRunsTotal.WithLabelValues(outcome).Inc()

				select {
				case <-sigCtx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Stop(shutdownCtx)
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", defaultSchemaPath(), "path to a schema introspection JSON file (defaults to the XDG config cache)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "observability server listen address")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "drift-check interval")
	cmd.Flags().BoolVar(&once, "once", false, "run a single drift check and exit")
	cmd.Flags().BoolVar(&fix, "fix", false, "apply reconciliation DDL automatically when drift is detected")
	return cmd
}

func itemSeverities(report drift.Report) []string {
	out := make([]string, len(report.Items))
	for i, item := range report.Items {
		out[i] = string(item.Severity)
	}
	return out
}

func printDriftReport(out io.Writer, report drift.Report) {
	if len(report.Items) == 0 {
		fmt.Fprintln(out, "no drift detected")
		return
	}
	for _, item := range report.Items {
		line := fmt.Sprintf("[%s] %s table=%s", item.Severity, item.Kind, item.Table)
		if item.Policy != "" {
			line += " policy=" + item.Policy
		}
		fmt.Fprintln(out, line)
	}
}
