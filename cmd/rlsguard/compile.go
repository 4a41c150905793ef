// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rlsguard/rlsguard/internal/compiler"
	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/metrics"
	"github.com/rlsguard/rlsguard/internal/normalize"
)

func newCompileCmd() *cobra.Command {
	var schemaPath, outputPath string

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a policy file to deterministic PostgreSQL DDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			state, compileErrs, err := compileFromFile(args[0], schemaPath)
			if err != nil {
				return err
			}
			for _, ce := range compileErrs {
				fmt.Fprintln(cmd.ErrOrStderr(), ce.Error())
			}

			rendered := state.Render()
			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(rendered), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outputPath, err)
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), rendered)
			}

			if len(compileErrs) > 0 {
				return fmt.Errorf("%d polic(y/ies) failed to compile", len(compileErrs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", defaultSchemaPath(), "path to a schema introspection JSON file (defaults to the XDG config cache)")
	cmd.Flags().StringVar(&outputPath, "output", "", "write DDL to this path instead of stdout")
	return cmd
}

// compileFromFile parses, normalizes, and compiles the policy file at path
// against the schema file at schemaPath. Shared by compile, apply, and
// monitor so all three derive DDL the same way.
func compileFromFile(path, schemaPath string) (*compiler.CompiledState, []compiler.CompileError, error) {
	src, err := readPolicyFile(path)
	if err != nil {
		return nil, nil, err
	}
	meta, tags, err := loadSchemaFile(schemaPath)
	if err != nil {
		return nil, nil, err
	}

	result := dsl.Parse(src)
	if len(result.Errors) > 0 {
		return nil, nil, result.ParseError()
	}
	ps := normalize.Normalize(result.Tree)

	start := time.Now()
	state, compileErrs := compiler.Compile(ps, meta, tags)
	metrics.RecordCompile(time.Since(start))
	return state, compileErrs, nil
}
