// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/rlsguard/rlsguard/pkg/errutil"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		errutil.LogError(slog.Default(), "rlsguard exiting with error", err)
		os.Exit(1)
	}
}
