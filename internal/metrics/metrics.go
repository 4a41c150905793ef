// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package metrics registers the Prometheus series the pipeline emits:
// proof latency, compile latency, and drift-item counts by severity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProofDuration tracks the latency of proof.Prove calls.
	ProofDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rlsguard_proof_duration_seconds",
		Help:    "Histogram of soundness-proof query latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// CompileDuration tracks the latency of compiler.Compile calls.
	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rlsguard_compile_duration_seconds",
		Help:    "Histogram of DDL compilation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DriftItemsTotal counts detected drift items by severity.
	DriftItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rlsguard_drift_items_total",
		Help: "Total number of drift items detected, by severity",
	}, []string{"severity"})

	// ProofVerdictsTotal counts proof verdicts by status.
	ProofVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rlsguard_proof_verdicts_total",
		Help: "Total number of soundness-proof verdicts, by status",
	}, []string{"status"})
)

// RecordProof records the duration and verdict of a single proof query.
func RecordProof(duration time.Duration, status string) {
	ProofDuration.Observe(duration.Seconds())
	ProofVerdictsTotal.WithLabelValues(status).Inc()
}

// RecordCompile records the duration of a single Compile call.
func RecordCompile(duration time.Duration) {
	CompileDuration.Observe(duration.Seconds())
}

// RecordDriftItems increments DriftItemsTotal once per severity label found
// in severities.
func RecordDriftItems(severities []string) {
	for _, s := range severities {
		DriftItemsTotal.WithLabelValues(s).Inc()
	}
}
