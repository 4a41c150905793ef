// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// histogramSampleCount returns how many observations h has recorded.
func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_MetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}

	expectedMetrics := []string{
		"rlsguard_proof_duration_seconds",
		"rlsguard_compile_duration_seconds",
		"rlsguard_drift_items_total",
		"rlsguard_proof_verdicts_total",
	}

	for _, name := range expectedMetrics {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

func TestMetrics_RecordProof(t *testing.T) {
	initial := testutil.ToFloat64(ProofVerdictsTotal.WithLabelValues("PROVEN"))

	RecordProof(5*time.Millisecond, "PROVEN")

	updated := testutil.ToFloat64(ProofVerdictsTotal.WithLabelValues("PROVEN"))
	assert.Equal(t, initial+1, updated)

	count := histogramSampleCount(t, ProofDuration)
	assert.GreaterOrEqual(t, count, uint64(1), "histogram should have at least one observation")
}

func TestMetrics_RecordCompile(t *testing.T) {
	count := histogramSampleCount(t, CompileDuration)
	RecordCompile(2 * time.Millisecond)
	updated := histogramSampleCount(t, CompileDuration)
	assert.GreaterOrEqual(t, updated, count+1)
}

func TestMetrics_RecordDriftItems(t *testing.T) {
	initial := testutil.ToFloat64(DriftItemsTotal.WithLabelValues("CRITICAL"))

	RecordDriftItems([]string{"CRITICAL", "CRITICAL", "WARNING"})

	updatedCritical := testutil.ToFloat64(DriftItemsTotal.WithLabelValues("CRITICAL"))
	assert.Equal(t, initial+2, updatedCritical)
}
