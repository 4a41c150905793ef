// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package drift_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlsguard/rlsguard/internal/compiler"
	"github.com/rlsguard/rlsguard/internal/drift"
	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/normalize"
	"github.com/rlsguard/rlsguard/internal/observed"
	"github.com/rlsguard/rlsguard/internal/schema"
)

func compiledState(t *testing.T) *compiler.CompiledState {
	t.Helper()
	result := dsl.Parse(`POLICY tenant_isolation PERMISSIVE FOR SELECT
SELECTOR named('orders')
CLAUSE col(tenant_id) = session('app.tenant_id')`)
	require.Empty(t, result.Errors)
	ps := normalize.Normalize(result.Tree)
	meta := schema.Metadata{Tables: []schema.TableMetadata{
		{Name: "orders", Schema: "public", Columns: []schema.ColumnInfo{{Name: "tenant_id", Type: "uuid"}}},
	}}
	state, errs := compiler.Compile(ps, meta, nil)
	require.Empty(t, errs)
	return state
}

func observedMatching(state *compiler.CompiledState) observed.State {
	var tables []observed.TableState
	for _, t := range state.Tables {
		var policies []observed.Policy
		for _, p := range t.Policies {
			policies = append(policies, observed.Policy{
				Name: p.Name, Mode: "PERMISSIVE", Command: "SELECT",
				UsingExpr: "tenant_id = current_setting('app.tenant_id')",
			})
		}
		tables = append(tables, observed.TableState{
			Table: t.Table, Schema: t.Schema, RLSEnabled: true, RLSForced: true, Policies: policies,
		})
	}
	return observed.State{Tables: tables}
}

func TestDetect_NoDriftWhenMatching(t *testing.T) {
	state := compiledState(t)
	report := drift.Detect(state, observedMatching(state))
	assert.Empty(t, report.Items)
}

func TestDetect_TableMissingEntirely(t *testing.T) {
	state := compiledState(t)
	report := drift.Detect(state, observed.State{})

	var kinds []drift.Kind
	for _, item := range report.Items {
		kinds = append(kinds, item.Kind)
	}
	assert.Contains(t, kinds, drift.KindRlsDisabled)
	assert.Contains(t, kinds, drift.KindMissingPolicy)
}

func TestDetect_RLSNotEnabled(t *testing.T) {
	state := compiledState(t)
	obs := observedMatching(state)
	obs.Tables[0].RLSEnabled = false

	report := drift.Detect(state, obs)
	require.NotEmpty(t, report.Items)
	assert.Equal(t, drift.KindRlsDisabled, report.Items[0].Kind)
	assert.Equal(t, drift.SeverityCritical, report.Items[0].Severity)
}

func TestDetect_RLSNotForced(t *testing.T) {
	state := compiledState(t)
	obs := observedMatching(state)
	obs.Tables[0].RLSForced = false

	report := drift.Detect(state, obs)
	require.Len(t, report.Items, 1)
	assert.Equal(t, drift.KindRlsNotForced, report.Items[0].Kind)
}

func TestDetect_MissingPolicy(t *testing.T) {
	state := compiledState(t)
	obs := observedMatching(state)
	obs.Tables[0].Policies = nil

	report := drift.Detect(state, obs)
	require.Len(t, report.Items, 1)
	assert.Equal(t, drift.KindMissingPolicy, report.Items[0].Kind)
}

func TestDetect_ModifiedPolicyExpression(t *testing.T) {
	state := compiledState(t)
	obs := observedMatching(state)
	obs.Tables[0].Policies[0].UsingExpr = "owner_id = current_setting('app.user_id')"

	report := drift.Detect(state, obs)
	require.Len(t, report.Items, 1)
	assert.Equal(t, drift.KindModifiedPolicy, report.Items[0].Kind)
	assert.NotEmpty(t, report.Items[0].ExpectedExpr)
	assert.NotEmpty(t, report.Items[0].ObservedExpr)
}

func TestDetect_ExtraPolicyIsWarning(t *testing.T) {
	state := compiledState(t)
	obs := observedMatching(state)
	obs.Tables[0].Policies = append(obs.Tables[0].Policies, observed.Policy{Name: "legacy_policy", Command: "SELECT"})

	report := drift.Detect(state, obs)
	require.Len(t, report.Items, 1)
	assert.Equal(t, drift.KindExtraPolicy, report.Items[0].Kind)
	assert.Equal(t, drift.SeverityWarning, report.Items[0].Severity)
}

func TestCoerceCommand(t *testing.T) {
	assert.Equal(t, "SELECT", observed.CoerceCommand("SELECT"))
	assert.Equal(t, "UNKNOWN", observed.CoerceCommand("bogus"))
}
