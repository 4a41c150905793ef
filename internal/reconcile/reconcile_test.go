// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlsguard/rlsguard/internal/compiler"
	"github.com/rlsguard/rlsguard/internal/drift"
	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/normalize"
	"github.com/rlsguard/rlsguard/internal/observed"
	"github.com/rlsguard/rlsguard/internal/reconcile"
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

func TestReconcile_RlsDisabled_EmitsEnable(t *testing.T) {
	state := compiledState(t)
	items := []drift.Item{{Kind: drift.KindRlsDisabled, Table: "orders"}}

	ddl := reconcile.Reconcile(items, state)
	require.Len(t, ddl, 1)
	assert.Equal(t, state.Tables[0].EnableRLS, ddl[0])
}

func TestReconcile_RlsNotForced_EmitsForce(t *testing.T) {
	state := compiledState(t)
	items := []drift.Item{{Kind: drift.KindRlsNotForced, Table: "orders"}}

	ddl := reconcile.Reconcile(items, state)
	require.Len(t, ddl, 1)
	assert.Equal(t, state.Tables[0].ForceRLS, ddl[0])
}

func TestReconcile_MissingPolicy_EmitsCreate(t *testing.T) {
	state := compiledState(t)
	policyName := state.Tables[0].Policies[0].Name
	items := []drift.Item{{Kind: drift.KindMissingPolicy, Table: "orders", Policy: policyName}}

	ddl := reconcile.Reconcile(items, state)
	require.Len(t, ddl, 1)
	assert.Contains(t, ddl[0], "CREATE POLICY")
}

func TestReconcile_ModifiedPolicy_DropsThenRecreates(t *testing.T) {
	state := compiledState(t)
	policyName := state.Tables[0].Policies[0].Name
	items := []drift.Item{{Kind: drift.KindModifiedPolicy, Table: "orders", Policy: policyName}}

	ddl := reconcile.Reconcile(items, state)
	require.Len(t, ddl, 2)
	assert.Contains(t, ddl[0], "DROP POLICY IF EXISTS "+policyName)
	assert.Contains(t, ddl[1], "CREATE POLICY")
}

func TestReconcile_ExtraPolicy_EmitsDropOnly(t *testing.T) {
	state := compiledState(t)
	items := []drift.Item{{Kind: drift.KindExtraPolicy, Table: "orders", Policy: "legacy_policy"}}

	ddl := reconcile.Reconcile(items, state)
	require.Len(t, ddl, 1)
	assert.Equal(t, "DROP POLICY IF EXISTS legacy_policy ON public.orders;", ddl[0])
}

func TestReconcile_UnknownTableIsSkipped(t *testing.T) {
	state := compiledState(t)
	items := []drift.Item{{Kind: drift.KindRlsDisabled, Table: "nonexistent"}}

	ddl := reconcile.Reconcile(items, state)
	assert.Empty(t, ddl)
}

func TestReconcile_EndToEnd_DetectedDriftYieldsDDL(t *testing.T) {
	state := compiledState(t)
	obs := observed.State{Tables: []observed.TableState{
		{Table: "orders", Schema: "public", RLSEnabled: false, RLSForced: false},
	}}

	report := drift.Detect(state, obs)
	require.NotEmpty(t, report.Items)

	ddl := reconcile.Reconcile(report.Items, state)
	assert.NotEmpty(t, ddl)
}
