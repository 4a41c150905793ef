// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package dsl_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlsguard/rlsguard/internal/dsl"
)

func TestParse_SeedPolicies(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "simple tenant isolation",
			src: `POLICY tenant_isolation PERMISSIVE FOR SELECT, INSERT, UPDATE, DELETE
SELECTOR ALL
CLAUSE col(tenant_id) = session('app.tenant_id')`,
		},
		{
			name: "selector combinator",
			src: `POLICY admin_bypass PERMISSIVE FOR SELECT
SELECTOR has_column(tenant_id) AND in_schema(public)
CLAUSE session('app.is_admin') = lit(true)
OR CLAUSE col(owner_id) = session('app.user_id')`,
		},
		{
			name: "traversal atom",
			src: `POLICY nested_ownership PERMISSIVE FOR SELECT
SELECTOR named('documents')
CLAUSE exists(rel(_, folder_id, folders, id), { col(owner_id) = session('app.user_id') })`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := dsl.Parse(tc.src)
			require.Empty(t, result.Errors, "unexpected parse errors: %v", result.Errors)
			require.NotNil(t, result.Tree)
			assert.Len(t, result.Tree.Policies, 1)
		})
	}
}

func TestParse_CollectsEveryError(t *testing.T) {
	src := `POLICY broken_one BOGUS_MODE FOR SELECT
SELECTOR ALL
CLAUSE col(x) = session('k')

POLICY broken_two PERMISSIVE FOR NOT_A_COMMAND
SELECTOR ALL
CLAUSE col(x) = session('k')`

	result := dsl.Parse(src)
	require.Nil(t, result.Tree)
	require.GreaterOrEqual(t, len(result.Errors), 2, "expected errors from both malformed policies, got %v", result.Errors)
}

func TestParse_WellFormedThenMalformed(t *testing.T) {
	src := `POLICY good_one PERMISSIVE FOR SELECT
SELECTOR ALL
CLAUSE col(tenant_id) = session('app.tenant_id')

POLICY bad_one NOT_A_MODE FOR SELECT
SELECTOR ALL
CLAUSE col(x) = session('k')`

	result := dsl.Parse(src)
	require.Nil(t, result.Tree, "tree must be nil whenever any error exists")
	require.NotEmpty(t, result.Errors)
}

func TestParseResult_ParseError(t *testing.T) {
	ok := dsl.Parse(`POLICY p PERMISSIVE FOR SELECT
SELECTOR ALL
CLAUSE col(x) = session('k')`)
	require.Empty(t, ok.Errors)
	assert.NoError(t, ok.ParseError())

	bad := dsl.Parse(`POLICY p NOT_A_MODE FOR SELECT`)
	err := bad.ParseError()
	require.Error(t, err)
}

func TestPolicy_CommandsSQL(t *testing.T) {
	all := &dsl.Policy{Commands: []dsl.Command{dsl.CommandSelect, dsl.CommandInsert, dsl.CommandUpdate, dsl.CommandDelete}}
	assert.Equal(t, "ALL", all.CommandsSQL())

	subset := &dsl.Policy{Commands: []dsl.Command{dsl.CommandDelete, dsl.CommandSelect}}
	assert.Equal(t, "SELECT, DELETE", subset.CommandsSQL())
}

func TestAtom_Equal(t *testing.T) {
	a := &dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}
	b := &dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}
	c := &dsl.BinaryAtom{Left: dsl.ColSource{Name: "other_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestClause_Equal_OrderIndependent(t *testing.T) {
	a1 := &dsl.BinaryAtom{Left: dsl.ColSource{Name: "x"}, Op: dsl.OpEQ, Right: dsl.LitSource{Value: dsl.Int64Literal(1)}}
	a2 := &dsl.BinaryAtom{Left: dsl.ColSource{Name: "y"}, Op: dsl.OpEQ, Right: dsl.LitSource{Value: dsl.Int64Literal(2)}}

	c1 := &dsl.Clause{Atoms: []dsl.Atom{a1, a2}}
	c2 := &dsl.Clause{Atoms: []dsl.Atom{a2, a1}}
	assert.True(t, c1.Equal(c2))
}

func TestPolicySet_JSONRoundTrip(t *testing.T) {
	src := `POLICY tenant_isolation PERMISSIVE FOR SELECT, INSERT
SELECTOR has_column(tenant_id) OR in_schema(tenant_data)
CLAUSE col(tenant_id) = session('app.tenant_id') AND col(status) <> lit('archived')
OR CLAUSE exists(rel(_, parent_id, parents, id), { col(tenant_id) = session('app.tenant_id') })`

	result := dsl.Parse(src)
	require.Empty(t, result.Errors)

	data, err := json.Marshal(result.Tree)
	require.NoError(t, err)

	var roundTripped dsl.PolicySet
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.True(t, result.Tree.Equal(&roundTripped), "policy set did not survive JSON round-trip")
}

func TestPolicySet_JSONEnvelope_HasGrammarVersion(t *testing.T) {
	ps := &dsl.PolicySet{Policies: []*dsl.Policy{
		{Name: "p", Mode: dsl.ModePermissive, Commands: []dsl.Command{dsl.CommandSelect}, Selector: dsl.AllSelector{}, Clauses: []*dsl.Clause{{Atoms: []dsl.Atom{}}}},
	}}
	data, err := json.Marshal(ps)
	require.NoError(t, err)

	var envelope struct {
		GrammarVersion int `json:"grammar_version"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, dsl.GrammarVersion, envelope.GrammarVersion)
}
