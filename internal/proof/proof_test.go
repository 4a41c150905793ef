// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package proof_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/proof"
	"github.com/rlsguard/rlsguard/internal/schema"
)

func table() schema.TableMetadata {
	return schema.TableMetadata{Name: "orders", Schema: "public"}
}

func TestProve_SessionPinnedClauseIsProven(t *testing.T) {
	policy := &dsl.Policy{
		Name: "tenant_isolation",
		Clauses: []*dsl.Clause{
			{Atoms: []dsl.Atom{&dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}}},
		},
	}

	result, err := proof.Prove(context.Background(), policy, table(), proof.Options{})
	require.NoError(t, err)
	assert.Equal(t, proof.StatusProven, result.Status)
	assert.NotEmpty(t, result.QueryID)
}

func TestProve_UnpinnedClauseYieldsCounterexample(t *testing.T) {
	policy := &dsl.Policy{
		Name: "loose",
		Clauses: []*dsl.Clause{
			{Atoms: []dsl.Atom{&dsl.BinaryAtom{Left: dsl.ColSource{Name: "status"}, Op: dsl.OpNEQ, Right: dsl.LitSource{Value: dsl.StringLiteral("deleted")}}}},
		},
	}

	result, err := proof.Prove(context.Background(), policy, table(), proof.Options{})
	require.NoError(t, err)
	assert.Equal(t, proof.StatusCounterexample, result.Status)
	assert.NotEmpty(t, result.Counterexample)
}

func TestProve_NoClausesIsVacuouslyUnsound(t *testing.T) {
	policy := &dsl.Policy{Name: "empty"}
	result, err := proof.Prove(context.Background(), policy, table(), proof.Options{})
	require.NoError(t, err)
	assert.Equal(t, proof.StatusCounterexample, result.Status)
}

func TestProve_TraversalInnerClauseCanPinSoundness(t *testing.T) {
	policy := &dsl.Policy{
		Name: "nested_ownership",
		Clauses: []*dsl.Clause{
			{Atoms: []dsl.Atom{&dsl.TraversalAtom{
				Relationship: dsl.Relationship{SourceColumn: "folder_id", TargetTable: "folders", TargetColumn: "id"},
				Inner: &dsl.Clause{Atoms: []dsl.Atom{
					&dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}},
				}},
			}}},
		},
	}

	result, err := proof.Prove(context.Background(), policy, table(), proof.Options{})
	require.NoError(t, err)
	assert.Equal(t, proof.StatusProven, result.Status)
}

func TestProve_MultipleClauses_AllMustBeSound(t *testing.T) {
	sound := &dsl.Clause{Atoms: []dsl.Atom{&dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}}}
	unsound := &dsl.Clause{Atoms: []dsl.Atom{&dsl.BinaryAtom{Left: dsl.ColSource{Name: "status"}, Op: dsl.OpNEQ, Right: dsl.LitSource{Value: dsl.StringLiteral("x")}}}}

	policy := &dsl.Policy{Name: "mixed", Clauses: []*dsl.Clause{sound, unsound}}
	result, err := proof.Prove(context.Background(), policy, table(), proof.Options{})
	require.NoError(t, err)
	assert.Equal(t, proof.StatusCounterexample, result.Status, "any unsound disjunct makes the whole policy unsound")
}

func TestContext_CloseIsIdempotent(t *testing.T) {
	pc, err := proof.NewContext(context.Background(), proof.Options{})
	require.NoError(t, err)
	require.NoError(t, pc.Close())
	require.NoError(t, pc.Close())
}

func TestNewContext_NilContextErrors(t *testing.T) {
	_, err := proof.NewContext(nil, proof.Options{})
	assert.Error(t, err)
}

func TestSolver_CheckSAT(t *testing.T) {
	pc, err := proof.NewContext(context.Background(), proof.Options{})
	require.NoError(t, err)
	defer pc.Close()

	clause := &dsl.Clause{Atoms: []dsl.Atom{&dsl.BinaryAtom{Left: dsl.ColSource{Name: "tenant_id"}, Op: dsl.OpEQ, Right: dsl.SessionSource{Key: "app.tenant_id"}}}}
	status, counterexample := pc.Solver().CheckSAT(clause)
	assert.Equal(t, proof.StatusProven, status)
	assert.Empty(t, counterexample)
}
