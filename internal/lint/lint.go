// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package lint flags suspicious-but-syntactically-valid policies: a clause
// that is always true, or a policy with no clauses at all. Both shapes
// compile and prove without error but quietly grant unconditional access.
package lint

import (
	"fmt"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/normalize"
)

// Warning is one lint finding, scoped to the policy that produced it.
type Warning struct {
	Policy  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Policy, w.Message)
}

// DetectWarnings inspects ps for always-true clauses and clauseless
// policies. It does not require a schema: both checks are purely syntactic.
func DetectWarnings(ps *dsl.PolicySet) []Warning {
	var warnings []Warning
	for _, p := range ps.Policies {
		if len(p.Clauses) == 0 {
			warnings = append(warnings, Warning{
				Policy:  p.Name,
				Message: "policy defines no clauses; every selector-matched table gets an unconditional policy",
			})
			continue
		}
		for _, c := range p.Clauses {
			if clauseAlwaysTrue(c) {
				warnings = append(warnings, Warning{
					Policy:  p.Name,
					Message: "a clause is always true (tautology); this disjunct makes the policy unconditionally permissive",
				})
			}
		}
	}
	return warnings
}

// clauseAlwaysTrue reports whether every atom in c is a tautology, so the
// conjunction — and hence the disjunct it contributes to the policy — is
// unconditionally true.
func clauseAlwaysTrue(c *dsl.Clause) bool {
	if len(c.Atoms) == 0 {
		return false
	}
	for _, a := range c.Atoms {
		if !normalize.IsTautology(a) {
			return false
		}
	}
	return true
}
