// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package normalize implements the idempotent PolicySet canonicalization
// atom dedup, tautology/contradiction removal, stable
// atom ordering, and selector re-association/sorting.
package normalize

import (
	"sort"

	"github.com/rlsguard/rlsguard/internal/dsl"
)

// Normalize returns the canonical form of p. It is a total, idempotent,
// pure function: it never mutates p and never fails.
func Normalize(p *dsl.PolicySet) *dsl.PolicySet {
	out := &dsl.PolicySet{Policies: make([]*dsl.Policy, 0, len(p.Policies))}
	for _, pol := range p.Policies {
		out.Policies = append(out.Policies, normalizePolicy(pol))
	}
	return out
}

func normalizePolicy(p *dsl.Policy) *dsl.Policy {
	clauses := make([]*dsl.Clause, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		if nc := normalizeClause(c); nc != nil {
			clauses = append(clauses, nc)
		}
	}
	return &dsl.Policy{
		Name:     p.Name,
		Mode:     p.Mode,
		Commands: append([]dsl.Command(nil), p.Commands...),
		Selector: normalizeSelector(p.Selector),
		Clauses:  clauses,
	}
}

// normalizeClause dedups atoms, drops tautologies, detects contradictions
// (returning nil if the clause is unsatisfiable), recursively normalizes
// traversal inner clauses, and sorts the remaining atoms into canonical
// order. Returns nil if the clause collapses to empty.
func normalizeClause(c *dsl.Clause) *dsl.Clause {
	var kept []dsl.Atom
	for _, a := range c.Atoms {
		a = normalizeAtom(a)
		if isTautology(a) {
			continue
		}
		duplicate := false
		for _, k := range kept {
			if k.Equal(a) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, a)
		}
	}
	if hasContradiction(kept) {
		return nil
	}
	if len(kept) == 0 {
		return nil
	}
	sort.Slice(kept, func(i, j int) bool { return atomLess(kept[i], kept[j]) })
	return &dsl.Clause{Atoms: kept}
}

func normalizeAtom(a dsl.Atom) dsl.Atom {
	if t, ok := a.(*dsl.TraversalAtom); ok {
		inner := normalizeClause(t.Inner)
		if inner == nil {
			inner = &dsl.Clause{}
		}
		return &dsl.TraversalAtom{Relationship: t.Relationship, Inner: inner}
	}
	return a
}

// IsTautology reports whether a is EQ(x, x) for identical value sources.
func IsTautology(a dsl.Atom) bool {
	return isTautology(a)
}

// isTautology reports whether a is EQ(x, x) for identical value sources.
func isTautology(a dsl.Atom) bool {
	b, ok := a.(*dsl.BinaryAtom)
	if !ok || b.Op != dsl.OpEQ {
		return false
	}
	return b.Left.Equal(b.Right)
}

// hasContradiction reports whether atoms contains two EQ atoms binding the
// same Col(c) to two distinct Lit values.
func hasContradiction(atoms []dsl.Atom) bool {
	bindings := map[string]dsl.LiteralValue{}
	for _, a := range atoms {
		b, ok := a.(*dsl.BinaryAtom)
		if !ok || b.Op != dsl.OpEQ {
			continue
		}
		col, lit, ok := colEqLit(b)
		if !ok {
			continue
		}
		if existing, seen := bindings[col]; seen {
			if !existing.Equal(lit) {
				return true
			}
			continue
		}
		bindings[col] = lit
	}
	return false
}

func colEqLit(b *dsl.BinaryAtom) (string, dsl.LiteralValue, bool) {
	if c, ok := b.Left.(dsl.ColSource); ok {
		if l, ok := b.Right.(dsl.LitSource); ok {
			return c.Name, l.Value, true
		}
	}
	if c, ok := b.Right.(dsl.ColSource); ok {
		if l, ok := b.Left.(dsl.LitSource); ok {
			return c.Name, l.Value, true
		}
	}
	return "", nil, false
}

// atomLess is the stable total order atoms are sorted by: tag first, then
// structural components via canonical string rendering.
func atomLess(a, b dsl.Atom) bool {
	ta, tb := atomOrderTag(a), atomOrderTag(b)
	if ta != tb {
		return ta < tb
	}
	return a.String() < b.String()
}

func atomOrderTag(a dsl.Atom) string {
	switch a.(type) {
	case *dsl.BinaryAtom:
		return "0"
	case *dsl.UnaryAtom:
		return "1"
	case *dsl.TraversalAtom:
		return "2"
	default:
		return "9"
	}
}

// normalizeSelector re-associates And/Or right and sorts direct operands,
// folding And(x,x)/Or(x,x) to x.
func normalizeSelector(s dsl.Selector) dsl.Selector {
	switch sv := s.(type) {
	case dsl.AndSelector:
		left := normalizeSelector(sv.Left)
		right := normalizeSelector(sv.Right)
		if left.Equal(right) {
			return left
		}
		return reassociate("and", left, right)
	case dsl.OrSelector:
		left := normalizeSelector(sv.Left)
		right := normalizeSelector(sv.Right)
		if left.Equal(right) {
			return left
		}
		return reassociate("or", left, right)
	default:
		return s
	}
}

func reassociate(kind string, left, right dsl.Selector) dsl.Selector {
	operands := flatten(kind, left)
	operands = append(operands, flatten(kind, right)...)
	sort.Slice(operands, func(i, j int) bool { return operands[i].String() < operands[j].String() })
	// right-associate the sorted operand list
	result := operands[len(operands)-1]
	for i := len(operands) - 2; i >= 0; i-- {
		if kind == "and" {
			result = dsl.AndSelector{Left: operands[i], Right: result}
		} else {
			result = dsl.OrSelector{Left: operands[i], Right: result}
		}
	}
	return result
}

func flatten(kind string, s dsl.Selector) []dsl.Selector {
	switch sv := s.(type) {
	case dsl.AndSelector:
		if kind == "and" {
			return append(flatten(kind, sv.Left), flatten(kind, sv.Right)...)
		}
	case dsl.OrSelector:
		if kind == "or" {
			return append(flatten(kind, sv.Left), flatten(kind, sv.Right)...)
		}
	}
	return []dsl.Selector{s}
}
