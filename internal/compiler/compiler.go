// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package compiler implements the deterministic DDL compiler described in
// (PolicySet, SchemaMetadata) → CompiledState.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/schema"
	"github.com/rlsguard/rlsguard/internal/selector"
)

// CompiledPolicy is one CREATE POLICY artifact.
type CompiledPolicy struct {
	Name  string
	Table string
	SQL   string
}

// TableArtifacts is the ordered DDL for a single governed table.
type TableArtifacts struct {
	Table     string
	Schema    string
	EnableRLS string
	ForceRLS  string
	Policies  []CompiledPolicy
}

// CompiledState is the compiler's output: ordered per-table artifacts in
// schema order.
type CompiledState struct {
	Tables []TableArtifacts
}

// Render concatenates every table's artifacts, in order, into the stable
// DDL text contract: enable/force statements, then each policy statement,
// per table, schema order.
func (cs *CompiledState) Render() string {
	var b strings.Builder
	for _, t := range cs.Tables {
		b.WriteString(t.EnableRLS)
		b.WriteString("\n")
		b.WriteString(t.ForceRLS)
		b.WriteString("\n")
		for _, p := range t.Policies {
			b.WriteString(p.SQL)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// CompileError is a semantic error scoped to one offending policy: a
// traversal referencing an unknown target table, a LIKE/NOT LIKE pattern
// that fails validation, or a compiled-policy-name collision on a table.
// A selector that matches no table, or names a column no table has, is not
// an error: the policy simply governs no table. Compilation aborts for
// that policy (or policy/table pair) only and continues with the rest.
type CompileError struct {
	Policy  string
	Table   string
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("policy %q: %s", e.Policy, e.Message)
}

// Compile is the pure function compile: (PolicySet, SchemaMetadata) →
// CompiledState. Errors scoped to individual policies are
// returned alongside a CompiledState built from every policy that compiled
// cleanly; a wholly successful compile returns a nil error slice.
func Compile(ps *dsl.PolicySet, meta schema.Metadata, tags schema.TagMap) (*CompiledState, []CompileError) {
	order := make(map[string]int, len(meta.Tables))
	for i, t := range meta.Tables {
		order[t.Name] = i
	}
	artifacts := make(map[string]*TableArtifacts, len(meta.Tables))
	var tableOrder []string
	var errs []CompileError

	for _, policy := range ps.Policies {
		governed := selector.Evaluate(policy.Selector, meta, tags)
		if err := validateTraversals(policy, meta); err != nil {
			errs = append(errs, CompileError{Policy: policy.Name, Message: err.Error()})
			continue
		}
		for _, table := range governed {
			ta, ok := artifacts[table.Name]
			if !ok {
				ta = &TableArtifacts{
					Table:     table.Name,
					Schema:    table.Schema,
					EnableRLS: fmt.Sprintf("ALTER TABLE %s.%s ENABLE ROW LEVEL SECURITY;", table.Schema, table.Name),
					ForceRLS:  fmt.Sprintf("ALTER TABLE %s.%s FORCE ROW LEVEL SECURITY;", table.Schema, table.Name),
				}
				artifacts[table.Name] = ta
				tableOrder = append(tableOrder, table.Name)
			}
			name := policy.Name + "_" + table.Name
			if policyNameExists(ta.Policies, name) {
				errs = append(errs, CompileError{
					Policy: policy.Name, Table: table.Name,
					Message: fmt.Sprintf("duplicate compiled policy name %q on table %q", name, table.Name),
				})
				continue
			}
			if err := validateGlobAtoms(policy.Clauses); err != nil {
				errs = append(errs, CompileError{Policy: policy.Name, Table: table.Name, Message: err.Error()})
				continue
			}
			sql := renderCreatePolicy(name, table, policy)
			ta.Policies = append(ta.Policies, CompiledPolicy{Name: name, Table: table.Name, SQL: sql})
		}
	}

	sort.Slice(tableOrder, func(i, j int) bool { return order[tableOrder[i]] < order[tableOrder[j]] })
	cs := &CompiledState{}
	for _, name := range tableOrder {
		cs.Tables = append(cs.Tables, *artifacts[name])
	}
	return cs, errs
}

func policyNameExists(policies []CompiledPolicy, name string) bool {
	for _, p := range policies {
		if p.Name == name {
			return true
		}
	}
	return false
}

// validateTraversals walks every clause in policy and rejects any Traversal
// atom whose target table is absent from meta.
func validateTraversals(policy *dsl.Policy, meta schema.Metadata) error {
	for _, clause := range policy.Clauses {
		if err := validateClauseTraversals(clause, meta); err != nil {
			return err
		}
	}
	return nil
}

func validateClauseTraversals(c *dsl.Clause, meta schema.Metadata) error {
	for _, a := range c.Atoms {
		t, ok := a.(*dsl.TraversalAtom)
		if !ok {
			continue
		}
		if _, found := meta.Table(t.Relationship.TargetTable); !found {
			return oops.Code("POLICY_SEMANTIC_ERROR").
				With("target_table", t.Relationship.TargetTable).
				Errorf("traversal references unknown target table %q", t.Relationship.TargetTable)
		}
		if err := validateClauseTraversals(t.Inner, meta); err != nil {
			return err
		}
	}
	return nil
}

// validateGlobAtoms precompiles every LIKE/NOT_LIKE pattern atom's glob
// form before it ever reaches the evaluator, enforcing a length/wildcard
// bound and rejecting the colon namespace separator.
const (
	maxGlobPatternLen = 100
	maxGlobWildcards  = 5
)

func validateGlobAtoms(clauses []*dsl.Clause) error {
	for _, c := range clauses {
		if err := validateGlobClause(c); err != nil {
			return err
		}
	}
	return nil
}

func validateGlobClause(c *dsl.Clause) error {
	for _, a := range c.Atoms {
		switch v := a.(type) {
		case *dsl.BinaryAtom:
			if v.Op == dsl.OpLIKE || v.Op == dsl.OpNOTLIKE {
				if lit, ok := v.Right.(dsl.LitSource); ok {
					if s, ok := lit.Value.(dsl.StringLiteral); ok {
						if err := validateGlobPattern(string(s)); err != nil {
							return err
						}
					}
				}
			}
		case *dsl.TraversalAtom:
			if err := validateGlobClause(v.Inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateGlobPattern(pattern string) error {
	if len(pattern) > maxGlobPatternLen {
		return oops.Code("POLICY_SEMANTIC_ERROR").With("pattern", pattern).
			Errorf("LIKE pattern exceeds maximum length %d", maxGlobPatternLen)
	}
	if strings.Contains(pattern, "[") || strings.Contains(pattern, "{") || strings.Contains(pattern, "**") ||
		strings.Contains(pattern, ":") {
		return oops.Code("POLICY_SEMANTIC_ERROR").With("pattern", pattern).
			Errorf("LIKE pattern uses disallowed glob syntax")
	}
	wildcards := strings.Count(pattern, "%") + strings.Count(pattern, "_")
	if wildcards > maxGlobWildcards {
		return oops.Code("POLICY_SEMANTIC_ERROR").With("pattern", pattern).
			Errorf("LIKE pattern exceeds maximum wildcard count %d", maxGlobWildcards)
	}
	globPattern := strings.NewReplacer("%", "*", "_", "?").Replace(pattern)
	_, err := glob.Compile(globPattern, ':')
	if err != nil {
		return oops.Code("POLICY_SEMANTIC_ERROR").With("pattern", pattern).Wrapf(err, "invalid LIKE pattern")
	}
	return nil
}

func renderCreatePolicy(name string, table schema.TableMetadata, policy *dsl.Policy) string {
	expr := renderClauses(policy.Clauses, table)
	return fmt.Sprintf("CREATE POLICY %s ON %s.%s AS %s FOR %s USING (%s);",
		name, table.Schema, table.Name, policy.Mode, policy.CommandsSQL(), expr)
}

// renderClauses renders the top-level clause disjunction for the policy's
// own governed table. Column references here stay bare (`tenant_id`, not
// `public.orders.tenant_id`) — a USING expression runs in that table's own
// scope, so qualification is unnecessary. Only clauses nested inside a
// traversal's EXISTS subquery need their column references qualified, since
// that subquery sees both the governed table and the joined table in
// scope; renderTraversal recurses into renderClause with qualify=true.
func renderClauses(clauses []*dsl.Clause, table schema.TableMetadata) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = renderClause(c, table, false)
	}
	return strings.Join(parts, " OR ")
}

func renderClause(c *dsl.Clause, table schema.TableMetadata, qualify bool) string {
	parts := make([]string, len(c.Atoms))
	for i, a := range c.Atoms {
		parts[i] = renderAtom(a, table, qualify)
	}
	return strings.Join(parts, " AND ")
}

func renderAtom(a dsl.Atom, table schema.TableMetadata, qualify bool) string {
	switch v := a.(type) {
	case *dsl.BinaryAtom:
		return renderBinary(v, table, qualify)
	case *dsl.UnaryAtom:
		return renderUnary(v, table, qualify)
	case *dsl.TraversalAtom:
		return renderTraversal(v, table)
	default:
		return a.String()
	}
}

// renderValueSource renders a value source as it appears inside a USING
// expression, qualifying bare column references to <schema>.<table>.<col>
// when qualify is set (inside a traversal's inner clause); every other
// source renders via its own String().
func renderValueSource(v dsl.ValueSource, table schema.TableMetadata, qualify bool) string {
	if col, ok := v.(dsl.ColSource); ok && qualify {
		return fmt.Sprintf("%s.%s.%s", table.Schema, table.Name, col.Name)
	}
	return v.String()
}

func renderBinary(b *dsl.BinaryAtom, table schema.TableMetadata, qualify bool) string {
	left := renderValueSource(b.Left, table, qualify)
	right := renderValueSource(b.Right, table, qualify)
	switch b.Op {
	case dsl.OpIN:
		return fmt.Sprintf("%s IN %s", left, right)
	case dsl.OpNOTIN:
		return fmt.Sprintf("%s NOT IN %s", left, right)
	default:
		return fmt.Sprintf("%s %s %s", left, b.Op.SQL(), right)
	}
}

func renderUnary(u *dsl.UnaryAtom, table schema.TableMetadata, qualify bool) string {
	src := renderValueSource(u.Source, table, qualify)
	if u.Op == dsl.OpIsNull {
		return src + " IS NULL"
	}
	return src + " IS NOT NULL"
}

func renderTraversal(t *dsl.TraversalAtom, table schema.TableMetadata) string {
	srcTable := t.Relationship.SourceTable
	if srcTable == "" {
		srcTable = table.Name
	}
	innerTable := schema.TableMetadata{Name: t.Relationship.TargetTable, Schema: table.Schema}
	inner := renderClause(t.Inner, innerTable, true)
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s.%s WHERE %s.%s.%s = %s.%s.%s AND %s)",
		table.Schema, t.Relationship.TargetTable,
		table.Schema, t.Relationship.TargetTable, t.Relationship.TargetColumn,
		table.Schema, srcTable, t.Relationship.SourceColumn,
		inner)
}
