// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package dsl defines the AST types for the row-level-security policy DSL
// and a parser that tokenizes with participle's lexer and builds the tree
// by hand so that every syntax error in a source file is collected instead
// of aborting at the first one. The AST nodes are designed to survive JSON
// serialization round-trips so tests can construct fixtures by value.
package dsl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GrammarVersion is embedded in the JSON wrapper produced by
// PolicySet.MarshalJSON so stored/serialized policy sets can evolve the grammar without breaking
// older consumers silently.
const GrammarVersion = 1

// PolicyMode is the combination mode of a policy: PERMISSIVE policies OR
// together, RESTRICTIVE policies AND with the rest.
type PolicyMode string

const (
	ModePermissive  PolicyMode = "PERMISSIVE"
	ModeRestrictive PolicyMode = "RESTRICTIVE"
)

// Command is one of the four row-level-security command kinds a policy can
// govern.
type Command string

const (
	CommandSelect Command = "SELECT"
	CommandInsert Command = "INSERT"
	CommandUpdate Command = "UPDATE"
	CommandDelete Command = "DELETE"
)

// canonicalCommandOrder is the order used when rendering a
// non-ALL command list.
var canonicalCommandOrder = []Command{CommandSelect, CommandInsert, CommandUpdate, CommandDelete}

// PolicySet is the ordered list of policies parsed from one DSL source.
// Order is insertion order from source text and is preserved through every
// pipeline stage.
type PolicySet struct {
	Policies []*Policy `json:"policies"`
}

// Policy is a single named rule: a mode, the commands it governs, a
// selector choosing which tables it applies to, and the disjunction of
// clauses that form its predicate.
type Policy struct {
	Name     string     `json:"name"`
	Mode     PolicyMode `json:"mode"`
	Commands []Command  `json:"commands"`
	Selector Selector   `json:"selector"`
	Clauses  []*Clause  `json:"clauses"`
}

// Clause is a conjunction of atoms. A policy's predicate is the disjunction
// of its clauses.
type Clause struct {
	Atoms []Atom `json:"atoms"`
}

// Atom is a tagged indivisible predicate term: Binary, Unary, or Traversal.
type Atom interface {
	atomTag() string
	Equal(Atom) bool
	String() string
}

// BinaryOp is the operator of a BinaryAtom.
type BinaryOp string

const (
	OpEQ      BinaryOp = "EQ"
	OpNEQ     BinaryOp = "NEQ"
	OpLT      BinaryOp = "LT"
	OpGT      BinaryOp = "GT"
	OpLTE     BinaryOp = "LTE"
	OpGTE     BinaryOp = "GTE"
	OpIN      BinaryOp = "IN"
	OpNOTIN   BinaryOp = "NOT_IN"
	OpLIKE    BinaryOp = "LIKE"
	OpNOTLIKE BinaryOp = "NOT_LIKE"
)

// sqlOperators maps a BinaryOp to its rendered SQL form.
var sqlOperators = map[BinaryOp]string{
	OpEQ:      "=",
	OpNEQ:     "<>",
	OpLT:      "<",
	OpGT:      ">",
	OpLTE:     "<=",
	OpGTE:     ">=",
	OpLIKE:    "LIKE",
	OpNOTLIKE: "NOT LIKE",
}

// SQL returns op's rendered SQL operator text (e.g. "=" for OpEQ). Callers
// outside this package that need to re-render a BinaryAtom's operands
// themselves (the compiler's column-qualification pass, for instance) use
// this instead of duplicating sqlOperators.
func (op BinaryOp) SQL() string {
	return sqlOperators[op]
}

// UnaryOp is the operator of a UnaryAtom.
type UnaryOp string

const (
	OpIsNull    UnaryOp = "IS_NULL"
	OpIsNotNull UnaryOp = "IS_NOT_NULL"
)

// BinaryAtom compares two value sources with a binary operator.
type BinaryAtom struct {
	Left  ValueSource `json:"left"`
	Op    BinaryOp    `json:"op"`
	Right ValueSource `json:"right"`
}

func (a *BinaryAtom) atomTag() string { return "binary" }

func (a *BinaryAtom) Equal(other Atom) bool {
	o, ok := other.(*BinaryAtom)
	if !ok {
		return false
	}
	return a.Op == o.Op && a.Left.Equal(o.Left) && a.Right.Equal(o.Right)
}

func (a *BinaryAtom) String() string {
	switch a.Op {
	case OpIN, OpNOTIN:
		op := "IN"
		if a.Op == OpNOTIN {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s %s", a.Left.String(), op, a.Right.String())
	default:
		return fmt.Sprintf("%s %s %s", a.Left.String(), sqlOperators[a.Op], a.Right.String())
	}
}

// UnaryAtom tests nullity of a single value source.
type UnaryAtom struct {
	Source ValueSource `json:"source"`
	Op     UnaryOp     `json:"op"`
}

func (a *UnaryAtom) atomTag() string { return "unary" }

func (a *UnaryAtom) Equal(other Atom) bool {
	o, ok := other.(*UnaryAtom)
	if !ok {
		return false
	}
	return a.Op == o.Op && a.Source.Equal(o.Source)
}

func (a *UnaryAtom) String() string {
	if a.Op == OpIsNull {
		return a.Source.String() + " IS NULL"
	}
	return a.Source.String() + " IS NOT NULL"
}

// Relationship describes a foreign-key-shaped join used by a Traversal
// atom. An empty SourceTable means "the table currently being governed".
type Relationship struct {
	SourceTable  string `json:"sourceTable,omitempty"`
	SourceColumn string `json:"sourceColumn"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
}

func (r Relationship) Equal(o Relationship) bool {
	return r.SourceTable == o.SourceTable && r.SourceColumn == o.SourceColumn &&
		r.TargetTable == o.TargetTable && r.TargetColumn == o.TargetColumn
}

// TraversalAtom is an EXISTS-style predicate joining the governed row to a
// related table, with an inner clause evaluated in the related row's scope.
type TraversalAtom struct {
	Relationship Relationship `json:"relationship"`
	Inner        *Clause      `json:"inner"`
}

func (a *TraversalAtom) atomTag() string { return "traversal" }

func (a *TraversalAtom) Equal(other Atom) bool {
	o, ok := other.(*TraversalAtom)
	if !ok {
		return false
	}
	if !a.Relationship.Equal(o.Relationship) {
		return false
	}
	return a.Inner.Equal(o.Inner)
}

func (a *TraversalAtom) String() string {
	inner := make([]string, len(a.Inner.Atoms))
	for i, at := range a.Inner.Atoms {
		inner[i] = at.String()
	}
	src := a.Relationship.SourceTable
	if src == "" {
		src = "_"
	}
	return fmt.Sprintf("exists(rel(%s, %s, %s, %s), { %s })",
		src, a.Relationship.SourceColumn, a.Relationship.TargetTable, a.Relationship.TargetColumn,
		strings.Join(inner, " AND "))
}

// Equal reports whether two clauses contain the same set of atoms
// (set equality, order-independent).
func (c *Clause) Equal(o *Clause) bool {
	if c == nil || o == nil {
		return c == o
	}
	if len(c.Atoms) != len(o.Atoms) {
		return false
	}
	used := make([]bool, len(o.Atoms))
	for _, a := range c.Atoms {
		found := false
		for i, b := range o.Atoms {
			if used[i] {
				continue
			}
			if a.Equal(b) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ValueSource is a tagged value reference: Col, Session, Lit, or Fn.
type ValueSource interface {
	valueTag() string
	Equal(ValueSource) bool
	String() string
}

// ColSource references a column on the row currently being governed.
type ColSource struct {
	Name string `json:"name"`
}

func (v ColSource) valueTag() string { return "col" }
func (v ColSource) Equal(o ValueSource) bool {
	ov, ok := o.(ColSource)
	return ok && v.Name == ov.Name
}
func (v ColSource) String() string { return v.Name }

// SessionSource references a session/GUC setting by key.
type SessionSource struct {
	Key string `json:"key"`
}

func (v SessionSource) valueTag() string { return "session" }
func (v SessionSource) Equal(o ValueSource) bool {
	ov, ok := o.(SessionSource)
	return ok && v.Key == ov.Key
}
func (v SessionSource) String() string {
	return fmt.Sprintf("current_setting(%s)", quoteSQLString(v.Key))
}

// LitSource is a literal value source.
type LitSource struct {
	Value LiteralValue `json:"value"`
}

func (v LitSource) valueTag() string { return "lit" }
func (v LitSource) Equal(o ValueSource) bool {
	ov, ok := o.(LitSource)
	return ok && v.Value.Equal(ov.Value)
}
func (v LitSource) String() string { return v.Value.String() }

// FnSource is a function application over other value sources.
type FnSource struct {
	Name string        `json:"name"`
	Args []ValueSource `json:"args"`
}

func (v FnSource) valueTag() string { return "fn" }
func (v FnSource) Equal(o ValueSource) bool {
	ov, ok := o.(FnSource)
	if !ok || v.Name != ov.Name || len(v.Args) != len(ov.Args) {
		return false
	}
	for i := range v.Args {
		if !v.Args[i].Equal(ov.Args[i]) {
			return false
		}
	}
	return true
}
func (v FnSource) String() string {
	parts := make([]string, len(v.Args))
	for i, a := range v.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", v.Name, strings.Join(parts, ", "))
}

// LiteralValue is a tagged DSL literal: String, Int64, Bool, Null, or List.
type LiteralValue interface {
	literalTag() string
	Equal(LiteralValue) bool
	String() string
}

type StringLiteral string

func (l StringLiteral) literalTag() string { return "string" }
func (l StringLiteral) Equal(o LiteralValue) bool {
	ov, ok := o.(StringLiteral)
	return ok && l == ov
}
func (l StringLiteral) String() string { return quoteSQLString(string(l)) }

type Int64Literal int64

func (l Int64Literal) literalTag() string { return "int64" }
func (l Int64Literal) Equal(o LiteralValue) bool {
	ov, ok := o.(Int64Literal)
	return ok && l == ov
}
func (l Int64Literal) String() string { return strconv.FormatInt(int64(l), 10) }

type BoolLiteral bool

func (l BoolLiteral) literalTag() string { return "bool" }
func (l BoolLiteral) Equal(o LiteralValue) bool {
	ov, ok := o.(BoolLiteral)
	return ok && l == ov
}
func (l BoolLiteral) String() string {
	if l {
		return "true"
	}
	return "false"
}

type NullLiteral struct{}

func (l NullLiteral) literalTag() string       { return "null" }
func (l NullLiteral) Equal(o LiteralValue) bool { _, ok := o.(NullLiteral); return ok }
func (l NullLiteral) String() string           { return "NULL" }

type ListLiteral []LiteralValue

func (l ListLiteral) literalTag() string { return "list" }
func (l ListLiteral) Equal(o LiteralValue) bool {
	ov, ok := o.(ListLiteral)
	if !ok || len(l) != len(ov) {
		return false
	}
	for i := range l {
		if !l[i].Equal(ov[i]) {
			return false
		}
	}
	return true
}
func (l ListLiteral) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Selector is a tagged predicate over SchemaMetadata choosing the tables a
// policy applies to.
type Selector interface {
	selectorTag() string
	Equal(Selector) bool
	String() string
}

type AllSelector struct{}

func (s AllSelector) selectorTag() string      { return "all" }
func (s AllSelector) Equal(o Selector) bool    { _, ok := o.(AllSelector); return ok }
func (s AllSelector) String() string           { return "ALL" }

type HasColumnSelector struct {
	Column string `json:"column"`
	Type   string `json:"type,omitempty"` // empty means unconstrained
}

func (s HasColumnSelector) selectorTag() string { return "has_column" }
func (s HasColumnSelector) Equal(o Selector) bool {
	ov, ok := o.(HasColumnSelector)
	return ok && s.Column == ov.Column && s.Type == ov.Type
}
func (s HasColumnSelector) String() string {
	if s.Type == "" {
		return fmt.Sprintf("has_column(%s)", s.Column)
	}
	return fmt.Sprintf("has_column(%s, %s)", s.Column, s.Type)
}

type InSchemaSelector struct {
	Schema string `json:"schema"`
}

func (s InSchemaSelector) selectorTag() string   { return "in_schema" }
func (s InSchemaSelector) Equal(o Selector) bool { ov, ok := o.(InSchemaSelector); return ok && s.Schema == ov.Schema }
func (s InSchemaSelector) String() string        { return fmt.Sprintf("in_schema(%s)", s.Schema) }

type NamedSelector struct {
	Table string `json:"table"`
}

func (s NamedSelector) selectorTag() string   { return "named" }
func (s NamedSelector) Equal(o Selector) bool { ov, ok := o.(NamedSelector); return ok && s.Table == ov.Table }
func (s NamedSelector) String() string        { return fmt.Sprintf("named(%s)", quoteSQLString(s.Table)) }

type TaggedSelector struct {
	Tag string `json:"tag"`
}

func (s TaggedSelector) selectorTag() string   { return "tagged" }
func (s TaggedSelector) Equal(o Selector) bool { ov, ok := o.(TaggedSelector); return ok && s.Tag == ov.Tag }
func (s TaggedSelector) String() string        { return fmt.Sprintf("tagged(%s)", quoteSQLString(s.Tag)) }

type AndSelector struct {
	Left, Right Selector `json:"-"`
}

func (s AndSelector) selectorTag() string { return "and" }
func (s AndSelector) Equal(o Selector) bool {
	ov, ok := o.(AndSelector)
	return ok && s.Left.Equal(ov.Left) && s.Right.Equal(ov.Right)
}
func (s AndSelector) String() string {
	return fmt.Sprintf("(%s AND %s)", s.Left.String(), s.Right.String())
}

type OrSelector struct {
	Left, Right Selector `json:"-"`
}

func (s OrSelector) selectorTag() string { return "or" }
func (s OrSelector) Equal(o Selector) bool {
	ov, ok := o.(OrSelector)
	return ok && s.Left.Equal(ov.Left) && s.Right.Equal(ov.Right)
}
func (s OrSelector) String() string {
	return fmt.Sprintf("(%s OR %s)", s.Left.String(), s.Right.String())
}

// CommandsSQL renders the policy's command set: "ALL" if the set
// equals all four commands, else comma-joined in canonical order.
func (p *Policy) CommandsSQL() string {
	set := make(map[Command]bool, len(p.Commands))
	for _, c := range p.Commands {
		set[c] = true
	}
	if len(set) == 4 {
		return "ALL"
	}
	var parts []string
	for _, c := range canonicalCommandOrder {
		if set[c] {
			parts = append(parts, string(c))
		}
	}
	return strings.Join(parts, ", ")
}

// Equal reports structural equality between two policies, including
// selector, clauses (as sets of clauses), and metadata.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Name != o.Name || p.Mode != o.Mode {
		return false
	}
	if !sameCommandSet(p.Commands, o.Commands) {
		return false
	}
	if !p.Selector.Equal(o.Selector) {
		return false
	}
	if len(p.Clauses) != len(o.Clauses) {
		return false
	}
	used := make([]bool, len(o.Clauses))
	for _, c := range p.Clauses {
		found := false
		for i, d := range o.Clauses {
			if used[i] {
				continue
			}
			if c.Equal(d) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sameCommandSet(a, b []Command) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]Command(nil), a...)
	sb := append([]Command(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two policy sets, order-sensitive
// (PolicySet order is a semantic part of the data model).
func (p *PolicySet) Equal(o *PolicySet) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.Policies) != len(o.Policies) {
		return false
	}
	for i := range p.Policies {
		if !p.Policies[i].Equal(o.Policies[i]) {
			return false
		}
	}
	return true
}

// wrappedPolicySet is the JSON envelope used by PolicySet's MarshalJSON and
// UnmarshalJSON,
// mirroring the grammar_version wrapping convention used for compiled policy
// storage.
type wrappedPolicySet struct {
	GrammarVersion int             `json:"grammar_version"`
	Policies       json.RawMessage `json:"policies"`
}

// MarshalJSON renders the policy set with its grammar version, so tests and
// storage callers can round-trip fixtures by value.
func (p *PolicySet) MarshalJSON() ([]byte, error) {
	policies, err := marshalPolicies(p.Policies)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wrappedPolicySet{GrammarVersion: GrammarVersion, Policies: policies})
}
