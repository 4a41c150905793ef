// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package dsl

import (
	"encoding/json"
	"fmt"
)

// Every tagged interface in this package (Atom, ValueSource, LiteralValue,
// Selector) serializes through a {"type": "...", "data": {...}} envelope so
// the AST round-trips through JSON by value. The grammar_version wrapper is
// added only at the PolicySet level (see PolicySet.MarshalJSON in ast.go).

type taggedEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func marshalTagged(tag string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedEnvelope{Type: tag, Data: data})
}

func marshalPolicies(policies []*Policy) (json.RawMessage, error) {
	raws := make([]json.RawMessage, len(policies))
	for i, p := range policies {
		raw, err := marshalPolicy(p)
		if err != nil {
			return nil, err
		}
		raws[i] = raw
	}
	return json.Marshal(raws)
}

type policyJSON struct {
	Name     string          `json:"name"`
	Mode     PolicyMode      `json:"mode"`
	Commands []Command       `json:"commands"`
	Selector json.RawMessage `json:"selector"`
	Clauses  []json.RawMessage `json:"clauses"`
}

func marshalPolicy(p *Policy) (json.RawMessage, error) {
	sel, err := MarshalSelector(p.Selector)
	if err != nil {
		return nil, err
	}
	clauses := make([]json.RawMessage, len(p.Clauses))
	for i, c := range p.Clauses {
		raw, err := marshalClause(c)
		if err != nil {
			return nil, err
		}
		clauses[i] = raw
	}
	return json.Marshal(policyJSON{
		Name: p.Name, Mode: p.Mode, Commands: p.Commands,
		Selector: sel, Clauses: clauses,
	})
}

func marshalClause(c *Clause) (json.RawMessage, error) {
	atoms := make([]json.RawMessage, len(c.Atoms))
	for i, a := range c.Atoms {
		raw, err := MarshalAtom(a)
		if err != nil {
			return nil, err
		}
		atoms[i] = raw
	}
	return json.Marshal(struct {
		Atoms []json.RawMessage `json:"atoms"`
	}{Atoms: atoms})
}

// MarshalAtom serializes an Atom through its tagged envelope.
func MarshalAtom(a Atom) ([]byte, error) {
	switch v := a.(type) {
	case *BinaryAtom:
		left, err := MarshalValueSource(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := MarshalValueSource(v.Right)
		if err != nil {
			return nil, err
		}
		return marshalTagged("binary", struct {
			Left  json.RawMessage `json:"left"`
			Op    BinaryOp        `json:"op"`
			Right json.RawMessage `json:"right"`
		}{left, v.Op, right})
	case *UnaryAtom:
		src, err := MarshalValueSource(v.Source)
		if err != nil {
			return nil, err
		}
		return marshalTagged("unary", struct {
			Source json.RawMessage `json:"source"`
			Op     UnaryOp         `json:"op"`
		}{src, v.Op})
	case *TraversalAtom:
		inner, err := marshalClause(v.Inner)
		if err != nil {
			return nil, err
		}
		return marshalTagged("traversal", struct {
			Relationship Relationship    `json:"relationship"`
			Inner        json.RawMessage `json:"inner"`
		}{v.Relationship, inner})
	default:
		return nil, fmt.Errorf("dsl: unknown atom type %T", a)
	}
}

// MarshalValueSource serializes a ValueSource through its tagged envelope.
func MarshalValueSource(v ValueSource) ([]byte, error) {
	switch vv := v.(type) {
	case ColSource:
		return marshalTagged("col", vv)
	case SessionSource:
		return marshalTagged("session", vv)
	case LitSource:
		lit, err := MarshalLiteral(vv.Value)
		if err != nil {
			return nil, err
		}
		return marshalTagged("lit", struct {
			Value json.RawMessage `json:"value"`
		}{lit})
	case FnSource:
		args := make([]json.RawMessage, len(vv.Args))
		for i, a := range vv.Args {
			raw, err := MarshalValueSource(a)
			if err != nil {
				return nil, err
			}
			args[i] = raw
		}
		return marshalTagged("fn", struct {
			Name string            `json:"name"`
			Args []json.RawMessage `json:"args"`
		}{vv.Name, args})
	default:
		return nil, fmt.Errorf("dsl: unknown value source type %T", v)
	}
}

// MarshalLiteral serializes a LiteralValue through its tagged envelope.
func MarshalLiteral(l LiteralValue) ([]byte, error) {
	switch lv := l.(type) {
	case StringLiteral:
		return marshalTagged("string", lv)
	case Int64Literal:
		return marshalTagged("int64", lv)
	case BoolLiteral:
		return marshalTagged("bool", lv)
	case NullLiteral:
		return marshalTagged("null", struct{}{})
	case ListLiteral:
		items := make([]json.RawMessage, len(lv))
		for i, v := range lv {
			raw, err := MarshalLiteral(v)
			if err != nil {
				return nil, err
			}
			items[i] = raw
		}
		return marshalTagged("list", items)
	default:
		return nil, fmt.Errorf("dsl: unknown literal type %T", l)
	}
}

// MarshalSelector serializes a Selector through its tagged envelope.
func MarshalSelector(s Selector) ([]byte, error) {
	switch sv := s.(type) {
	case AllSelector:
		return marshalTagged("all", struct{}{})
	case HasColumnSelector:
		return marshalTagged("has_column", sv)
	case InSchemaSelector:
		return marshalTagged("in_schema", sv)
	case NamedSelector:
		return marshalTagged("named", sv)
	case TaggedSelector:
		return marshalTagged("tagged", sv)
	case AndSelector:
		left, err := MarshalSelector(sv.Left)
		if err != nil {
			return nil, err
		}
		right, err := MarshalSelector(sv.Right)
		if err != nil {
			return nil, err
		}
		return marshalTagged("and", struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}{left, right})
	case OrSelector:
		left, err := MarshalSelector(sv.Left)
		if err != nil {
			return nil, err
		}
		right, err := MarshalSelector(sv.Right)
		if err != nil {
			return nil, err
		}
		return marshalTagged("or", struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}{left, right})
	default:
		return nil, fmt.Errorf("dsl: unknown selector type %T", s)
	}
}

// UnmarshalAtom parses an Atom from its tagged envelope.
func UnmarshalAtom(data []byte) (Atom, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "binary":
		var raw struct {
			Left  json.RawMessage `json:"left"`
			Op    BinaryOp        `json:"op"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		left, err := UnmarshalValueSource(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := UnmarshalValueSource(raw.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryAtom{Left: left, Op: raw.Op, Right: right}, nil
	case "unary":
		var raw struct {
			Source json.RawMessage `json:"source"`
			Op     UnaryOp         `json:"op"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		src, err := UnmarshalValueSource(raw.Source)
		if err != nil {
			return nil, err
		}
		return &UnaryAtom{Source: src, Op: raw.Op}, nil
	case "traversal":
		var raw struct {
			Relationship Relationship    `json:"relationship"`
			Inner        json.RawMessage `json:"inner"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		inner, err := unmarshalClause(raw.Inner)
		if err != nil {
			return nil, err
		}
		return &TraversalAtom{Relationship: raw.Relationship, Inner: inner}, nil
	default:
		return nil, fmt.Errorf("dsl: unknown atom tag %q", env.Type)
	}
}

// UnmarshalValueSource parses a ValueSource from its tagged envelope.
func UnmarshalValueSource(data []byte) (ValueSource, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "col":
		var v ColSource
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "session":
		var v SessionSource
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "lit":
		var raw struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		lit, err := UnmarshalLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		return LitSource{Value: lit}, nil
	case "fn":
		var raw struct {
			Name string            `json:"name"`
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		args := make([]ValueSource, len(raw.Args))
		for i, a := range raw.Args {
			vs, err := UnmarshalValueSource(a)
			if err != nil {
				return nil, err
			}
			args[i] = vs
		}
		return FnSource{Name: raw.Name, Args: args}, nil
	default:
		return nil, fmt.Errorf("dsl: unknown value source tag %q", env.Type)
	}
}

// UnmarshalLiteral parses a LiteralValue from its tagged envelope.
func UnmarshalLiteral(data []byte) (LiteralValue, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "string":
		var v StringLiteral
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "int64":
		var v Int64Literal
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "bool":
		var v BoolLiteral
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "null":
		return NullLiteral{}, nil
	case "list":
		var raws []json.RawMessage
		if err := json.Unmarshal(env.Data, &raws); err != nil {
			return nil, err
		}
		out := make(ListLiteral, len(raws))
		for i, r := range raws {
			lv, err := UnmarshalLiteral(r)
			if err != nil {
				return nil, err
			}
			out[i] = lv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dsl: unknown literal tag %q", env.Type)
	}
}

// UnmarshalSelector parses a Selector from its tagged envelope.
func UnmarshalSelector(data []byte) (Selector, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "all":
		return AllSelector{}, nil
	case "has_column":
		var v HasColumnSelector
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "in_schema":
		var v InSchemaSelector
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "named":
		var v NamedSelector
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "tagged":
		var v TaggedSelector
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "and":
		var raw struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		left, err := UnmarshalSelector(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := UnmarshalSelector(raw.Right)
		if err != nil {
			return nil, err
		}
		return AndSelector{Left: left, Right: right}, nil
	case "or":
		var raw struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		left, err := UnmarshalSelector(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := UnmarshalSelector(raw.Right)
		if err != nil {
			return nil, err
		}
		return OrSelector{Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("dsl: unknown selector tag %q", env.Type)
	}
}

func unmarshalClause(data []byte) (*Clause, error) {
	var raw struct {
		Atoms []json.RawMessage `json:"atoms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	atoms := make([]Atom, len(raw.Atoms))
	for i, a := range raw.Atoms {
		atom, err := UnmarshalAtom(a)
		if err != nil {
			return nil, err
		}
		atoms[i] = atom
	}
	return &Clause{Atoms: atoms}, nil
}

func unmarshalPolicy(data []byte) (*Policy, error) {
	var raw policyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	sel, err := UnmarshalSelector(raw.Selector)
	if err != nil {
		return nil, err
	}
	clauses := make([]*Clause, len(raw.Clauses))
	for i, c := range raw.Clauses {
		clause, err := unmarshalClause(c)
		if err != nil {
			return nil, err
		}
		clauses[i] = clause
	}
	return &Policy{Name: raw.Name, Mode: raw.Mode, Commands: raw.Commands, Selector: sel, Clauses: clauses}, nil
}

// UnmarshalJSON parses a PolicySet from its grammar_version envelope.
func (p *PolicySet) UnmarshalJSON(data []byte) error {
	var w wrappedPolicySet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(w.Policies, &raws); err != nil {
		return err
	}
	policies := make([]*Policy, len(raws))
	for i, r := range raws {
		pol, err := unmarshalPolicy(r)
		if err != nil {
			return err
		}
		policies[i] = pol
	}
	p.Policies = policies
	return nil
}
