// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// SyntaxError is one collected parse failure: a location plus a message, per
// Syntax errors are values, not Go
// errors — they are collected, never thrown.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e SyntaxError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// ParseResult is the parser's sole output shape: Tree is non-nil only when
// Errors is empty.
type ParseResult struct {
	Tree   *PolicySet
	Errors []SyntaxError
}

// Parse tokenizes and parses DSL source text, collecting every syntax error
// (line, column, message) instead of aborting at the first one.
func Parse(src string) ParseResult {
	p := &parser{tokens: tokenize(src)}
	set := p.parsePolicySet()
	if len(p.errors) > 0 {
		return ParseResult{Errors: p.errors}
	}
	return ParseResult{Tree: set}
}

// parser is a hand-written recursive-descent parser over the token stream
// produced by tokenize. Kept separate from participle's generated parser
// (which is used only for lexing) because participle aborts at the first
// syntax error; this parser resynchronizes at policy boundaries instead so
// every error in a source file surfaces.
type parser struct {
	tokens []token
	pos    int
	errors []SyntaxError
}

func (p *parser) peek() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{kind: "EOF", value: "", line: p.lastLine(), col: p.lastCol()}
}

func (p *parser) lastLine() int {
	if len(p.tokens) == 0 {
		return 1
	}
	return p.tokens[len(p.tokens)-1].line
}

func (p *parser) lastCol() int {
	if len(p.tokens) == 0 {
		return 1
	}
	return p.tokens[len(p.tokens)-1].col
}

func (p *parser) atEOF() bool { return p.pos >= len(p.tokens) }

func (p *parser) advance() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) {
	p.errors = append(p.errors, SyntaxError{Line: t.line, Column: t.col, Message: fmt.Sprintf(format, args...)})
}

// expectKeyword consumes an Ident token matching word case-insensitively,
// recording a syntax error and returning false otherwise.
func (p *parser) expectKeyword(word string) bool {
	t := p.peek()
	if t.kind == "Ident" && strings.EqualFold(t.value, word) {
		p.advance()
		return true
	}
	p.errorf(t, "expected %q, got %q", word, tokenDescription(t))
	return false
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == "Ident" && strings.EqualFold(t.value, word)
}

func (p *parser) expectPunct(value string) bool {
	t := p.peek()
	if t.kind == "Punct" && t.value == value {
		p.advance()
		return true
	}
	p.errorf(t, "expected %q, got %q", value, tokenDescription(t))
	return false
}

func tokenDescription(t token) string {
	if t.kind == "EOF" {
		return "end of input"
	}
	return t.value
}

// synchronize discards tokens up to (not including) the next 'POLICY'
// keyword so one malformed policy doesn't prevent the parser from reporting
// errors in the rest of the file.
func (p *parser) synchronize() {
	for !p.atEOF() {
		if p.isKeyword("POLICY") {
			return
		}
		p.advance()
	}
}

func (p *parser) parsePolicySet() *PolicySet {
	set := &PolicySet{}
	for !p.atEOF() {
		startErrors := len(p.errors)
		pol := p.parsePolicy()
		if pol != nil {
			set.Policies = append(set.Policies, pol)
		}
		if len(p.errors) > startErrors {
			p.synchronize()
		}
	}
	return set
}

func (p *parser) parsePolicy() *Policy {
	if !p.expectKeyword("POLICY") {
		// best-effort: skip to next POLICY keyword or EOF
		if !p.atEOF() {
			p.advance()
		}
		return nil
	}
	nameTok := p.peek()
	if nameTok.kind != "Ident" {
		p.errorf(nameTok, "expected policy name, got %q", tokenDescription(nameTok))
		return nil
	}
	p.advance()

	modeTok := p.peek()
	var mode PolicyMode
	switch {
	case modeTok.kind == "Ident" && strings.EqualFold(modeTok.value, "PERMISSIVE"):
		mode = ModePermissive
		p.advance()
	case modeTok.kind == "Ident" && strings.EqualFold(modeTok.value, "RESTRICTIVE"):
		mode = ModeRestrictive
		p.advance()
	default:
		p.errorf(modeTok, "expected PERMISSIVE or RESTRICTIVE, got %q", tokenDescription(modeTok))
		return nil
	}

	if !p.expectKeyword("FOR") {
		return nil
	}
	commands := p.parseCommandList()
	if commands == nil {
		return nil
	}

	if !p.expectKeyword("SELECTOR") {
		return nil
	}
	sel := p.parseSelectorOr()
	if sel == nil {
		return nil
	}

	clauses := p.parseClauseBlock()
	if clauses == nil {
		return nil
	}

	return &Policy{Name: nameTok.value, Mode: mode, Commands: commands, Selector: sel, Clauses: clauses}
}

func (p *parser) parseCommandList() []Command {
	var commands []Command
	for {
		t := p.peek()
		if t.kind != "Ident" {
			p.errorf(t, "expected command name, got %q", tokenDescription(t))
			return nil
		}
		switch strings.ToUpper(t.value) {
		case "SELECT":
			commands = append(commands, CommandSelect)
		case "INSERT":
			commands = append(commands, CommandInsert)
		case "UPDATE":
			commands = append(commands, CommandUpdate)
		case "DELETE":
			commands = append(commands, CommandDelete)
		default:
			p.errorf(t, "unknown command %q", t.value)
			return nil
		}
		p.advance()
		if p.peek().kind == "Punct" && p.peek().value == "," {
			p.advance()
			continue
		}
		break
	}
	return commands
}

// parseSelectorOr parses 'selector ("OR" selector)*', OR binding looser
// than AND.
func (p *parser) parseSelectorOr() Selector {
	left := p.parseSelectorAnd()
	if left == nil {
		return nil
	}
	for p.isKeyword("OR") {
		p.advance()
		right := p.parseSelectorAnd()
		if right == nil {
			return nil
		}
		left = OrSelector{Left: left, Right: right}
	}
	return left
}

func (p *parser) parseSelectorAnd() Selector {
	left := p.parseSelectorPrimary()
	if left == nil {
		return nil
	}
	for p.isKeyword("AND") {
		p.advance()
		right := p.parseSelectorPrimary()
		if right == nil {
			return nil
		}
		left = AndSelector{Left: left, Right: right}
	}
	return left
}

func (p *parser) parseSelectorPrimary() Selector {
	t := p.peek()
	switch {
	case t.kind == "Punct" && t.value == "(":
		p.advance()
		inner := p.parseSelectorOr()
		if inner == nil {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return inner
	case t.kind == "Ident" && strings.EqualFold(t.value, "ALL"):
		p.advance()
		return AllSelector{}
	case t.kind == "Ident" && strings.EqualFold(t.value, "has_column"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		colTok := p.peek()
		if colTok.kind != "Ident" {
			p.errorf(colTok, "expected column name, got %q", tokenDescription(colTok))
			return nil
		}
		p.advance()
		var colType string
		if p.peek().kind == "Punct" && p.peek().value == "," {
			p.advance()
			typeTok := p.peek()
			if typeTok.kind != "Ident" {
				p.errorf(typeTok, "expected column type, got %q", tokenDescription(typeTok))
				return nil
			}
			colType = typeTok.value
			p.advance()
		}
		if !p.expectPunct(")") {
			return nil
		}
		return HasColumnSelector{Column: colTok.value, Type: colType}
	case t.kind == "Ident" && strings.EqualFold(t.value, "in_schema"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		nameTok := p.peek()
		if nameTok.kind != "Ident" {
			p.errorf(nameTok, "expected schema name, got %q", tokenDescription(nameTok))
			return nil
		}
		p.advance()
		if !p.expectPunct(")") {
			return nil
		}
		return InSchemaSelector{Schema: nameTok.value}
	case t.kind == "Ident" && strings.EqualFold(t.value, "named"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		s, ok := p.parseStringLit()
		if !ok {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return NamedSelector{Table: s}
	case t.kind == "Ident" && strings.EqualFold(t.value, "tagged"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		s, ok := p.parseStringLit()
		if !ok {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return TaggedSelector{Tag: s}
	default:
		p.errorf(t, "expected selector, got %q", tokenDescription(t))
		return nil
	}
}

func (p *parser) parseClauseBlock() []*Clause {
	if !p.expectKeyword("CLAUSE") {
		return nil
	}
	first := p.parseClause()
	if first == nil {
		return nil
	}
	clauses := []*Clause{first}
	for p.isKeyword("OR") {
		p.advance()
		if !p.expectKeyword("CLAUSE") {
			return nil
		}
		next := p.parseClause()
		if next == nil {
			return nil
		}
		clauses = append(clauses, next)
	}
	return clauses
}

func (p *parser) parseClause() *Clause {
	first := p.parseAtom()
	if first == nil {
		return nil
	}
	atoms := []Atom{first}
	for p.isKeyword("AND") {
		p.advance()
		next := p.parseAtom()
		if next == nil {
			return nil
		}
		atoms = append(atoms, next)
	}
	return &Clause{Atoms: atoms}
}

func (p *parser) parseAtom() Atom {
	t := p.peek()
	if t.kind == "Ident" && strings.EqualFold(t.value, "exists") {
		return p.parseTraversalAtom()
	}
	left := p.parseValueSource()
	if left == nil {
		return nil
	}
	opTok := p.peek()
	switch {
	case opTok.kind == "IsNull":
		p.advance()
		return &UnaryAtom{Source: left, Op: OpIsNull}
	case opTok.kind == "IsNotNull":
		p.advance()
		return &UnaryAtom{Source: left, Op: OpIsNotNull}
	}
	op, ok := p.parseBinaryOp()
	if !ok {
		return nil
	}
	right := p.parseValueSource()
	if right == nil {
		return nil
	}
	return &BinaryAtom{Left: left, Op: op, Right: right}
}

func (p *parser) parseBinaryOp() (BinaryOp, bool) {
	t := p.peek()
	switch {
	case t.kind == "Op" && t.value == "=":
		p.advance()
		return OpEQ, true
	case t.kind == "Op" && t.value == "<>":
		p.advance()
		return OpNEQ, true
	case t.kind == "Op" && t.value == "<":
		p.advance()
		return OpLT, true
	case t.kind == "Op" && t.value == ">":
		p.advance()
		return OpGT, true
	case t.kind == "Op" && t.value == "<=":
		p.advance()
		return OpLTE, true
	case t.kind == "Op" && t.value == ">=":
		p.advance()
		return OpGTE, true
	case t.kind == "NotIn":
		p.advance()
		return OpNOTIN, true
	case t.kind == "NotLike":
		p.advance()
		return OpNOTLIKE, true
	case t.kind == "Ident" && strings.EqualFold(t.value, "IN"):
		p.advance()
		return OpIN, true
	case t.kind == "Ident" && strings.EqualFold(t.value, "LIKE"):
		p.advance()
		return OpLIKE, true
	default:
		p.errorf(t, "expected comparison operator, got %q", tokenDescription(t))
		return "", false
	}
}

func (p *parser) parseTraversalAtom() Atom {
	p.advance() // 'exists'
	if !p.expectPunct("(") {
		return nil
	}
	rel, ok := p.parseRelationship()
	if !ok {
		return nil
	}
	if !p.expectPunct(",") {
		return nil
	}
	if !p.expectPunct("{") {
		return nil
	}
	inner := p.parseClause()
	if inner == nil {
		return nil
	}
	if !p.expectPunct("}") {
		return nil
	}
	if !p.expectPunct(")") {
		return nil
	}
	return &TraversalAtom{Relationship: rel, Inner: inner}
}

func (p *parser) parseRelationship() (Relationship, bool) {
	if !p.expectKeyword("rel") {
		return Relationship{}, false
	}
	if !p.expectPunct("(") {
		return Relationship{}, false
	}
	var rel Relationship
	t := p.peek()
	if t.kind == "Ident" && t.value == "_" {
		p.advance()
	} else if t.kind == "Ident" {
		rel.SourceTable = t.value
		p.advance()
	} else {
		p.errorf(t, "expected source table or '_', got %q", tokenDescription(t))
		return Relationship{}, false
	}
	if !p.expectPunct(",") {
		return Relationship{}, false
	}
	srcCol, ok := p.parseIdent("source column")
	if !ok {
		return Relationship{}, false
	}
	rel.SourceColumn = srcCol
	if !p.expectPunct(",") {
		return Relationship{}, false
	}
	targetTable, ok := p.parseIdent("target table")
	if !ok {
		return Relationship{}, false
	}
	rel.TargetTable = targetTable
	if !p.expectPunct(",") {
		return Relationship{}, false
	}
	targetCol, ok := p.parseIdent("target column")
	if !ok {
		return Relationship{}, false
	}
	rel.TargetColumn = targetCol
	if !p.expectPunct(")") {
		return Relationship{}, false
	}
	return rel, true
}

func (p *parser) parseIdent(what string) (string, bool) {
	t := p.peek()
	if t.kind != "Ident" {
		p.errorf(t, "expected %s, got %q", what, tokenDescription(t))
		return "", false
	}
	p.advance()
	return t.value, true
}

func (p *parser) parseValueSource() ValueSource {
	t := p.peek()
	switch {
	case t.kind == "Ident" && strings.EqualFold(t.value, "col"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		name, ok := p.parseIdent("column name")
		if !ok {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return ColSource{Name: name}
	case t.kind == "Ident" && strings.EqualFold(t.value, "session"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		s, ok := p.parseStringLit()
		if !ok {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return SessionSource{Key: s}
	case t.kind == "Ident" && strings.EqualFold(t.value, "lit"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		lit := p.parseLiteral()
		if lit == nil {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return LitSource{Value: lit}
	case t.kind == "Ident" && strings.EqualFold(t.value, "fn"):
		p.advance()
		if !p.expectPunct("(") {
			return nil
		}
		name, ok := p.parseIdent("function name")
		if !ok {
			return nil
		}
		if !p.expectPunct(",") {
			return nil
		}
		if !p.expectPunct("[") {
			return nil
		}
		var args []ValueSource
		if !(p.peek().kind == "Punct" && p.peek().value == "]") {
			for {
				arg := p.parseValueSource()
				if arg == nil {
					return nil
				}
				args = append(args, arg)
				if p.peek().kind == "Punct" && p.peek().value == "," {
					p.advance()
					continue
				}
				break
			}
		}
		if !p.expectPunct("]") {
			return nil
		}
		if !p.expectPunct(")") {
			return nil
		}
		return FnSource{Name: name, Args: args}
	default:
		p.errorf(t, "expected value source (col/session/lit/fn), got %q", tokenDescription(t))
		return nil
	}
}

func (p *parser) parseLiteral() LiteralValue {
	t := p.peek()
	switch {
	case t.kind == "String":
		s, ok := p.parseStringLit()
		if !ok {
			return nil
		}
		return StringLiteral(s)
	case t.kind == "Number":
		p.advance()
		n, err := strconv.ParseInt(t.value, 10, 64)
		if err != nil {
			p.errorf(t, "invalid integer literal %q", t.value)
			return nil
		}
		return Int64Literal(n)
	case t.kind == "Ident" && strings.EqualFold(t.value, "true"):
		p.advance()
		return BoolLiteral(true)
	case t.kind == "Ident" && strings.EqualFold(t.value, "false"):
		p.advance()
		return BoolLiteral(false)
	case t.kind == "Ident" && strings.EqualFold(t.value, "null"):
		p.advance()
		return NullLiteral{}
	case t.kind == "Punct" && t.value == "[":
		p.advance()
		var items ListLiteral
		if !(p.peek().kind == "Punct" && p.peek().value == "]") {
			for {
				item := p.parseLiteral()
				if item == nil {
					return nil
				}
				items = append(items, item)
				if p.peek().kind == "Punct" && p.peek().value == "," {
					p.advance()
					continue
				}
				break
			}
		}
		if !p.expectPunct("]") {
			return nil
		}
		return items
	default:
		p.errorf(t, "expected literal, got %q", tokenDescription(t))
		return nil
	}
}

// parseStringLit consumes a String token and unescapes \' into '.
func (p *parser) parseStringLit() (string, bool) {
	t := p.peek()
	if t.kind != "String" {
		p.errorf(t, "expected string literal, got %q", tokenDescription(t))
		return "", false
	}
	p.advance()
	raw := t.value
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	return strings.ReplaceAll(raw, `\'`, `'`), true
}

// ParseError wraps a ParseResult's errors as a single oops error for
// callers (the CLI boundary) that want a conventional error return instead
// of inspecting ParseResult directly.
func (r ParseResult) ParseError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.String()
	}
	return oops.Code("DSL_SYNTAX_ERROR").
		With("error_count", len(r.Errors)).
		Errorf("%s", strings.Join(msgs, "; "))
}
