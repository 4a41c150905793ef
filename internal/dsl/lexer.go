// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package dsl

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// policyLexer tokenizes DSL source text. Token order matters: longer/more
// specific patterns are listed before shorter ones that share a prefix.
var policyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|/\*([^*]|\*[^/])*\*/`},
	{Name: "String", Pattern: `'(\\'|[^'])*'`},
	{Name: "Number", Pattern: `-?[0-9]+`},
	{Name: "Op", Pattern: `<=|>=|<>|=|<|>`},
	{Name: "Punct", Pattern: `[(){}\[\],.]`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_]*|_`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "whitespace", Pattern: `[ \t]+`},
})

// token is a single lexed token with its source position, flattened out of
// participle's lexer.Token stream and with multi-word keywords (IS NULL,
// IS NOT NULL, NOT IN, NOT LIKE) folded into one token each.
type token struct {
	kind  string // "Ident", "String", "Number", "Punct", or a folded keyword name
	value string
	line  int
	col   int
}

// tokenize runs the participle lexer over src and folds adjacent-keyword
// sequences, dropping comments and whitespace. It never fails: unknown
// runes surface as a synthetic error token so the parser can report a
// syntax error at that position instead of the tokenizer aborting.
func tokenize(src string) []token {
	lex, err := policyLexer.LexString("", src)
	if err != nil {
		return []token{{kind: "Error", value: err.Error(), line: 1, col: 1}}
	}
	var raw []token
	for {
		t, err := lex.Next()
		if err != nil {
			raw = append(raw, token{kind: "Error", value: err.Error(), line: t.Pos.Line, col: t.Pos.Column})
			break
		}
		if t.EOF() {
			break
		}
		raw = append(raw, token{kind: tokenKindName(t), value: t.Value, line: t.Pos.Line, col: t.Pos.Column})
	}
	return foldKeywords(filterTrivia(raw))
}

var symbolNames = func() map[lexer.TokenType]string {
	m := map[lexer.TokenType]string{}
	for name, tt := range policyLexer.Symbols() {
		m[tt] = name
	}
	return m
}()

func tokenKindName(t lexer.Token) string {
	if name, ok := symbolNames[t.Type]; ok {
		return name
	}
	return "Unknown"
}

func filterTrivia(in []token) []token {
	out := in[:0:0]
	for _, t := range in {
		if t.kind == "whitespace" || t.kind == "Newline" || t.kind == "Comment" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// foldKeywords merges "IS"+"NULL", "IS"+"NOT"+"NULL", "NOT"+"IN", and
// "NOT"+"LIKE" identifier pairs into single keyword tokens. Only words on
// the same source line are merged, so a pair split by a newline stays two
// separate identifier tokens.
func foldKeywords(in []token) []token {
	var out []token
	for i := 0; i < len(in); i++ {
		t := in[i]
		upper := strings.ToUpper(t.value)
		if t.kind == "Ident" && upper == "IS" && i+1 < len(in) && in[i+1].line == t.line {
			n := in[i+1]
			if n.kind == "Ident" && strings.ToUpper(n.value) == "NOT" && i+2 < len(in) && in[i+2].line == t.line {
				n2 := in[i+2]
				if n2.kind == "Ident" && strings.ToUpper(n2.value) == "NULL" {
					out = append(out, token{kind: "IsNotNull", value: "IS NOT NULL", line: t.line, col: t.col})
					i += 2
					continue
				}
			}
			if n.kind == "Ident" && strings.ToUpper(n.value) == "NULL" {
				out = append(out, token{kind: "IsNull", value: "IS NULL", line: t.line, col: t.col})
				i++
				continue
			}
		}
		if t.kind == "Ident" && upper == "NOT" && i+1 < len(in) && in[i+1].line == t.line {
			n := in[i+1]
			if n.kind == "Ident" && strings.ToUpper(n.value) == "IN" {
				out = append(out, token{kind: "NotIn", value: "NOT IN", line: t.line, col: t.col})
				i++
				continue
			}
			if n.kind == "Ident" && strings.ToUpper(n.value) == "LIKE" {
				out = append(out, token{kind: "NotLike", value: "NOT LIKE", line: t.line, col: t.col})
				i++
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
