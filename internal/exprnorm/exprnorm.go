// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package exprnorm canonicalizes a database-returned USING expression for
// comparison against a compiler-produced expression. A regex fixpoint pass
// handles the common, deliberately-fuzzy normalizations (whitespace, cast
// suffixes, schema qualification, redundant parens); pganalyze/pg_query_go/v6
// backs a secondary fallback that compares the deparsed forms of both
// expressions. The deparse pass does not reorder operands, so expressions
// that differ only in commutative operand order still compare unequal.
package exprnorm

import (
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	castRe          = regexp.MustCompile(`::[a-zA-Z_][a-zA-Z0-9_]*(\([0-9]+\))?`)
)

// Normalize canonicalizes expr relative to schemaName, applying the
// rewrite rules until fixpoint. schemaName, when non-empty, is stripped as
// a schema qualification prefix (e.g. "public.foo" → "foo").
func Normalize(expr, schemaName string) string {
	prev := ""
	cur := expr
	for cur != prev {
		prev = cur
		cur = collapseWhitespace(cur)
		cur = stripCasts(cur)
		cur = stripSchemaQualification(cur, schemaName)
		cur = stripOuterParens(cur)
		cur = collapseWhitespace(cur)
	}
	return strings.TrimSpace(cur)
}

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// stripCasts removes `::type` and `::type(n)` casts, most commonly seen on
// string literals returned by the catalog (e.g. `'x'::text` → `'x'`).
func stripCasts(s string) string {
	return castRe.ReplaceAllString(s, "")
}

func stripSchemaQualification(s, schemaName string) string {
	if schemaName == "" {
		return s
	}
	prefix := schemaName + "."
	return strings.ReplaceAll(s, prefix, "")
}

// stripOuterParens removes one layer of outer parentheses when they wrap the
// whole expression (the opening paren's match is the final character), so
// "(a = f(x))" becomes "a = f(x)" while "(a) AND (b)" is left alone. Applied
// repeatedly by the fixpoint loop in Normalize, so nested wrappers unwind
// one layer per pass.
func stripOuterParens(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "(") || !strings.HasSuffix(trimmed, ")") {
		return trimmed
	}
	depth := 0
	for i, r := range trimmed {
		if r == '(' {
			depth++
		} else if r == ')' {
			depth--
		}
		if depth == 0 && i < len(trimmed)-1 {
			return trimmed
		}
	}
	return trimmed[1 : len(trimmed)-1]
}

// Equal reports whether two database expressions are equivalent after
// normalization. It first compares the regex-normalized forms (the
// required algorithm); if those differ, it falls back to a structural
// compare of the parsed `SELECT 1 WHERE <expr>` statements via pg_query_go
// (their deparsed text, which settles spacing and parenthesization but keeps
// operand order). Parse failures on either side fall back to the textual
// verdict — the structural check is strictly secondary, never a
// replacement for the regex algorithm.
func Equal(expectedExpr, observedExpr, schemaName string) bool {
	if Normalize(expectedExpr, schemaName) == Normalize(observedExpr, schemaName) {
		return true
	}
	return structurallyEqual(expectedExpr, observedExpr)
}

func structurallyEqual(a, b string) bool {
	ta, err := parseExprTree(a)
	if err != nil {
		return false
	}
	tb, err := parseExprTree(b)
	if err != nil {
		return false
	}
	return ta == tb
}

// parseExprTree parses expr as a standalone WHERE clause and returns a
// deparsed, reformatted form — comparing deparse output instead of the raw
// protobuf tree sidesteps position-info fields that differ even for
// identical expressions.
func parseExprTree(expr string) (string, error) {
	stmt := "SELECT 1 WHERE " + expr
	tree, err := pg_query.Parse(stmt)
	if err != nil {
		return "", err
	}
	return pg_query.Deparse(tree)
}
