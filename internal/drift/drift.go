// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package drift compares a compiler.CompiledState against an
// observed.State and reports deviations.
package drift

import (
	"github.com/rlsguard/rlsguard/internal/compiler"
	"github.com/rlsguard/rlsguard/internal/exprnorm"
	"github.com/rlsguard/rlsguard/internal/observed"
)

// Severity classifies how serious a drift item is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityWarning  Severity = "WARNING"
)

// Kind tags the variant of a drift item.
type Kind string

const (
	KindRlsDisabled    Kind = "RlsDisabled"
	KindRlsNotForced   Kind = "RlsNotForced"
	KindMissingPolicy  Kind = "MissingPolicy"
	KindModifiedPolicy Kind = "ModifiedPolicy"
	KindExtraPolicy    Kind = "ExtraPolicy"
)

// Item is one detected deviation between expected and observed state.
type Item struct {
	Kind          Kind
	Severity      Severity
	Table         string
	Policy        string // empty for table-level items
	ExpectedExpr  string // populated for ModifiedPolicy
	ObservedExpr  string // populated for ModifiedPolicy
}

// Report is the ordered list of drift items for one (expected, observed)
// comparison.
type Report struct {
	Items []Item
}

// Detect compares expected against observed and returns every deviation,
// per-table, per-policy.
func Detect(expected *compiler.CompiledState, obs observed.State) Report {
	var items []Item
	for _, table := range expected.Tables {
		observedTable, found := obs.Table(table.Table)
		if !found {
			items = append(items, Item{Kind: KindRlsDisabled, Severity: SeverityCritical, Table: table.Table})
			for _, p := range table.Policies {
				items = append(items, Item{Kind: KindMissingPolicy, Severity: SeverityCritical, Table: table.Table, Policy: p.Name})
			}
			continue
		}
		if !observedTable.RLSEnabled {
			items = append(items, Item{Kind: KindRlsDisabled, Severity: SeverityCritical, Table: table.Table})
		}
		if !observedTable.RLSForced {
			items = append(items, Item{Kind: KindRlsNotForced, Severity: SeverityHigh, Table: table.Table})
		}
		expectedNames := make(map[string]bool, len(table.Policies))
		for _, p := range table.Policies {
			expectedNames[p.Name] = true
			observedPolicy, found := observedTable.Policy(p.Name)
			if !found {
				items = append(items, Item{Kind: KindMissingPolicy, Severity: SeverityCritical, Table: table.Table, Policy: p.Name})
				continue
			}
			expectedExpr := extractUsingExpr(p.SQL)
			if !exprnorm.Equal(expectedExpr, observedPolicy.UsingExpr, table.Schema) {
				items = append(items, Item{
					Kind: KindModifiedPolicy, Severity: SeverityCritical, Table: table.Table, Policy: p.Name,
					ExpectedExpr: expectedExpr, ObservedExpr: observedPolicy.UsingExpr,
				})
			}
		}
		for _, op := range observedTable.Policies {
			if !expectedNames[op.Name] {
				items = append(items, Item{Kind: KindExtraPolicy, Severity: SeverityWarning, Table: table.Table, Policy: op.Name})
			}
		}
	}
	return Report{Items: items}
}

// extractUsingExpr pulls the expression between "USING (" and the final
// ");" out of a compiled CREATE POLICY statement. It matches greedily to
// end-of-string and trims, rather than anchoring on a specific trailing
// sequence — this keeps things resolved so the
// extraction doesn't assume a trailing ';' is always present.
func extractUsingExpr(sql string) string {
	const marker = "USING ("
	idx := lastIndex(sql, marker)
	if idx < 0 {
		return ""
	}
	rest := trimRight(sql[idx+len(marker):])
	for _, suffix := range []string{");", ")"} {
		if len(rest) >= len(suffix) && rest[len(rest)-len(suffix):] == suffix {
			return trimRight(rest[:len(rest)-len(suffix)])
		}
	}
	return rest
}

func lastIndex(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func trimRight(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\n' || s[i-1] == '\t') {
		i--
	}
	return s[:i]
}
