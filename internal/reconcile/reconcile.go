// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package reconcile maps drift.Report items to an ordered DDL sequence
// that transitions observed state toward expected state.
package reconcile

import (
	"fmt"

	"github.com/rlsguard/rlsguard/internal/compiler"
	"github.com/rlsguard/rlsguard/internal/drift"
)

// Reconcile returns the ordered DDL statements that resolve items against
// expected, preserving items' order.
func Reconcile(items []drift.Item, expected *compiler.CompiledState) []string {
	tablesByName := make(map[string]compiler.TableArtifacts, len(expected.Tables))
	for _, t := range expected.Tables {
		tablesByName[t.Table] = t
	}

	var ddl []string
	for _, item := range items {
		table, ok := tablesByName[item.Table]
		if !ok {
			continue
		}
		switch item.Kind {
		case drift.KindRlsDisabled:
			ddl = append(ddl, table.EnableRLS)
		case drift.KindRlsNotForced:
			ddl = append(ddl, table.ForceRLS)
		case drift.KindMissingPolicy:
			if sql, ok := policySQL(table, item.Policy); ok {
				ddl = append(ddl, sql)
			}
		case drift.KindModifiedPolicy:
			ddl = append(ddl, dropPolicyDDL(item.Policy, table))
			if sql, ok := policySQL(table, item.Policy); ok {
				ddl = append(ddl, sql)
			}
		case drift.KindExtraPolicy:
			ddl = append(ddl, dropPolicyDDL(item.Policy, table))
		}
	}
	return ddl
}

func policySQL(table compiler.TableArtifacts, name string) (string, bool) {
	for _, p := range table.Policies {
		if p.Name == name {
			return p.SQL, true
		}
	}
	return "", false
}

func dropPolicyDDL(name string, table compiler.TableArtifacts) string {
	return fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s.%s;", name, table.Schema, table.Table)
}
