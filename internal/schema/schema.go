// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package schema holds the plain-data schema model the selector evaluator,
// proof encoder, and compiler all consume: SchemaMetadata, TableMetadata,
// ColumnInfo, and the out-of-core tag map backing Tagged(...) selectors.
package schema

import "strings"

// ColumnInfo is a single column's name and declared SQL type.
type ColumnInfo struct {
	Name string
	Type string
}

// TableMetadata is a table's qualified name and ordered column list.
type TableMetadata struct {
	Name    string
	Schema  string
	Columns []ColumnInfo
}

// HasColumn reports whether the table owns a column named name; if typ is
// non-empty, the column's type must also match case-insensitively.
func (t TableMetadata) HasColumn(name, typ string) bool {
	for _, c := range t.Columns {
		if c.Name != name {
			continue
		}
		if typ == "" {
			return true
		}
		return strings.EqualFold(c.Type, typ)
	}
	return false
}

// Column returns the column named name and whether it was found.
func (t TableMetadata) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// QualifiedName renders "<schema>.<name>".
func (t TableMetadata) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Metadata is the ordered list of tables known to the engine. Insertion
// order defines the canonical table ordering used by the selector
// evaluator and, downstream, the compiler's DDL emission order.
type Metadata struct {
	Tables []TableMetadata
}

// Table returns the table named name and whether it was found.
func (m Metadata) Table(name string) (TableMetadata, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableMetadata{}, false
}

// TagMap is an out-of-core tag source for the Tagged(...) selector: table
// name to the set of tags carried by that table. A nil TagMap behaves as
// the empty map — every Tagged selector
// then evaluates to the empty table set.
type TagMap map[string]map[string]struct{}

// HasTag reports whether table carries tag in m. A nil TagMap always
// returns false.
func (m TagMap) HasTag(table, tag string) bool {
	if m == nil {
		return false
	}
	tags, ok := m[table]
	if !ok {
		return false
	}
	_, ok = tags[tag]
	return ok
}
