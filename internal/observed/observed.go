// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package observed holds the plain-data shapes the catalog bridge
// (internal/introspect) returns: the database's actual RLS state, for
// comparison against internal/compiler's CompiledState by internal/drift.
package observed

// Policy is one policy as reported by the database catalog. Malformed or
// unrecognised Command values coerce to "UNKNOWN" rather than causing an
// ingest failure.
type Policy struct {
	Name       string
	Mode       string // "PERMISSIVE" or "RESTRICTIVE"
	Command    string // "SELECT", "INSERT", "UPDATE", "DELETE", "ALL", or "UNKNOWN"
	UsingExpr  string
	CheckExpr  string
}

// TableState is one table's observed RLS state.
type TableState struct {
	Table      string
	Schema     string
	RLSEnabled bool
	RLSForced  bool
	Policies   []Policy
}

// State is the ordered observed state for a set of inspected tables. Order
// is not semantically significant to the drift detector, which indexes by
// table name, but ingest preserves catalog query order for reproducible
// reports.
type State struct {
	Tables []TableState
}

// Table returns the observed state for table and whether it was found.
func (s State) Table(name string) (TableState, bool) {
	for _, t := range s.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableState{}, false
}

// Policy returns the observed policy named name on this table.
func (t TableState) Policy(name string) (Policy, bool) {
	for _, p := range t.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}

// KnownCommands is the set of command strings the catalog bridge is
// expected to report; anything else coerces to "UNKNOWN".
var KnownCommands = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "ALL": true,
}

// CoerceCommand normalizes an observed command string, coercing anything
// unrecognised to "UNKNOWN" instead of propagating malformed catalog data
// into the drift comparison.
func CoerceCommand(s string) string {
	if KnownCommands[s] {
		return s
	}
	return "UNKNOWN"
}
