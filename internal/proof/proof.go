// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package proof discharges the soundness query: for each
// (policy, governed table) pair, is the policy's predicate sufficient to
// prevent a row from leaking across tenants?
//
// No available SMT solver binding exists for this runtime (no z3, cvc5,
// yices, or pure-Go SAT/SMT package), so this package is the solver: a
// congruence-closure (union-find) core over equality atoms, extended with
// direct evaluation for the adversarial "tenant pinning" judgment described
// below. The decision procedure itself is written on the standard library;
// third-party packages are used only for the query ID (ulid) and error
// values (oops). See DESIGN.md.
package proof

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/schema"
)

// Status is a proof verdict.
type Status string

const (
	StatusProven        Status = "PROVEN"
	StatusCounterexample Status = "SAT"
	StatusUnknown       Status = "UNKNOWN"
)

// Result is the outcome of one (policy, table) proof query.
type Result struct {
	Policy         string
	Table          string
	Status         Status
	Counterexample string // populated when Status == StatusCounterexample
	QueryID        string // ulid, stable per query for debug traces
}

// Options configures a Context's resource budget.
type Options struct {
	// Timeout bounds the wall-clock cost of any single CheckSAT call. Zero
	// means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is used when Options.Timeout is zero.
const DefaultTimeout = 2 * time.Second

// Context is the scoped resource a proof query is acquired against,
// mirroring the "scoped acquisition, guaranteed release" shape
// PostgresStore.Create uses for its transaction: NewContext acquires,
// (*Context).Close releases on every exit path. There is no external
// process behind it — the congruence-closure solver needs no connection —
// but the shape is kept so callers always defer Close() the same way
// regardless of which proof backend is wired in.
type Context struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	closed  bool
}

// NewContext acquires a proof context scoped to ctx, bounded by
// opts.Timeout (or DefaultTimeout).
func NewContext(ctx context.Context, opts Options) (*Context, error) {
	if ctx == nil {
		return nil, oops.Code("PROOF_CONTEXT_INVALID").Errorf("nil context")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	return &Context{ctx: deadlineCtx, cancel: cancel, timeout: timeout}, nil
}

// Close releases the context. Safe to call multiple times.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	return nil
}

// Solver is the decision procedure bound to a Context.
type Solver struct {
	ctx *Context
}

// Solver returns the Solver bound to c.
func (c *Context) Solver() *Solver {
	return &Solver{ctx: c}
}

// Prove runs CheckSAT for every clause of policy against table and
// aggregates to one Result: PROVEN iff every clause is sound, SAT on the
// first unsound clause encountered (in the policy's clause order), UNKNOWN
// if the context's deadline expires mid-query.
func Prove(ctx context.Context, policy *dsl.Policy, table schema.TableMetadata, opts Options) (Result, error) {
	pc, err := NewContext(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	defer pc.Close()

	queryID := ulid.Make().String()
	solver := pc.Solver()

	if len(policy.Clauses) == 0 {
		return Result{
			Policy: policy.Name, Table: table.Name, QueryID: queryID,
			Status: StatusCounterexample, Counterexample: "policy has no clauses: predicate is always false, vacuously unsound for read access",
		}, nil
	}

	for _, clause := range policy.Clauses {
		select {
		case <-pc.ctx.Done():
			return Result{Policy: policy.Name, Table: table.Name, QueryID: queryID, Status: StatusUnknown}, nil
		default:
		}
		status, counterexample := solver.checkClause(clause)
		if status == StatusUnknown {
			return Result{Policy: policy.Name, Table: table.Name, QueryID: queryID, Status: StatusUnknown}, nil
		}
		if status == StatusCounterexample {
			return Result{
				Policy: policy.Name, Table: table.Name, QueryID: queryID,
				Status: StatusCounterexample, Counterexample: counterexample,
			}, nil
		}
	}
	return Result{Policy: policy.Name, Table: table.Name, QueryID: queryID, Status: StatusProven}, nil
}

// CheckSAT checks one clause against the solver's adversarial model. It
// honors the bound context's deadline, returning StatusUnknown on expiry —
// never an error.
func (s *Solver) CheckSAT(clause *dsl.Clause) (Status, string) {
	select {
	case <-s.ctx.ctx.Done():
		return StatusUnknown, ""
	default:
	}
	return s.checkClause(clause)
}

// checkClause judges a clause sound (UNSAT for the adversarial "row
// belongs to a different tenant" query) when, in at least one scope (the
// clause itself or, recursively, a traversal's inner clause), a
// congruence-closure pass over its equality atoms unifies some column-sort
// term with some Session(k) constant — i.e. some EQ chain forces a column
// at that scope to equal the caller's own session value, so no adversarial
// assignment can substitute another tenant's row. A clause only guarded by
// non-pinning comparators (!=, <, LIKE, ...) yields a synthesized
// counterexample.
func (s *Solver) checkClause(clause *dsl.Clause) (Status, string) {
	if isClauseSound(clause) {
		return StatusProven, ""
	}
	return StatusCounterexample, counterexampleFor(clause)
}

func isClauseSound(c *dsl.Clause) bool {
	uf := newUnionFind()
	sessionKeys := map[string]bool{}
	for _, a := range c.Atoms {
		b, ok := a.(*dsl.BinaryAtom)
		if !ok || b.Op != dsl.OpEQ {
			continue
		}
		lk, lok := termKey(b.Left)
		rk, rok := termKey(b.Right)
		if lok && rok {
			uf.union(lk, rk)
		}
		if sk, isSession := sessionKey(b.Left); isSession {
			sessionKeys[sk] = true
		}
		if sk, isSession := sessionKey(b.Right); isSession {
			sessionKeys[sk] = true
		}
	}
	for sk := range sessionKeys {
		root := uf.find(sk)
		for _, a := range c.Atoms {
			b, ok := a.(*dsl.BinaryAtom)
			if !ok || b.Op != dsl.OpEQ {
				continue
			}
			if ck, isCol := colKey(b.Left); isCol && uf.find(ck) == root {
				return true
			}
			if ck, isCol := colKey(b.Right); isCol && uf.find(ck) == root {
				return true
			}
		}
	}
	for _, a := range c.Atoms {
		if t, ok := a.(*dsl.TraversalAtom); ok {
			if isClauseSound(t.Inner) {
				return true
			}
		}
	}
	return false
}

func termKey(v dsl.ValueSource) (string, bool) {
	switch vv := v.(type) {
	case dsl.ColSource:
		return "col:" + vv.Name, true
	case dsl.SessionSource:
		return "session:" + vv.Key, true
	default:
		return "", false
	}
}

func colKey(v dsl.ValueSource) (string, bool) {
	if c, ok := v.(dsl.ColSource); ok {
		return "col:" + c.Name, true
	}
	return "", false
}

func sessionKey(v dsl.ValueSource) (string, bool) {
	if s, ok := v.(dsl.SessionSource); ok {
		return "session:" + s.Key, true
	}
	return "", false
}

func counterexampleFor(c *dsl.Clause) string {
	return fmt.Sprintf("clause %q admits a row whose tenant-bearing column is unconstrained by any session binding", renderClause(c))
}

func renderClause(c *dsl.Clause) string {
	parts := make([]string, len(c.Atoms))
	for i, a := range c.Atoms {
		parts[i] = a.String()
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " AND "
		}
		out += p
	}
	return out
}
