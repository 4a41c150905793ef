// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

// Package selector evaluates a dsl.Selector against schema.Metadata to
// produce the ordered set of governed tables.
package selector

import (
	"github.com/rlsguard/rlsguard/internal/dsl"
	"github.com/rlsguard/rlsguard/internal/schema"
)

// Evaluate returns the ordered sublist of tables matching sel. Output order
// derives from meta's table order, which in turn becomes the compiler's
// DDL emission order.
func Evaluate(sel dsl.Selector, meta schema.Metadata, tags schema.TagMap) []schema.TableMetadata {
	switch s := sel.(type) {
	case dsl.AllSelector:
		out := make([]schema.TableMetadata, len(meta.Tables))
		copy(out, meta.Tables)
		return out
	case dsl.HasColumnSelector:
		return filter(meta, func(t schema.TableMetadata) bool {
			return t.HasColumn(s.Column, s.Type)
		})
	case dsl.InSchemaSelector:
		return filter(meta, func(t schema.TableMetadata) bool {
			return t.Schema == s.Schema
		})
	case dsl.NamedSelector:
		return filter(meta, func(t schema.TableMetadata) bool {
			return t.Name == s.Table
		})
	case dsl.TaggedSelector:
		return filter(meta, func(t schema.TableMetadata) bool {
			return tags.HasTag(t.Name, s.Tag)
		})
	case dsl.AndSelector:
		left := Evaluate(s.Left, meta, tags)
		right := Evaluate(s.Right, meta, tags)
		rightSet := tableSet(right)
		return filterList(left, func(t schema.TableMetadata) bool {
			_, ok := rightSet[t.Name]
			return ok
		})
	case dsl.OrSelector:
		left := Evaluate(s.Left, meta, tags)
		right := Evaluate(s.Right, meta, tags)
		seen := make(map[string]bool, len(left)+len(right))
		var out []schema.TableMetadata
		for _, t := range left {
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t)
			}
		}
		for _, t := range right {
			if !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t)
			}
		}
		return out
	default:
		return nil
	}
}

func filter(meta schema.Metadata, pred func(schema.TableMetadata) bool) []schema.TableMetadata {
	return filterList(meta.Tables, pred)
}

func filterList(tables []schema.TableMetadata, pred func(schema.TableMetadata) bool) []schema.TableMetadata {
	var out []schema.TableMetadata
	for _, t := range tables {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

func tableSet(tables []schema.TableMetadata) map[string]struct{} {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t.Name] = struct{}{}
	}
	return set
}
