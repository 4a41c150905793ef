// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RLSGuard Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/rlsguard/rlsguard/internal/schema"
	"github.com/rlsguard/rlsguard/internal/xdg"
)

// defaultSchemaPath is the --schema flag's fallback: a schema introspection
// file cached under the user's XDG config directory, so a developer who's
// already run a live introspection once doesn't have to pass --schema on
// every subsequent compile/analyze/apply/monitor invocation.
func defaultSchemaPath() string {
	return filepath.Join(xdg.ConfigDir(), "schema.json")
}

// schemaFile is the on-disk JSON shape accepted by --schema: the
// introspection tuples named in the external-interfaces contract, captured
// ahead of time for proof/compile runs that don't need a live connection.
type schemaFile struct {
	SchemaName string              `json:"schemaName"`
	Tables     []schemaFileTable   `json:"tables"`
	Tags       map[string][]string `json:"tags,omitempty"`
}

type schemaFileTable struct {
	Name    string             `json:"name"`
	Columns []schemaFileColumn `json:"columns"`
}

type schemaFileColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// loadSchemaFile reads path and converts it to a schema.Metadata plus
// schema.TagMap pair ready for selector evaluation, proof, and compilation.
func loadSchemaFile(path string) (schema.Metadata, schema.TagMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.Metadata{}, nil, oops.Code("SCHEMA_FILE_READ_FAILED").With("path", path).Wrap(err)
	}

	var sf schemaFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return schema.Metadata{}, nil, oops.Code("SCHEMA_FILE_PARSE_FAILED").With("path", path).Wrap(err)
	}
	if sf.SchemaName == "" {
		sf.SchemaName = "public"
	}

	meta := schema.Metadata{}
	for _, t := range sf.Tables {
		tm := schema.TableMetadata{Name: t.Name, Schema: sf.SchemaName}
		for _, c := range t.Columns {
			tm.Columns = append(tm.Columns, schema.ColumnInfo{Name: c.Name, Type: c.Type})
		}
		meta.Tables = append(meta.Tables, tm)
	}

	tags := schema.TagMap{}
	for table, tagList := range sf.Tags {
		set := make(map[string]struct{}, len(tagList))
		for _, tag := range tagList {
			set[tag] = struct{}{}
		}
		tags[table] = set
	}

	return meta, tags, nil
}

func readPolicyFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading policy file %s: %w", path, err)
	}
	return string(raw), nil
}
