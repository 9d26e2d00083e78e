// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"fmt"
	"slices"
)

// Schema selects the columns of one dump table.
//
// Column numbers are 0-based positions inside a VALUES tuple.
type Schema struct {
	// Table is the SQL table name, e.g. "page".
	Table string `yaml:"table"`

	// Columns are copied to the output in this order.
	Columns []int `yaml:"columns" validate:"required,min=2,dive,min=0"`

	// Namespaces must all hold "0" for a row to be kept.
	Namespaces []int `yaml:"namespaces" validate:"dive,min=0"`
}

// DefaultSchemas returns the column layouts of the MediaWiki tables.
//
//	page:      page_id, page_namespace, page_title, page_is_redirect, ...
//	redirect:  rd_from, rd_namespace, rd_title, ...
//	pagelinks: pl_from, pl_namespace, pl_title, pl_from_namespace
//
// Older dumps carry page_restrictions at position 3 and page_is_redirect
// at 4; override the page schema for those.
func DefaultSchemas() map[string]Schema {
	return map[string]Schema{
		"page":      {Table: "page", Columns: []int{0, 2, 3}, Namespaces: []int{1}},
		"redirect":  {Table: "redirect", Columns: []int{0, 2}, Namespaces: []int{1}},
		"pagelinks": {Table: "pagelinks", Columns: []int{0, 2}, Namespaces: []int{1, 3}},
	}
}

// Tables lists the dump tables in build order.
var Tables = []string{"page", "redirect", "pagelinks"}

// width returns the minimum tuple length the schema needs.
func (s Schema) width() int {
	w := 0
	for _, c := range s.Columns {
		w = max(w, c+1)
	}
	for _, c := range s.Namespaces {
		w = max(w, c+1)
	}
	return w
}

// Validate checks that the schema is usable.
func (s Schema) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("schema has no table name")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema for %s selects no columns", s.Table)
	}
	if slices.ContainsFunc(s.Columns, func(c int) bool { return c < 0 }) ||
		slices.ContainsFunc(s.Namespaces, func(c int) bool { return c < 0 }) {
		return fmt.Errorf("schema for %s has a negative column", s.Table)
	}
	return nil
}
