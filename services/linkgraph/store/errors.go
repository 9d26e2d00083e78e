// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store owns the on-disk artifacts of a link graph.
//
// A data directory holds the extracted tables and the build output:
//
//	<data>/tables/page.tsv          extracted page table
//	<data>/tables/redirect.tsv      extracted redirect table
//	<data>/tables/pagelinks.tsv     extracted pagelinks table
//	<data>/pages.tsv                page index (id \t display title)
//	<data>/graph.bin                forward adjacency
//	<data>/graph_reverse.bin        reverse adjacency
//	<data>/titles.badger/           optional Badger copy of the page index
//
// Build produces them; Store loads them read-only and lazily, one
// direction at a time.
package store

import "errors"

var (
	// ErrMissingTable is returned when a table is neither extracted nor
	// extractable because no dump directory is configured.
	ErrMissingTable = errors.New("missing extracted table")

	// ErrNotBuilt is returned when a query needs an artifact that has not
	// been built.
	ErrNotBuilt = errors.New("link graph has not been built")

	// ErrUnknownBackend is returned for an unsupported page index backend.
	ErrUnknownBackend = errors.New("unknown page index backend")

	// ErrClosed is returned by a Store after Close.
	ErrClosed = errors.New("store is closed")
)
