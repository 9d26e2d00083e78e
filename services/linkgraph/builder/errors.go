// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package builder turns the page, redirect and pagelinks tables into the
// forward and reverse link graphs and the page index.
//
// # Algorithm
//
// Each table is scanned exactly once, in order:
//
//  1. Pages: real pages get their title decoded and written to the page
//     index, and their raw title is remembered as a join key. Redirect pages
//     only remember their raw title.
//  2. Redirects: a redirect whose target is a real page maps the redirect's
//     raw title to that page. Dangling redirects are dropped silently.
//  3. Pagelinks: a link from a real page to a title that is a real page,
//     directly or through one redirect hop, becomes an edge in both graphs.
//     Anything else is dropped silently.
//
// Redirect chains are NOT followed: a redirect pointing at another redirect
// is dangling.
//
// # Failure
//
// Malformed rows are skipped and counted. A title with a corrupt escape
// sequence aborts the whole build, as does a read error or cancellation.
//
// # Thread Safety
//
// Builder is safe for concurrent use; each Build call has its own state.
package builder

import "errors"

var (
	// ErrMissingSource is returned when one of the three table readers is nil.
	ErrMissingSource = errors.New("missing table source")

	// ErrNilPageIndex is returned when no page index writer is given.
	ErrNilPageIndex = errors.New("page index writer must not be nil")
)
