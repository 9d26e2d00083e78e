// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// BuildResult contains the output of a successful build.
type BuildResult struct {
	// Forward maps each page to the pages it links to.
	Forward *graph.Adjacency

	// Reverse maps each page to the pages linking to it.
	Reverse *graph.Adjacency

	// Stats contains build statistics.
	Stats BuildStats
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// Pages is the number of real (non-redirect) pages indexed.
	Pages int `json:"pages"`

	// RedirectPages is the number of redirect pages in the page table.
	RedirectPages int `json:"redirect_pages"`

	// DuplicateTitles counts real pages whose raw title was already taken.
	// The later page wins the title.
	DuplicateTitles int `json:"duplicate_titles"`

	// RedirectsResolved is the number of redirects mapped to a real page.
	RedirectsResolved int `json:"redirects_resolved"`

	// RedirectsDangling counts redirects whose target is not a real page.
	RedirectsDangling int `json:"redirects_dangling"`

	// RedirectsOrphaned counts redirect rows whose id is not a redirect page.
	RedirectsOrphaned int `json:"redirects_orphaned"`

	// LinksScanned is the number of pagelinks rows read.
	LinksScanned int `json:"links_scanned"`

	// LinksUnknownSource counts links whose source is not a real page.
	LinksUnknownSource int `json:"links_unknown_source"`

	// LinksViaRedirect counts links resolved through a redirect.
	LinksViaRedirect int `json:"links_via_redirect"`

	// LinksBroken counts links whose target could not be resolved.
	LinksBroken int `json:"links_broken"`

	// Edges is the number of distinct edges in the forward graph.
	Edges int `json:"edges"`

	// MalformedRows counts rows skipped across all three tables.
	MalformedRows int `json:"malformed_rows"`

	// FilteredRows counts rows dropped by a non-zero namespace column.
	FilteredRows int `json:"filtered_rows"`

	// DurationMilli is the build time in milliseconds.
	DurationMilli int64 `json:"duration_ms"`
}
