// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"strconv"
)

// PageID identifies one real (non-redirect) article.
//
// IDs are assigned by the source dump and are stable across builds of the
// same dump.
type PageID uint32

// String returns the decimal form of the ID.
func (id PageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePageID parses a decimal page ID.
func ParsePageID(s string) (PageID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse page id %q: %w", s, err)
	}
	return PageID(v), nil
}

// Direction selects which of the two adjacency maps to use.
type Direction int

const (
	// Forward maps a page to the pages it links to.
	Forward Direction = iota

	// Reverse maps a page to the pages that link to it.
	Reverse
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// PathResult is the outcome of a shortest path query.
type PathResult struct {
	// Start is the source page of the query.
	Start PageID

	// End is the target page of the query.
	End PageID

	// Found is true when End is reachable from Start. A query with
	// Start == End is always found with a single-element path.
	Found bool

	// Path lists the pages from Start to End inclusive. Empty when not found.
	Path []PageID
}

// Hops returns the number of edges on the path, or -1 if no path was found.
func (r *PathResult) Hops() int {
	if !r.Found {
		return -1
	}
	return len(r.Path) - 1
}

// FurthestResult is the outcome of a single-source eccentricity query.
type FurthestResult struct {
	// Start is the page the traversal began at.
	Start PageID

	// Node is a page at maximal distance from Start. Among several pages at
	// that distance, the smallest PageID is reported.
	Node PageID

	// Distance is the number of edges from Start to Node.
	Distance int

	// Reached is the number of pages visited, Start included.
	Reached int
}

// DiameterResult is the outcome of the double-sweep diameter heuristic.
//
// The distance is a lower bound on the true diameter, not the diameter
// itself.
type DiameterResult struct {
	// Start and End are the endpoints of the longest shortest path seen.
	Start PageID
	End   PageID

	// Distance is the eccentricity of Start as measured by the best sweep.
	Distance int

	// Sweeps is the number of full BFS traversals that were run.
	Sweeps int

	// Seed is the node the first sweep started from.
	Seed PageID
}

// Stats summarizes the shape of an Adjacency.
type Stats struct {
	// Vertices counts every page that appears as a key or as a value.
	Vertices int `json:"vertices"`

	// Sources counts pages that have at least one outgoing edge.
	Sources int `json:"sources"`

	// Edges counts all directed edges.
	Edges int `json:"edges"`

	// MaxDegree is the largest out-degree and MaxDegreeNode a page with it.
	MaxDegree     int    `json:"max_degree"`
	MaxDegreeNode PageID `json:"max_degree_node"`
}
