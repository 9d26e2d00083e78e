// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the article link graph and the traversals run on it.
//
// The graph is a directed adjacency map from a page to the set of pages it
// links to. Two instances exist for every dataset: the forward graph
// (source → destinations) and the reverse graph (destination → sources).
// They are produced together by a LinkSet so that every forward edge has
// its mirror in the reverse graph.
//
// # Representation
//
// A frozen Adjacency is stored in compressed sparse row form: a sorted slice
// of page IDs, an offsets slice and a flat slice of target indices. This
// keeps tens of millions of edges in a few hundred megabytes and lets the
// traversals use a bitset instead of a hash set for visited nodes.
//
// # Thread Safety
//
// LinkSet is NOT safe for concurrent use; it is meant for the single-writer
// build phase. Adjacency is immutable and safe for concurrent reads.
//
// # Lifecycle
//
//  1. Create a LinkSet with NewLinkSet()
//  2. Insert edges with AddEdge()
//  3. Call Freeze() to obtain the forward and reverse Adjacency
//  4. Persist with Encode(), reload with Decode()
//  5. Query with ShortestPath(), Furthest(), EstimateDiameter()
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned by direct adjacency access when the page has
	// no entry at all in the adjacency map.
	ErrNodeNotFound = errors.New("node not found")

	// ErrLinkSetFrozen is returned when adding an edge after Freeze().
	ErrLinkSetFrozen = errors.New("link set is frozen and cannot be modified")

	// ErrEmptyGraph is returned by operations that need at least one node
	// with outgoing edges.
	ErrEmptyGraph = errors.New("graph has no nodes with outgoing edges")

	// ErrCorruptGraph is returned when a serialized graph fails validation.
	ErrCorruptGraph = errors.New("corrupt graph data")

	// ErrUnsupportedVersion is returned when a serialized graph was written
	// by an incompatible codec version.
	ErrUnsupportedVersion = errors.New("unsupported graph format version")
)
