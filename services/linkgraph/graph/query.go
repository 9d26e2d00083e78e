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
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// contextCheckInterval is how many dequeued nodes pass between ctx checks.
const contextCheckInterval = 4096

// bitset is a fixed-size visited set addressed by vertex index.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) test(i uint32) bool {
	return b[i>>6]&(1<<(i&63)) != 0
}

func (b bitset) set(i uint32) {
	b[i>>6] |= 1 << (i & 63)
}

// ShortestPath finds a minimum-edge path from start to end.
//
// Description:
//
//	Breadth-first search with a visited set and parent pointers. The search
//	stops as soon as end is discovered and the path is rebuilt by walking
//	the parents back to start. A page absent from the map is treated as
//	having no outgoing edges.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked periodically.
//	start - Source page.
//	end - Target page.
//
// Outputs:
//
//	*PathResult - Found is false with an empty Path when end is unreachable.
//	error - Non-nil only if ctx was cancelled mid-traversal.
func (a *Adjacency) ShortestPath(ctx context.Context, start, end PageID) (*PathResult, error) {
	ctx, span := startQuerySpan(ctx, "ShortestPath", start)
	defer span.End()
	began := time.Now()

	result := &PathResult{Start: start, End: end, Path: []PageID{}}

	if start == end {
		result.Found = true
		result.Path = []PageID{start}
		recordQueryMetrics(ctx, "shortest_path", time.Since(began), 1)
		return result, nil
	}

	si, ok := a.index(start)
	if !ok {
		recordQueryMetrics(ctx, "shortest_path", time.Since(began), 0)
		return result, nil
	}
	ei, ok := a.index(end)
	if !ok {
		recordQueryMetrics(ctx, "shortest_path", time.Since(began), 0)
		return result, nil
	}

	visited := newBitset(len(a.ids))
	visited.set(si)
	parent := make(map[uint32]uint32)
	queue := []uint32{si}

	for n := 0; len(queue) > 0; n++ {
		if n%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}

		curr := queue[0]
		queue = queue[1:]

		for _, next := range a.row(curr) {
			if visited.test(next) {
				continue
			}
			visited.set(next)
			parent[next] = curr

			if next == ei {
				result.Found = true
				result.Path = a.walkParents(parent, si, ei)
				span.SetAttributes(attribute.Int("graph.path_hops", len(result.Path)-1))
				recordQueryMetrics(ctx, "shortest_path", time.Since(began), len(result.Path))
				return result, nil
			}
			queue = append(queue, next)
		}
	}

	recordQueryMetrics(ctx, "shortest_path", time.Since(began), 0)
	return result, nil
}

// walkParents rebuilds the path si → ei from BFS parent pointers.
func (a *Adjacency) walkParents(parent map[uint32]uint32, si, ei uint32) []PageID {
	path := []PageID{a.ids[ei]}
	for v := ei; v != si; {
		v = parent[v]
		path = append(path, a.ids[v])
	}
	slices.Reverse(path)
	return path
}

// Furthest finds a page at maximal BFS distance from start.
//
// Description:
//
//	Runs a full breadth-first traversal of the component reachable from
//	start, one layer at a time. Distances are not stored per node: only the
//	visited set and the current and next frontier are held. The last
//	non-empty layer holds the furthest pages and the smallest PageID among
//	them is reported.
//
//	A page with no outgoing edges yields (start, 0).
//
// Inputs:
//
//	ctx - Context for cancellation. Checked periodically.
//	start - Source page.
//
// Outputs:
//
//	*FurthestResult - The furthest page and its distance.
//	error - Non-nil only if ctx was cancelled mid-traversal.
func (a *Adjacency) Furthest(ctx context.Context, start PageID) (*FurthestResult, error) {
	ctx, span := startQuerySpan(ctx, "Furthest", start)
	defer span.End()
	began := time.Now()

	result := &FurthestResult{Start: start, Node: start, Reached: 1}

	si, ok := a.index(start)
	if !ok {
		recordQueryMetrics(ctx, "furthest", time.Since(began), 1)
		return result, nil
	}

	visited := newBitset(len(a.ids))
	visited.set(si)
	current := []uint32{si}
	var next []uint32
	n := 0

	for {
		next = next[:0]
		for _, v := range current {
			if n%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					telemetry.RecordError(span, err)
					return nil, err
				}
			}
			n++

			for _, w := range a.row(v) {
				if visited.test(w) {
					continue
				}
				visited.set(w)
				next = append(next, w)
			}
		}
		if len(next) == 0 {
			break
		}
		result.Distance++
		result.Reached += len(next)
		current, next = next, current
	}

	// Indices are ordered like ids, so the smallest index is the smallest id.
	result.Node = a.ids[slices.Min(current)]

	span.SetAttributes(
		attribute.Int("graph.distance", result.Distance),
		attribute.Int("graph.reached", result.Reached),
	)
	recordQueryMetrics(ctx, "furthest", time.Since(began), result.Reached)
	return result, nil
}
