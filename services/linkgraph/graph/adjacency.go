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
	"slices"
)

// Adjacency is an immutable directed adjacency map from PageID to a set of
// PageID, stored in compressed sparse row form.
//
// Description:
//
//	ids holds every vertex (every page appearing as a key or a value) in
//	ascending order; a vertex is addressed internally by its position in
//	ids. The out-neighbors of vertex i are targets[offsets[i]:offsets[i+1]],
//	sorted ascending and free of duplicates. A page "has an entry" in the
//	map exactly when its out-degree is non-zero.
//
// Thread Safety: Safe for concurrent reads. There are no mutating methods.
type Adjacency struct {
	ids     []PageID
	offsets []uint64
	targets []uint32

	// sources lists the vertex indices with at least one outgoing edge.
	sources []uint32
}

// FromMap builds an Adjacency from a plain map.
//
// Description:
//
//	Values are treated as sets: duplicates are collapsed and order is
//	discarded. Keys mapped to an empty slice get no entry. Self-loops are
//	kept.
//
// Inputs:
//
//	m - Adjacency map. Not retained or modified.
//
// Outputs:
//
//	*Adjacency - The frozen adjacency. Never nil.
func FromMap(m map[PageID][]PageID) *Adjacency {
	seen := make(map[PageID]struct{}, len(m))
	for from, tos := range m {
		if len(tos) == 0 {
			continue
		}
		seen[from] = struct{}{}
		for _, to := range tos {
			seen[to] = struct{}{}
		}
	}

	ids := make([]PageID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	a := &Adjacency{
		ids:     ids,
		offsets: make([]uint64, len(ids)+1),
	}

	row := make([]uint32, 0, 16)
	for i, id := range ids {
		row = row[:0]
		for _, to := range m[id] {
			idx, _ := a.index(to)
			row = append(row, idx)
		}
		slices.Sort(row)
		row = slices.Compact(row)
		a.targets = append(a.targets, row...)
		a.offsets[i+1] = uint64(len(a.targets))
		if len(row) > 0 {
			a.sources = append(a.sources, uint32(i))
		}
	}

	return a
}

// newAdjacency assembles an Adjacency from raw CSR arrays and validates it.
func newAdjacency(ids []PageID, offsets []uint64, targets []uint32) (*Adjacency, error) {
	if len(offsets) != len(ids)+1 {
		return nil, fmt.Errorf("%w: %d offsets for %d vertices", ErrCorruptGraph, len(offsets), len(ids))
	}
	if offsets[0] != 0 || offsets[len(ids)] != uint64(len(targets)) {
		return nil, fmt.Errorf("%w: offsets do not span %d targets", ErrCorruptGraph, len(targets))
	}

	a := &Adjacency{ids: ids, offsets: offsets, targets: targets}
	for i := range ids {
		if i > 0 && ids[i] <= ids[i-1] {
			return nil, fmt.Errorf("%w: vertex ids not strictly increasing at %d", ErrCorruptGraph, i)
		}
		lo, hi := offsets[i], offsets[i+1]
		if hi < lo {
			return nil, fmt.Errorf("%w: offsets decrease at vertex %d", ErrCorruptGraph, i)
		}
		if hi > uint64(len(targets)) {
			return nil, fmt.Errorf("%w: offset %d of vertex %d past %d targets", ErrCorruptGraph, hi, i, len(targets))
		}
		for j := lo; j < hi; j++ {
			if int(targets[j]) >= len(ids) {
				return nil, fmt.Errorf("%w: target index %d out of range", ErrCorruptGraph, targets[j])
			}
			if j > lo && targets[j] <= targets[j-1] {
				return nil, fmt.Errorf("%w: neighbors of vertex %d not a sorted set", ErrCorruptGraph, ids[i])
			}
		}
		if hi > lo {
			a.sources = append(a.sources, uint32(i))
		}
	}
	return a, nil
}

// index returns the vertex index of id.
func (a *Adjacency) index(id PageID) (uint32, bool) {
	i, ok := slices.BinarySearch(a.ids, id)
	return uint32(i), ok
}

// row returns the neighbor indices of vertex i.
func (a *Adjacency) row(i uint32) []uint32 {
	return a.targets[a.offsets[i]:a.offsets[i+1]]
}

// Has reports whether id has an entry, i.e. at least one outgoing edge.
func (a *Adjacency) Has(id PageID) bool {
	i, ok := a.index(id)
	return ok && a.offsets[i+1] > a.offsets[i]
}

// HasEdge reports whether the edge from → to exists.
func (a *Adjacency) HasEdge(from, to PageID) bool {
	i, ok := a.index(from)
	if !ok {
		return false
	}
	j, ok := a.index(to)
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(a.row(i), j)
	return found
}

// Degree returns the out-degree of id, 0 if id has no entry.
func (a *Adjacency) Degree(id PageID) int {
	i, ok := a.index(id)
	if !ok {
		return 0
	}
	return int(a.offsets[i+1] - a.offsets[i])
}

// Neighbors returns the out-neighbors of id in ascending order.
//
// Description:
//
//	This is the direct, dictionary-style access to a node's edge set and
//	it fails loudly: an id with no entry in the map returns
//	ErrNodeNotFound instead of an empty slice.
//
// Outputs:
//
//	[]PageID - Freshly allocated neighbor list. Safe to modify.
//	error - ErrNodeNotFound if id has no entry.
func (a *Adjacency) Neighbors(id PageID) ([]PageID, error) {
	i, ok := a.index(id)
	if !ok || a.offsets[i+1] == a.offsets[i] {
		return nil, fmt.Errorf("%w: page %d", ErrNodeNotFound, id)
	}
	row := a.row(i)
	out := make([]PageID, len(row))
	for k, t := range row {
		out[k] = a.ids[t]
	}
	return out, nil
}

// VertexCount returns the number of pages appearing as a key or a value.
func (a *Adjacency) VertexCount() int {
	return len(a.ids)
}

// SourceCount returns the number of pages with at least one outgoing edge.
func (a *Adjacency) SourceCount() int {
	return len(a.sources)
}

// EdgeCount returns the number of directed edges.
func (a *Adjacency) EdgeCount() int {
	return len(a.targets)
}

// Sources returns the pages with at least one outgoing edge, ascending.
func (a *Adjacency) Sources() []PageID {
	out := make([]PageID, len(a.sources))
	for k, i := range a.sources {
		out[k] = a.ids[i]
	}
	return out
}

// Entries iterates over every entry in ascending page order.
//
// The yielded slice is freshly allocated per entry.
func (a *Adjacency) Entries() func(yield func(PageID, []PageID) bool) {
	return func(yield func(PageID, []PageID) bool) {
		for _, i := range a.sources {
			row := a.row(i)
			tos := make([]PageID, len(row))
			for k, t := range row {
				tos[k] = a.ids[t]
			}
			if !yield(a.ids[i], tos) {
				return
			}
		}
	}
}

// ToMap expands the adjacency back into a plain map.
//
// Intended for tests and small graphs; it allocates one slice per entry.
func (a *Adjacency) ToMap() map[PageID][]PageID {
	m := make(map[PageID][]PageID, len(a.sources))
	for from, tos := range a.Entries() {
		m[from] = tos
	}
	return m
}

// Stats computes summary statistics in a single pass over the offsets.
func (a *Adjacency) Stats() Stats {
	s := Stats{
		Vertices: len(a.ids),
		Sources:  len(a.sources),
		Edges:    len(a.targets),
	}
	for _, i := range a.sources {
		d := int(a.offsets[i+1] - a.offsets[i])
		if d > s.MaxDegree {
			s.MaxDegree = d
			s.MaxDegreeNode = a.ids[i]
		}
	}
	return s
}
