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

// LinkSet accumulates directed edges for the forward and reverse graphs in
// lockstep.
//
// Every AddEdge call records the edge in both directions, so the two frozen
// adjacency maps are mirrors of each other by construction. Duplicate
// insertions are collapsed at Freeze time.
//
// Thread Safety: NOT safe for concurrent use.
type LinkSet struct {
	forward map[PageID][]PageID
	reverse map[PageID][]PageID
	added   int
	frozen  bool
}

// NewLinkSet creates an empty LinkSet.
func NewLinkSet() *LinkSet {
	return &LinkSet{
		forward: make(map[PageID][]PageID),
		reverse: make(map[PageID][]PageID),
	}
}

// AddEdge inserts from → to into the forward map and to → from into the
// reverse map.
//
// Outputs:
//
//	error - ErrLinkSetFrozen if Freeze() was already called.
func (s *LinkSet) AddEdge(from, to PageID) error {
	if s.frozen {
		return ErrLinkSetFrozen
	}
	s.forward[from] = append(s.forward[from], to)
	s.reverse[to] = append(s.reverse[to], from)
	s.added++
	return nil
}

// Added returns the number of AddEdge calls that succeeded, duplicates
// included.
func (s *LinkSet) Added() int {
	return s.added
}

// Freeze converts the accumulated edges into immutable adjacency maps.
//
// The LinkSet releases its maps and rejects further edges.
func (s *LinkSet) Freeze() (forward, reverse *Adjacency) {
	forward = FromMap(s.forward)
	s.forward = nil
	reverse = FromMap(s.reverse)
	s.reverse = nil
	s.frozen = true
	return forward, reverse
}
