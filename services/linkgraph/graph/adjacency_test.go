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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	t.Run("collapses duplicates and sorts", func(t *testing.T) {
		a := FromMap(map[PageID][]PageID{
			1: {3, 2, 3, 2},
			2: {1},
		})

		got, err := a.Neighbors(1)
		require.NoError(t, err)
		assert.Equal(t, []PageID{2, 3}, got)
		assert.Equal(t, 3, a.EdgeCount())
		assert.Equal(t, 3, a.VertexCount())
		assert.Equal(t, 2, a.SourceCount())
	})

	t.Run("keeps self loops", func(t *testing.T) {
		a := FromMap(map[PageID][]PageID{7: {7}})
		assert.True(t, a.HasEdge(7, 7))
		assert.Equal(t, 1, a.Degree(7))
	})

	t.Run("empty value gets no entry", func(t *testing.T) {
		a := FromMap(map[PageID][]PageID{1: {}, 2: {3}})
		assert.False(t, a.Has(1))
		assert.True(t, a.Has(2))
		assert.Equal(t, 2, a.VertexCount())
	})

	t.Run("nil map", func(t *testing.T) {
		a := FromMap(nil)
		assert.Equal(t, 0, a.VertexCount())
		assert.Equal(t, 0, a.EdgeCount())
		assert.Empty(t, a.Sources())
	})
}

func TestAdjacency_Neighbors(t *testing.T) {
	a := FromMap(map[PageID][]PageID{1: {2}})

	t.Run("absent id fails loudly", func(t *testing.T) {
		_, err := a.Neighbors(99)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("value-only id has no entry", func(t *testing.T) {
		_, err := a.Neighbors(2)
		assert.ErrorIs(t, err, ErrNodeNotFound)
		assert.Equal(t, 0, a.Degree(2))
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		got, err := a.Neighbors(1)
		require.NoError(t, err)
		got[0] = 42

		again, err := a.Neighbors(1)
		require.NoError(t, err)
		assert.Equal(t, []PageID{2}, again)
	})
}

func TestAdjacency_HasEdge(t *testing.T) {
	a := FromMap(map[PageID][]PageID{1: {2, 5}, 5: {1}})

	assert.True(t, a.HasEdge(1, 2))
	assert.True(t, a.HasEdge(1, 5))
	assert.True(t, a.HasEdge(5, 1))
	assert.False(t, a.HasEdge(2, 1))
	assert.False(t, a.HasEdge(1, 1))
	assert.False(t, a.HasEdge(9, 1))
}

func TestAdjacency_ToMapRoundTrip(t *testing.T) {
	in := map[PageID][]PageID{
		10: {20, 30},
		20: {30},
		30: {10},
		40: {40},
	}
	a := FromMap(in)
	assert.Equal(t, in, a.ToMap())
	assert.Equal(t, []PageID{10, 20, 30, 40}, a.Sources())
}

func TestAdjacency_Entries_StopsEarly(t *testing.T) {
	a := FromMap(map[PageID][]PageID{1: {2}, 2: {3}, 3: {1}})

	var seen []PageID
	for from := range a.Entries() {
		seen = append(seen, from)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []PageID{1, 2}, seen)
}

func TestAdjacency_Stats(t *testing.T) {
	a := FromMap(map[PageID][]PageID{
		1: {2, 3, 4},
		2: {3},
		5: {1, 2},
	})

	s := a.Stats()
	assert.Equal(t, 5, s.Vertices)
	assert.Equal(t, 3, s.Sources)
	assert.Equal(t, 6, s.Edges)
	assert.Equal(t, 3, s.MaxDegree)
	assert.Equal(t, PageID(1), s.MaxDegreeNode)
}

func TestNewAdjacency_Validation(t *testing.T) {
	tests := []struct {
		name    string
		ids     []PageID
		offsets []uint64
		targets []uint32
		wantErr bool
	}{
		{"empty", nil, []uint64{0}, nil, false},
		{"valid", []PageID{1, 2}, []uint64{0, 1, 1}, []uint32{1}, false},
		{"offsets length", []PageID{1, 2}, []uint64{0, 1}, []uint32{1}, true},
		{"ids unsorted", []PageID{2, 1}, []uint64{0, 1, 1}, []uint32{1}, true},
		{"ids duplicated", []PageID{1, 1}, []uint64{0, 1, 1}, []uint32{1}, true},
		{"offsets decrease", []PageID{1, 2, 3}, []uint64{0, 2, 1, 2}, []uint32{1, 2}, true},
		{"last offset short", []PageID{1, 2}, []uint64{0, 1, 1}, []uint32{1, 0}, true},
		{"target out of range", []PageID{1, 2}, []uint64{0, 1, 1}, []uint32{5}, true},
		{"offset past targets", []PageID{1, 2}, []uint64{0, 5, 2}, []uint32{0, 1}, true},
		{"row unsorted", []PageID{1, 2, 3}, []uint64{0, 2, 2, 2}, []uint32{2, 1}, true},
		{"row duplicated", []PageID{1, 2}, []uint64{0, 2, 2}, []uint32{1, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAdjacency(tt.ids, tt.offsets, tt.targets)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptGraph)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
