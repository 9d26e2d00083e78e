// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pageindex

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// MemoryIndex holds the whole page index in maps.
//
// Thread Safety: Add must not run concurrently with anything else. Once
// loading is complete, all reads are safe for concurrent use.
type MemoryIndex struct {
	byTitle map[string]graph.PageID
	byID    map[graph.PageID]string

	foldMu sync.Mutex
	folded []foldedEntry
}

type foldedEntry struct {
	key string
	Entry
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byTitle: make(map[string]graph.PageID),
		byID:    make(map[graph.PageID]string),
	}
}

// LoadMemory reads an index file into a MemoryIndex.
//
// Description:
//
//	Duplicate display titles are possible when two raw titles decode to
//	the same text. The later entry wins the title lookup; both ids keep
//	their title. Each collision is logged at debug level and the total at
//	warn level.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	r - Index file contents.
//	logger - Diagnostics. Nil uses slog.Default().
func LoadMemory(ctx context.Context, r io.Reader, logger *slog.Logger) (*MemoryIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := NewMemoryIndex()
	collisions := 0
	err := Read(ctx, r, func(e Entry) error {
		if prev, replaced := m.Add(e); replaced {
			collisions++
			logger.Debug("duplicate display title",
				slog.String("title", e.Title),
				slog.Uint64("page_id", uint64(e.ID)),
				slog.Uint64("previous_page_id", uint64(prev)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load page index: %w", err)
	}
	if collisions > 0 {
		logger.Warn("page index has duplicate display titles", slog.Int("collisions", collisions))
	}
	return m, nil
}

// Add inserts e. If another page already had e.Title, that page's id is
// returned with replaced set.
func (m *MemoryIndex) Add(e Entry) (previous graph.PageID, replaced bool) {
	previous, replaced = m.byTitle[e.Title]
	replaced = replaced && previous != e.ID
	m.byTitle[e.Title] = e.ID
	m.byID[e.ID] = e.Title
	m.folded = nil
	return previous, replaced
}

// Lookup implements Index.
func (m *MemoryIndex) Lookup(_ context.Context, title string) (graph.PageID, error) {
	id, ok := m.byTitle[title]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return id, nil
}

// Title implements Index.
func (m *MemoryIndex) Title(_ context.Context, id graph.PageID) (string, error) {
	t, ok := m.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return t, nil
}

// Suggest implements Index.
//
// The first call sorts a case-folded copy of all titles.
func (m *MemoryIndex) Suggest(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.foldMu.Lock()
	if m.folded == nil {
		m.folded = m.buildFolded()
	}
	folded := m.folded
	m.foldMu.Unlock()

	key := foldKey(prefix)
	i, _ := slices.BinarySearchFunc(folded, key, func(f foldedEntry, k string) int {
		return strings.Compare(f.key, k)
	})

	var out []Entry
	for ; i < len(folded) && len(out) < limit; i++ {
		if !strings.HasPrefix(folded[i].key, key) {
			break
		}
		out = append(out, folded[i].Entry)
	}
	return out, nil
}

func (m *MemoryIndex) buildFolded() []foldedEntry {
	folded := make([]foldedEntry, 0, len(m.byID))
	for id, t := range m.byID {
		folded = append(folded, foldedEntry{key: foldKey(t), Entry: Entry{ID: id, Title: t}})
	}
	slices.SortFunc(folded, func(a, b foldedEntry) int {
		return cmp.Or(strings.Compare(a.key, b.key), cmp.Compare(a.ID, b.ID))
	})
	return folded
}

// Len implements Index.
func (m *MemoryIndex) Len() int {
	return len(m.byID)
}

// Entries returns all pages ordered by id.
func (m *MemoryIndex) Entries() []Entry {
	out := make([]Entry, 0, len(m.byID))
	for id, t := range m.byID {
		out = append(out, Entry{ID: id, Title: t})
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
