// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// Artifact file names inside the data directory.
const (
	TablesDir        = "tables"
	PageIndexFile    = "pages.tsv"
	ForwardGraphFile = "graph.bin"
	ReverseGraphFile = "graph_reverse.bin"
	TitleIndexDir    = "titles.badger"
)

// Page index backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Layout locates the inputs and artifacts of one graph.
type Layout struct {
	// DataDir holds tables and artifacts.
	DataDir string

	// DumpDir holds the *.sql.gz dumps. Empty disables extraction.
	DumpDir string
}

// Table returns the path of an extracted table.
func (l Layout) Table(table string) string {
	return filepath.Join(l.DataDir, TablesDir, table+".tsv")
}

// PageIndex returns the path of the page index file.
func (l Layout) PageIndex() string {
	return filepath.Join(l.DataDir, PageIndexFile)
}

// Graph returns the path of the adjacency file for dir.
func (l Layout) Graph(dir graph.Direction) string {
	if dir == graph.Reverse {
		return filepath.Join(l.DataDir, ReverseGraphFile)
	}
	return filepath.Join(l.DataDir, ForwardGraphFile)
}

// TitleIndex returns the path of the Badger page index.
func (l Layout) TitleIndex() string {
	return filepath.Join(l.DataDir, TitleIndexDir)
}

// Built reports whether the page index and both graphs exist.
func (l Layout) Built() bool {
	for _, p := range []string{l.PageIndex(), l.Graph(graph.Forward), l.Graph(graph.Reverse)} {
		if !exists(p) {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
