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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// Entry is one real page.
type Entry struct {
	ID    graph.PageID `json:"id"`
	Title string       `json:"title"`
}

// Index resolves display titles to page ids and back.
//
// Thread Safety: Implementations are safe for concurrent reads.
type Index interface {
	// Lookup returns the id of the page with exactly this display title.
	// Returns ErrNotFound if there is none.
	Lookup(ctx context.Context, title string) (graph.PageID, error)

	// Title returns the display title of id. Returns ErrNotFound if id is
	// not a real page.
	Title(ctx context.Context, id graph.PageID) (string, error)

	// Suggest returns up to limit pages whose title starts with prefix,
	// ignoring case, ordered by title.
	Suggest(ctx context.Context, prefix string, limit int) ([]Entry, error)

	// Len returns the number of pages.
	Len() int
}

// sanitizer keeps decoded titles on one index line.
var sanitizer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// Writer writes the page index file.
//
// Thread Safety: NOT safe for concurrent use.
type Writer struct {
	w *bufio.Writer
	n int
}

// NewWriter creates a Writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 256*1024)}
}

// Write appends one page. Tabs and line breaks in title become spaces so
// the line format stays intact.
func (w *Writer) Write(id graph.PageID, title string) error {
	w.n++
	if _, err := fmt.Fprintf(w.w, "%d\t%s\n", id, sanitizer.Replace(title)); err != nil {
		return fmt.Errorf("write page index: %w", err)
	}
	return nil
}

// Count returns the number of pages written.
func (w *Writer) Count() int {
	return w.n
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush page index: %w", err)
	}
	return nil
}

// Read parses an index file and calls fn for every entry.
//
// Outputs:
//
//	error - ErrCorruptIndex for a malformed line, fn's error, or a read error.
func Read(ctx context.Context, r io.Reader, fn func(Entry) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte

	line := 0
	for {
		var err error
		buf, err = readLine(br, buf[:0])
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return fmt.Errorf("read page index: %w", err)
		}
		if eof && len(buf) == 0 {
			return nil
		}

		line++
		if line%(1<<16) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if text := strings.TrimRight(string(buf), "\n"); text != "" {
			idText, title, ok := strings.Cut(text, "\t")
			if !ok {
				return fmt.Errorf("%w: line %d has no tab", ErrCorruptIndex, line)
			}
			id, err := graph.ParsePageID(idText)
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrCorruptIndex, line, err)
			}
			if err := fn(Entry{ID: id, Title: title}); err != nil {
				return err
			}
		}
		if eof {
			return nil
		}
	}
}

// readLine appends the next line, including its newline, to buf.
// It returns io.EOF together with the final unterminated line.
func readLine(br *bufio.Reader, buf []byte) ([]byte, error) {
	for {
		chunk, err := br.ReadSlice('\n')
		buf = append(buf, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return buf, err
		}
	}
}

// foldKey is the key used for case-insensitive prefix matching.
func foldKey(s string) string {
	return strings.ToLower(s)
}
