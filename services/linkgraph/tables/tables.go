// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tables reads the three flat, tab-separated tables produced by the
// extractor.
//
// # Formats
//
//	page:      id \t raw_title \t is_redirect [\t namespace]
//	redirect:  id \t raw_target_title [\t namespace]
//	pagelinks: source_id \t raw_target_title [\t namespace]
//
// The trailing namespace column is optional. When present and not "0" the
// row is filtered out. Rows that do not match their format are skipped and
// reported as *MalformedRowError to the logger; they never abort a scan.
//
// # Thread Safety
//
// The Scan functions are stateless and safe to call concurrently on
// different readers.
package tables

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// Table names used in diagnostics.
const (
	TablePage      = "page"
	TableRedirect  = "redirect"
	TablePagelinks = "pagelinks"
)

const (
	// DefaultMaxDiagnostics is how many malformed rows are logged
	// individually per scan before only counting continues.
	DefaultMaxDiagnostics = 20

	// maxLineBytes bounds one row. Titles are at most 255 bytes, so this
	// only trips on garbage. Longer rows are skipped as malformed.
	maxLineBytes = 1 << 20

	// ctxCheckLines is how many lines pass between context checks.
	ctxCheckLines = 1 << 16
)

// PageRow is one row of the page table.
type PageRow struct {
	ID         graph.PageID
	RawTitle   string
	IsRedirect bool
}

// RedirectRow is one row of the redirect table.
type RedirectRow struct {
	ID        graph.PageID
	RawTarget string
}

// LinkRow is one row of the pagelinks table.
type LinkRow struct {
	From      graph.PageID
	RawTarget string
}

// ScanStats counts what a scan saw.
type ScanStats struct {
	// Lines is the number of non-empty lines read.
	Lines int

	// Rows is the number of rows handed to the callback.
	Rows int

	// Malformed is the number of rows skipped as malformed.
	Malformed int

	// Filtered is the number of rows dropped by the namespace column.
	Filtered int
}

// Options configures a scan.
type Options struct {
	// Logger receives malformed row diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// MaxDiagnostics caps individually logged malformed rows.
	MaxDiagnostics int
}

// Option is a functional option for the Scan functions.
type Option func(*Options)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMaxDiagnostics caps how many malformed rows are logged one by one.
func WithMaxDiagnostics(n int) Option {
	return func(o *Options) {
		o.MaxDiagnostics = n
	}
}

func applyOptions(opts []Option) Options {
	o := Options{MaxDiagnostics: DefaultMaxDiagnostics}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ScanPages reads the page table and calls fn for every accepted row.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked periodically.
//	r - The table contents.
//	fn - Row callback. A non-nil error aborts the scan and is returned.
//
// Outputs:
//
//	ScanStats - Counts for the lines read so far.
//	error - Read errors, ctx errors or the callback's error.
func ScanPages(ctx context.Context, r io.Reader, fn func(PageRow) error, opts ...Option) (ScanStats, error) {
	return scan(ctx, r, TablePage, 3, applyOptions(opts), func(fields []string) (string, error) {
		id, err := graph.ParsePageID(fields[0])
		if err != nil {
			return "bad page id " + quote(fields[0]), nil
		}
		var redirect bool
		switch fields[2] {
		case "0":
		case "1":
			redirect = true
		default:
			return "bad redirect flag " + quote(fields[2]), nil
		}
		if fields[1] == "" {
			return "empty title", nil
		}
		return "", fn(PageRow{ID: id, RawTitle: fields[1], IsRedirect: redirect})
	})
}

// ScanRedirects reads the redirect table and calls fn for every accepted row.
func ScanRedirects(ctx context.Context, r io.Reader, fn func(RedirectRow) error, opts ...Option) (ScanStats, error) {
	return scan(ctx, r, TableRedirect, 2, applyOptions(opts), func(fields []string) (string, error) {
		id, err := graph.ParsePageID(fields[0])
		if err != nil {
			return "bad page id " + quote(fields[0]), nil
		}
		if fields[1] == "" {
			return "empty target title", nil
		}
		return "", fn(RedirectRow{ID: id, RawTarget: fields[1]})
	})
}

// ScanLinks reads the pagelinks table and calls fn for every accepted row.
func ScanLinks(ctx context.Context, r io.Reader, fn func(LinkRow) error, opts ...Option) (ScanStats, error) {
	return scan(ctx, r, TablePagelinks, 2, applyOptions(opts), func(fields []string) (string, error) {
		id, err := graph.ParsePageID(fields[0])
		if err != nil {
			return "bad source id " + quote(fields[0]), nil
		}
		if fields[1] == "" {
			return "empty target title", nil
		}
		return "", fn(LinkRow{From: id, RawTarget: fields[1]})
	})
}

// parseFunc handles the fields of one row. A non-empty reason marks the row
// as malformed; a non-nil error aborts the scan.
type parseFunc func(fields []string) (reason string, err error)

// scan drives the line loop shared by all tables.
//
// width is the number of mandatory columns; one extra namespace column is
// allowed after them.
func scan(ctx context.Context, r io.Reader, table string, width int, o Options, parse parseFunc) (ScanStats, error) {
	var stats ScanStats

	br := bufio.NewReaderSize(r, 64*1024)
	fields := make([]string, 0, width+1)
	var buf []byte
	lineNo := 0
	for {
		var tooLong bool
		var err error
		buf, tooLong, err = readLine(br, buf[:0], maxLineBytes)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return stats, fmt.Errorf("read %s table: %w", table, err)
		}
		if eof && len(buf) == 0 && !tooLong {
			break
		}

		lineNo++
		if lineNo%ctxCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		if err := scanRow(&stats, table, width, lineNo, buf, tooLong, fields[:0], o, parse); err != nil {
			return stats, err
		}
		if eof {
			break
		}
	}

	if stats.Malformed > o.MaxDiagnostics {
		o.Logger.Warn("malformed rows skipped",
			slog.String("table", table),
			slog.Int("malformed", stats.Malformed),
			slog.Int("logged", o.MaxDiagnostics),
		)
	}
	return stats, nil
}

// scanRow classifies one line and hands accepted rows to parse. Only
// parse errors are returned.
func scanRow(stats *ScanStats, table string, width, lineNo int, raw []byte, tooLong bool, fields []string, o Options, parse parseFunc) error {
	if tooLong {
		stats.Lines++
		report(o, stats, &MalformedRowError{
			Table:  table,
			Line:   lineNo,
			Reason: fmt.Sprintf("row longer than %d bytes", maxLineBytes),
		})
		return nil
	}

	line := strings.TrimRight(string(raw), "\r\n")
	if line == "" {
		return nil
	}
	stats.Lines++

	fields = splitTabs(fields, line)
	switch {
	case len(fields) == width+1:
		if fields[width] != "0" {
			stats.Filtered++
			return nil
		}
	case len(fields) != width:
		report(o, stats, &MalformedRowError{
			Table:  table,
			Line:   lineNo,
			Reason: fmt.Sprintf("expected %d or %d columns, got %d", width, width+1, len(fields)),
		})
		return nil
	}

	reason, err := parse(fields[:width])
	if err != nil {
		return err
	}
	if reason != "" {
		report(o, stats, &MalformedRowError{Table: table, Line: lineNo, Reason: reason})
		return nil
	}
	stats.Rows++
	return nil
}

// readLine appends the next line, including its newline, to buf. A line
// longer than limit is consumed but not kept: tooLong is set and buf comes
// back empty. It returns io.EOF together with the final unterminated line.
func readLine(br *bufio.Reader, buf []byte, limit int) ([]byte, bool, error) {
	var tooLong bool
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit+1 {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return buf, tooLong, err
		}
	}
}

func report(o Options, stats *ScanStats, err *MalformedRowError) {
	stats.Malformed++
	if stats.Malformed <= o.MaxDiagnostics {
		o.Logger.Warn("skipping malformed row",
			slog.String("table", err.Table),
			slog.Int("line", err.Line),
			slog.String("error", err.Error()),
		)
	}
}

// splitTabs appends the tab-separated fields of line to dst.
func splitTabs(dst []string, line string) []string {
	for {
		i := strings.IndexByte(line, '\t')
		if i < 0 {
			return append(dst, line)
		}
		dst = append(dst, line[:i])
		line = line[i+1:]
	}
}

func quote(s string) string {
	const limit = 40
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return fmt.Sprintf("%q", s)
}
