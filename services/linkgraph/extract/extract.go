// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/AleutianAI/wikigraph/pkg/atomicfile"
)

// DefaultMaxDiagnostics caps individually logged tuple errors per dump.
const DefaultMaxDiagnostics = 20

// readBufferSize is the initial line buffer. INSERT lines in real dumps are
// around 1 MiB; longer lines grow the buffer.
const readBufferSize = 4 << 20

// Stats summarizes one extraction.
type Stats struct {
	// Lines is the number of dump lines read.
	Lines int `json:"lines"`

	// Statements is the number of matching INSERT statements.
	Statements int `json:"statements"`

	// Tuples is the number of tuples tokenized.
	Tuples int `json:"tuples"`

	// Written is the number of rows written.
	Written int `json:"written"`

	// Filtered is the number of tuples dropped by the namespace filter.
	Filtered int `json:"filtered"`

	// Malformed counts tuples too short for the schema plus statements
	// abandoned on a syntax error.
	Malformed int `json:"malformed"`
}

// ProgressFunc receives running totals after every INSERT statement.
type ProgressFunc func(Stats)

// Options configures extraction.
type Options struct {
	// Logger receives diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// MaxDiagnostics caps individually logged tuple errors.
	MaxDiagnostics int

	// Progress is called after each statement. May be nil.
	Progress ProgressFunc
}

// Option is a functional option for extraction.
type Option func(*Options)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMaxDiagnostics caps individually logged tuple errors.
func WithMaxDiagnostics(n int) Option {
	return func(o *Options) {
		o.MaxDiagnostics = n
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) {
		o.Progress = fn
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

// Extract converts a decompressed SQL dump into a tab-separated table.
//
// Description:
//
//	Every line beginning with "INSERT INTO `<schema.Table>` VALUES " is
//	tokenized. For each tuple whose namespace columns all hold 0, the
//	schema's columns are written tab-separated on one line. A tuple with
//	fewer fields than the schema needs is skipped and counted. A syntax
//	error abandons the rest of that statement: it is logged and counted,
//	and extraction continues with the next line.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked once per line.
//	r - Decompressed dump.
//	w - Destination table.
//	schema - Column layout.
//	opts - Optional settings.
//
// Outputs:
//
//	Stats - Counters, valid even on error.
//	error - Read, write, schema or context errors.
func Extract(ctx context.Context, r io.Reader, w io.Writer, schema Schema, opts ...Option) (Stats, error) {
	var stats Stats
	if err := schema.Validate(); err != nil {
		return stats, err
	}
	o := applyOptions(opts)

	prefix := []byte("INSERT INTO `" + schema.Table + "` VALUES ")
	width := schema.width()
	br := bufio.NewReaderSize(r, readBufferSize)
	bw := bufio.NewWriter(w)
	reported := 0

	var line []byte
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var err error
		line, err = readLine(br, line[:0])
		if len(line) > 0 {
			stats.Lines++
		}
		if len(line) > 0 && bytes.HasPrefix(line, prefix) {
			stats.Statements++
			values := bytes.TrimRight(line[len(prefix):], "\r\n")

			perr := parseTuples(values, func(fields [][]byte) error {
				stats.Tuples++
				if len(fields) < width {
					stats.Malformed++
					reported = o.report(reported, &TupleError{
						Table:  schema.Table,
						Line:   stats.Lines,
						Reason: fmt.Sprintf("tuple has %d fields, want at least %d", len(fields), width),
					})
					return nil
				}
				for _, c := range schema.Namespaces {
					if string(fields[c]) != "0" {
						stats.Filtered++
						return nil
					}
				}
				for i, c := range schema.Columns {
					if i > 0 {
						if err := bw.WriteByte('\t'); err != nil {
							return err
						}
					}
					if _, err := bw.Write(fields[c]); err != nil {
						return err
					}
				}
				if err := bw.WriteByte('\n'); err != nil {
					return err
				}
				stats.Written++
				return nil
			})

			var syn *tupleSyntaxError
			switch {
			case errors.As(perr, &syn):
				stats.Malformed++
				reported = o.report(reported, &TupleError{
					Table:  schema.Table,
					Line:   stats.Lines,
					Offset: syn.offset,
					Reason: syn.reason,
				})
			case perr != nil:
				return stats, fmt.Errorf("write %s table: %w", schema.Table, perr)
			}

			if o.Progress != nil {
				o.Progress(stats)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read %s dump: %w", schema.Table, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("write %s table: %w", schema.Table, err)
	}
	if reported < stats.Malformed {
		o.Logger.Warn("malformed tuples skipped",
			slog.String("table", schema.Table),
			slog.Int("count", stats.Malformed),
			slog.Int("logged", reported),
		)
	}
	return stats, nil
}

// report logs e unless the diagnostic cap has been reached.
func (o Options) report(reported int, e *TupleError) int {
	if reported >= o.MaxDiagnostics {
		return reported
	}
	o.Logger.Warn("skipping malformed tuple",
		slog.String("table", e.Table),
		slog.Int("line", e.Line),
		slog.Int("offset", e.Offset),
		slog.String("reason", e.Reason),
	)
	return reported + 1
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

// ExtractFile extracts one gzip-compressed dump into outPath.
//
// Description:
//
//	The output is written to a temp file and renamed into place only when
//	extraction succeeds, so a failed run never leaves a partial table.
//
// Outputs:
//
//	Stats - Counters.
//	error - Open, decompression, extraction or rename errors.
func ExtractFile(ctx context.Context, dumpPath, outPath string, schema Schema, opts ...Option) (Stats, error) {
	o := applyOptions(opts)
	start := time.Now()

	in, err := os.Open(dumpPath)
	if err != nil {
		return Stats{}, fmt.Errorf("open dump: %w", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(bufio.NewReader(in))
	if err != nil {
		return Stats{}, fmt.Errorf("open gzip stream %s: %w", dumpPath, err)
	}
	defer zr.Close()

	o.Logger.Info("extracting table",
		slog.String("table", schema.Table),
		slog.String("dump", dumpPath),
		slog.String("output", outPath),
	)

	var stats Stats
	err = atomicfile.WriteFile(outPath, func(f *atomicfile.File) error {
		var err error
		stats, err = Extract(ctx, zr, f, schema, opts...)
		return err
	})
	if err != nil {
		return stats, err
	}

	o.Logger.Info("table extracted",
		slog.String("table", schema.Table),
		slog.Int("rows_written", stats.Written),
		slog.Int("rows_filtered", stats.Filtered),
		slog.Int("tuples_malformed", stats.Malformed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return stats, nil
}

// Locate finds the single dump file for table in dir.
//
// Description:
//
//	Dumps are named "<wiki>-<date>-<table>.sql.gz". The pattern
//	"*-page.sql.gz" does not match "*-pagelinks.sql.gz".
//
// Outputs:
//
//	string - Path of the dump.
//	error - *DumpError wrapping ErrMissingDump or ErrAmbiguousDump.
func Locate(dir, table string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*-"+table+".sql.gz"))
	if err != nil {
		return "", fmt.Errorf("locate %s dump: %w", table, err)
	}
	switch len(matches) {
	case 0:
		return "", &DumpError{Table: table, Dir: dir, Err: ErrMissingDump}
	case 1:
		return matches[0], nil
	default:
		slices.Sort(matches)
		return "", &DumpError{Table: table, Dir: dir, Matches: matches, Err: ErrAmbiguousDump}
	}
}

// LocateAll locates the dumps of every table in Tables.
//
// Outputs:
//
//	map[string]string - Table name to dump path.
//	error - The first lookup failure, in Tables order.
func LocateAll(dir string) (map[string]string, error) {
	out := make(map[string]string, len(Tables))
	for _, table := range Tables {
		path, err := Locate(dir, table)
		if err != nil {
			return nil, err
		}
		out[table] = path
	}
	return out, nil
}

// SchemaFor returns the schema for table, applying overrides first.
func SchemaFor(table string, overrides map[string]Schema) (Schema, error) {
	if s, ok := overrides[table]; ok {
		if s.Table == "" {
			s.Table = table
		}
		return s, s.Validate()
	}
	s, ok := DefaultSchemas()[table]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}
