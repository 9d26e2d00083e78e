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
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/wikigraph/pkg/atomicfile"
	"github.com/AleutianAI/wikigraph/services/linkgraph/builder"
	"github.com/AleutianAI/wikigraph/services/linkgraph/extract"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	badgerstore "github.com/AleutianAI/wikigraph/services/linkgraph/storage/badger"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Force rebuilds even when every artifact exists.
	Force bool

	// IndexBackend is BackendMemory or BackendBadger. Badger additionally
	// writes titles.badger. Empty means memory.
	IndexBackend string

	// Schemas overrides the default dump column layouts per table.
	Schemas map[string]extract.Schema

	// Logger receives progress and diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// Progress receives builder progress. May be nil.
	Progress builder.ProgressFunc

	// ExtractProgress receives extraction progress. May be nil.
	ExtractProgress func(table string, s extract.Stats)
}

// BuildReport describes what Build did.
type BuildReport struct {
	// Extracted holds statistics for every table extracted in this run.
	Extracted map[string]extract.Stats `json:"extracted,omitempty"`

	// Skipped is true when all artifacts existed and Force was not set.
	Skipped bool `json:"skipped"`

	// Build holds builder statistics. Nil when skipped.
	Build *builder.BuildStats `json:"build,omitempty"`

	// Forward and Reverse summarize the written graphs. Nil when skipped.
	Forward *graph.Stats `json:"forward,omitempty"`
	Reverse *graph.Stats `json:"reverse,omitempty"`

	// TitleIndexEntries is the number of pages imported into Badger.
	TitleIndexEntries int `json:"title_index_entries,omitempty"`
}

// EnsureExtracted extracts every table whose TSV is missing.
//
// Description:
//
//	Tables already present are never re-extracted. A missing table with no
//	dump directory configured fails with ErrMissingTable; a missing or
//	ambiguous dump fails with the extract package's errors.
//
// Outputs:
//
//	map[string]extract.Stats - Statistics of the tables extracted now.
//	error - First failure.
func EnsureExtracted(ctx context.Context, layout Layout, opts BuildOptions) (map[string]extract.Stats, error) {
	logger := loggerOr(opts.Logger)
	out := make(map[string]extract.Stats)

	for _, table := range extract.Tables {
		path := layout.Table(table)
		if exists(path) {
			logger.Debug("table already extracted", slog.String("table", table), slog.String("path", path))
			continue
		}
		if layout.DumpDir == "" {
			return out, fmt.Errorf("%w: %s (no dump directory configured)", ErrMissingTable, path)
		}

		dump, err := extract.Locate(layout.DumpDir, table)
		if err != nil {
			return out, err
		}
		schema, err := extract.SchemaFor(table, opts.Schemas)
		if err != nil {
			return out, err
		}

		xopts := []extract.Option{extract.WithLogger(logger)}
		if opts.ExtractProgress != nil {
			xopts = append(xopts, extract.WithProgress(func(s extract.Stats) {
				opts.ExtractProgress(table, s)
			}))
		}
		stats, err := extract.ExtractFile(ctx, dump, path, schema, xopts...)
		if err != nil {
			return out, fmt.Errorf("extract %s: %w", table, err)
		}
		out[table] = stats
	}
	return out, nil
}

// Build extracts missing tables and builds the graph artifacts.
//
// Description:
//
//	Runs EnsureExtracted, then, unless every artifact exists and Force is
//	false, runs the builder. The page index and both graphs are written to
//	temp files and renamed into place only after all three are complete,
//	so a failed build leaves the previous artifacts untouched.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	layout - Data and dump directories.
//	opts - Build options.
//
// Outputs:
//
//	*BuildReport - What was extracted and built.
//	error - Extraction, build, encode or I/O failure.
func Build(ctx context.Context, layout Layout, opts BuildOptions) (*BuildReport, error) {
	logger := loggerOr(opts.Logger)
	switch opts.IndexBackend {
	case "", BackendMemory, BackendBadger:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.IndexBackend)
	}

	extracted, err := EnsureExtracted(ctx, layout, opts)
	report := &BuildReport{Extracted: extracted}
	if err != nil {
		return report, err
	}

	needTitles := opts.IndexBackend == BackendBadger && !exists(layout.TitleIndex())
	if layout.Built() && !opts.Force && !needTitles {
		logger.Info("link graph already built", slog.String("data_dir", layout.DataDir))
		report.Skipped = true
		return report, nil
	}

	if !layout.Built() || opts.Force {
		if err := buildGraphs(ctx, layout, opts, logger, report); err != nil {
			return report, err
		}
	}

	if opts.IndexBackend == BackendBadger {
		n, err := BuildTitleIndex(ctx, layout, logger)
		if err != nil {
			return report, err
		}
		report.TitleIndexEntries = n
	}
	return report, nil
}

func buildGraphs(ctx context.Context, layout Layout, opts BuildOptions, logger *slog.Logger, report *BuildReport) error {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	open := func(table string) (*bufio.Reader, error) {
		f, err := os.Open(layout.Table(table))
		if err != nil {
			return nil, fmt.Errorf("open %s table: %w", table, err)
		}
		files = append(files, f)
		return bufio.NewReaderSize(f, 1<<20), nil
	}

	pages, err := open("page")
	if err != nil {
		return err
	}
	redirects, err := open("redirect")
	if err != nil {
		return err
	}
	links, err := open("pagelinks")
	if err != nil {
		return err
	}

	indexFile, err := atomicfile.Create(layout.PageIndex())
	if err != nil {
		return err
	}
	defer indexFile.Abort()

	bopts := []builder.BuilderOption{builder.WithLogger(logger)}
	if opts.Progress != nil {
		bopts = append(bopts, builder.WithProgressCallback(opts.Progress))
	}
	res, err := builder.NewBuilder(bopts...).Build(ctx, builder.Sources{
		Pages:     pages,
		Redirects: redirects,
		Links:     links,
	}, indexFile)
	if err != nil {
		return err
	}
	report.Build = &res.Stats

	start := time.Now()
	forwardFile, err := encodeGraph(ctx, layout.Graph(graph.Forward), res.Forward)
	if err != nil {
		return err
	}
	defer forwardFile.Abort()
	reverseFile, err := encodeGraph(ctx, layout.Graph(graph.Reverse), res.Reverse)
	if err != nil {
		return err
	}
	defer reverseFile.Abort()

	for _, f := range []*atomicfile.File{indexFile, forwardFile, reverseFile} {
		if err := f.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f.Path(), err)
		}
	}

	fs, rs := res.Forward.Stats(), res.Reverse.Stats()
	report.Forward, report.Reverse = &fs, &rs
	logger.Info("link graph written",
		slog.String("data_dir", layout.DataDir),
		slog.Int("vertices", fs.Vertices),
		slog.Int("edges", fs.Edges),
		slog.Int64("encode_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// encodeGraph writes a to a temp file next to path. The caller commits.
func encodeGraph(ctx context.Context, path string, a *graph.Adjacency) (*atomicfile.File, error) {
	f, err := atomicfile.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1<<20)
	if err := graph.Encode(ctx, w, a); err != nil {
		f.Abort()
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Abort()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return f, nil
}

// BuildTitleIndex imports pages.tsv into a fresh Badger database.
//
// Description:
//
//	The database is written next to its final location and swapped in
//	once the import has finished and the database is closed.
//
// Outputs:
//
//	int - Number of pages imported.
//	error - Open, import or rename failure.
func BuildTitleIndex(ctx context.Context, layout Layout, logger *slog.Logger) (int, error) {
	logger = loggerOr(logger)
	final := layout.TitleIndex()
	tmp := final + atomicfile.TempSuffix
	if err := os.RemoveAll(tmp); err != nil {
		return 0, fmt.Errorf("clear stale title index: %w", err)
	}

	in, err := os.Open(layout.PageIndex())
	if err != nil {
		return 0, fmt.Errorf("open page index: %w", err)
	}
	defer in.Close()

	cfg := badgerstore.DefaultConfig(tmp)
	cfg.Logger = logger
	db, err := badgerstore.Open(cfg)
	if err != nil {
		return 0, err
	}
	n, err := pageindex.ImportBadger(ctx, db, bufio.NewReader(in))
	if cerr := db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close title index: %w", cerr)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return 0, err
	}

	if err := os.RemoveAll(final); err != nil {
		return 0, fmt.Errorf("remove old title index: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return 0, fmt.Errorf("atomic rename: %w", err)
	}
	logger.Info("title index written", slog.String("path", final), slog.Int("pages", n))
	return n, nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
