// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes a built link graph to formats meant for ad-hoc
// analysis outside wikigraph.
//
// The SQLite export has two tables:
//
//	pages(id INTEGER PRIMARY KEY, title TEXT NOT NULL)
//	links(from_id INTEGER NOT NULL, to_id INTEGER NOT NULL)
//
// Example query, the pages linking to "Philosophy":
//
//	SELECT p.title FROM links l
//	JOIN pages p ON p.id = l.from_id
//	WHERE l.to_id = (SELECT id FROM pages WHERE title = 'Philosophy');
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AleutianAI/wikigraph/pkg/atomicfile"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
)

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 50_000

// ErrExists is returned when the output file exists and overwriting is off.
var ErrExists = errors.New("export file already exists")

const schema = `
CREATE TABLE pages (
	id    INTEGER PRIMARY KEY,
	title TEXT NOT NULL
);
CREATE TABLE links (
	from_id INTEGER NOT NULL,
	to_id   INTEGER NOT NULL
);
`

// Indexes are created after the bulk insert.
const indexes = `
CREATE INDEX idx_pages_title ON pages(title);
CREATE INDEX idx_links_from ON links(from_id);
CREATE INDEX idx_links_to ON links(to_id);
`

// Options configures an export.
type Options struct {
	// BatchSize is the number of rows per transaction. Zero uses
	// DefaultBatchSize.
	BatchSize int

	// Overwrite replaces an existing output file.
	Overwrite bool

	// Logger receives progress logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Report summarizes an export.
type Report struct {
	Path     string        `json:"path"`
	Pages    int           `json:"pages"`
	Links    int           `json:"links"`
	Duration time.Duration `json:"duration_ns"`
}

// SQLite writes pages and forward links to a new SQLite database at path.
//
// Description:
//
//	pages is a page index file as written by pageindex.Writer. Every
//	entry of forward becomes one links row per target. The database is
//	written to "<path>.tmp" and renamed into place once complete, so a
//	failed or cancelled export never leaves a partial database at path.
//
// Inputs:
//
//	ctx - Checked between batches.
//	path - Output database file.
//	pages - Page index stream.
//	forward - Forward adjacency.
//	opts - Export options.
//
// Outputs:
//
//	*Report - Row counts on success.
//	error - ErrExists, pageindex.ErrCorruptIndex, SQL errors or ctx errors.
func SQLite(ctx context.Context, path string, pages io.Reader, forward *graph.Adjacency, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	if _, err := os.Stat(path); err == nil {
		if !opts.Overwrite {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}

	tmp := path + atomicfile.TempSuffix
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale temp file: %w", err)
	}

	start := time.Now()
	report, err := write(ctx, tmp, pages, forward, batch, logger)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("atomic rename: %w", err)
	}

	report.Path = path
	report.Duration = time.Since(start)
	logger.Info("sqlite export complete",
		slog.String("path", path),
		slog.Int("pages", report.Pages),
		slog.Int("links", report.Links),
		slog.Int64("duration_ms", report.Duration.Milliseconds()),
	)
	return report, nil
}

func write(ctx context.Context, file string, pages io.Reader, forward *graph.Adjacency, batch int, logger *slog.Logger) (report *Report, err error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sqlite database: %w", cerr)
		}
	}()
	// One connection keeps the pragmas in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=OFF", "PRAGMA synchronous=OFF"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	report = &Report{}

	pageRows := newBatcher(db, "INSERT INTO pages (id, title) VALUES (?, ?)", batch)
	err = pageindex.Read(ctx, pages, func(e pageindex.Entry) error {
		report.Pages++
		return pageRows.add(ctx, int64(e.ID), e.Title)
	})
	if err == nil {
		err = pageRows.flush()
	}
	if err != nil {
		pageRows.rollback()
		return nil, fmt.Errorf("insert pages: %w", err)
	}
	logger.Debug("pages exported", slog.Int("pages", report.Pages))

	linkRows := newBatcher(db, "INSERT INTO links (from_id, to_id) VALUES (?, ?)", batch)
	if forward != nil {
		for from, tos := range forward.Entries() {
			for _, to := range tos {
				if err = linkRows.add(ctx, int64(from), int64(to)); err != nil {
					break
				}
				report.Links++
			}
			if err != nil {
				break
			}
		}
	}
	if err == nil {
		err = linkRows.flush()
	}
	if err != nil {
		linkRows.rollback()
		return nil, fmt.Errorf("insert links: %w", err)
	}
	logger.Debug("links exported", slog.Int("links", report.Links))

	if _, err = db.ExecContext(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return report, nil
}

// batcher inserts rows through one prepared statement, committing every
// size rows.
type batcher struct {
	db    *sql.DB
	query string
	size  int

	tx   *sql.Tx
	stmt *sql.Stmt
	n    int
}

func newBatcher(db *sql.DB, query string, size int) *batcher {
	return &batcher{db: db, query: query, size: size}
}

func (b *batcher) add(ctx context.Context, args ...any) error {
	if b.tx == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, b.query)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("prepare statement: %w", err)
		}
		b.tx, b.stmt = tx, stmt
	}
	if _, err := b.stmt.ExecContext(ctx, args...); err != nil {
		return err
	}
	b.n++
	if b.n >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if b.tx == nil {
		return nil
	}
	b.stmt.Close()
	err := b.tx.Commit()
	b.tx, b.stmt, b.n = nil, nil, 0
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *batcher) rollback() {
	if b.tx == nil {
		return
	}
	b.stmt.Close()
	b.tx.Rollback()
	b.tx, b.stmt, b.n = nil, nil, 0
}
