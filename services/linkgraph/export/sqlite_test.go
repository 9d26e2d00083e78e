// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikigraph/pkg/atomicfile"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
)

func fixture(t *testing.T) (*bytes.Buffer, *graph.Adjacency) {
	t.Helper()
	var buf bytes.Buffer
	w := pageindex.NewWriter(&buf)
	for id, title := range []string{"", "Tree", "Plant", "Biology", "Philosophy"} {
		if id == 0 {
			continue
		}
		require.NoError(t, w.Write(graph.PageID(id), title))
	}
	require.NoError(t, w.Flush())

	fwd := graph.FromMap(map[graph.PageID][]graph.PageID{
		1: {2, 4},
		2: {3},
		3: {4},
	})
	return &buf, fwd
}

func options(batch int) Options {
	return Options{BatchSize: batch, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLite(t *testing.T) {
	// A batch size of 2 forces several commits per table.
	for _, batch := range []int{2, 0} {
		t.Run(fmt.Sprintf("batch %d", batch), func(t *testing.T) {
			pages, fwd := fixture(t)
			path := filepath.Join(t.TempDir(), "out", "graph.db")

			report, err := SQLite(context.Background(), path, pages, fwd, options(batch))
			require.NoError(t, err)
			assert.Equal(t, path, report.Path)
			assert.Equal(t, 4, report.Pages)
			assert.Equal(t, 4, report.Links)

			_, err = os.Stat(path + atomicfile.TempSuffix)
			assert.True(t, os.IsNotExist(err), "temp file must be gone")

			db, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, 4, count(t, db, "pages"))
			assert.Equal(t, 4, count(t, db, "links"))

			rows, err := db.Query(`SELECT p.title FROM links l
				JOIN pages p ON p.id = l.from_id
				WHERE l.to_id = (SELECT id FROM pages WHERE title = ?)
				ORDER BY p.title`, "Philosophy")
			require.NoError(t, err)
			defer rows.Close()
			var got []string
			for rows.Next() {
				var title string
				require.NoError(t, rows.Scan(&title))
				got = append(got, title)
			}
			require.NoError(t, rows.Err())
			assert.Equal(t, []string{"Biology", "Tree"}, got)
		})
	}
}

func TestSQLite_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0600))

	t.Run("refused", func(t *testing.T) {
		pages, fwd := fixture(t)
		_, err := SQLite(context.Background(), path, pages, fwd, options(0))
		assert.ErrorIs(t, err, ErrExists)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	})

	t.Run("overwritten", func(t *testing.T) {
		pages, fwd := fixture(t)
		opts := options(0)
		opts.Overwrite = true
		report, err := SQLite(context.Background(), path, pages, fwd, opts)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Pages)
	})
}

func TestSQLite_Failures(t *testing.T) {
	t.Run("corrupt page index", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.db")
		_, err := SQLite(context.Background(), path, strings.NewReader("1\tTree\nnot a line\n"), nil, options(0))
		assert.ErrorIs(t, err, pageindex.ErrCorruptIndex)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
		_, statErr = os.Stat(path + atomicfile.TempSuffix)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("cancelled", func(t *testing.T) {
		pages, fwd := fixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		path := filepath.Join(t.TempDir(), "graph.db")
		_, err := SQLite(ctx, path, pages, fwd, options(1))
		assert.ErrorIs(t, err, context.Canceled)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestSQLite_NoLinks(t *testing.T) {
	pages, _ := fixture(t)
	path := filepath.Join(t.TempDir(), "graph.db")

	report, err := SQLite(context.Background(), path, pages, nil, options(0))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Pages)
	assert.Zero(t, report.Links)
}
