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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageDump = "-- MySQL dump 10.19\n" +
	"CREATE TABLE `page` (\n  `page_id` int(8) unsigned NOT NULL\n);\n" +
	"INSERT INTO `page` VALUES (1,0,'A',0,0,0.5,'20240101'),(2,1,'Talk_page',0,0,0.1,'20240101'),(3,0,'B_(x),(y)',1,0,0.2,'20240101');\n" +
	"INSERT INTO `redirect` VALUES (9,0,'Z','','');\n" +
	"INSERT INTO `page` VALUES (4,0,'O\\'Brien',0,1,0.3,'20240101');\n"

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pageSchema() Schema {
	return DefaultSchemas()["page"]
}

func TestExtract(t *testing.T) {
	var out bytes.Buffer
	stats, err := Extract(context.Background(), strings.NewReader(pageDump), &out, pageSchema(), quiet())
	require.NoError(t, err)

	assert.Equal(t, "1\t'A'\t0\n3\t'B_(x),(y)'\t1\n4\t'O\\'Brien'\t0\n", out.String())
	assert.Equal(t, Stats{
		Lines:      7,
		Statements: 2,
		Tuples:     4,
		Written:    3,
		Filtered:   1,
	}, stats)
}

func TestExtract_NamespaceColumns(t *testing.T) {
	dump := "INSERT INTO `pagelinks` VALUES (1,0,'A',0),(2,0,'B',4),(3,14,'C',0),(4,0,'D',0);\n"
	var out bytes.Buffer
	stats, err := Extract(context.Background(), strings.NewReader(dump), &out, DefaultSchemas()["pagelinks"], quiet())
	require.NoError(t, err)

	assert.Equal(t, "1\t'A'\n4\t'D'\n", out.String())
	assert.Equal(t, 2, stats.Filtered)
}

func TestExtract_MalformedTuples(t *testing.T) {
	dump := "INSERT INTO `page` VALUES (4,0,'C',0),(5,0),(6,0,'bad\n" +
		"INSERT INTO `page` VALUES (7,0,'D',0);"

	var out bytes.Buffer
	stats, err := Extract(context.Background(), strings.NewReader(dump), &out, pageSchema(), quiet())
	require.NoError(t, err)

	// The statement after the broken one is still read, even without a
	// trailing newline.
	assert.Equal(t, "4\t'C'\t0\n7\t'D'\t0\n", out.String())
	assert.Equal(t, 3, stats.Tuples)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 2, stats.Malformed)
}

func TestExtract_DiagnosticsCapped(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	dump := strings.Repeat("INSERT INTO `page` VALUES (1,0);\n", 5)
	stats, err := Extract(context.Background(), strings.NewReader(dump), io.Discard, pageSchema(),
		WithLogger(logger), WithMaxDiagnostics(2))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Malformed)
	assert.Equal(t, 2, strings.Count(logs.String(), "skipping malformed tuple"))
	assert.Contains(t, logs.String(), "malformed tuples skipped")
}

func TestExtract_Progress(t *testing.T) {
	var seen []int
	_, err := Extract(context.Background(), strings.NewReader(pageDump), io.Discard, pageSchema(), quiet(),
		WithProgress(func(s Stats) { seen = append(seen, s.Written) }))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, seen)
}

func TestExtract_LongLine(t *testing.T) {
	var b strings.Builder
	b.WriteString("INSERT INTO `page` VALUES ")
	const n = 200_000
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(1,0,'Some_fairly_long_title',0)")
	}
	b.WriteString(";\n")
	require.Greater(t, b.Len(), readBufferSize)

	stats, err := Extract(context.Background(), strings.NewReader(b.String()), io.Discard, pageSchema(), quiet())
	require.NoError(t, err)
	assert.Equal(t, n, stats.Written)
}

func TestExtract_Errors(t *testing.T) {
	t.Run("invalid schema", func(t *testing.T) {
		_, err := Extract(context.Background(), strings.NewReader(""), io.Discard, Schema{Table: "page"})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Extract(ctx, strings.NewReader(pageDump), io.Discard, pageSchema(), quiet())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("write error", func(t *testing.T) {
		boom := errors.New("disk full")
		_, err := Extract(context.Background(), strings.NewReader(pageDump), failingWriter{boom}, pageSchema(), quiet())
		assert.ErrorIs(t, err, boom)
	})
}

type failingWriter struct {
	err error
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = io.WriteString(zw, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "enwiki-20240101-page.sql.gz")
	writeGzip(t, dump, pageDump)

	out := filepath.Join(dir, "tables", "page.tsv")
	stats, err := ExtractFile(context.Background(), dump, out, pageSchema(), quiet())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Written)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "1\t'A'\t0\n3\t'B_(x),(y)'\t1\n4\t'O\\'Brien'\t0\n", string(data))

	t.Run("not gzip leaves no output", func(t *testing.T) {
		bad := filepath.Join(dir, "broken-page.sql.gz")
		require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0o600))
		target := filepath.Join(dir, "broken.tsv")

		_, err := ExtractFile(context.Background(), bad, target, pageSchema(), quiet())
		assert.Error(t, err)
		_, statErr := os.Stat(target)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("missing dump", func(t *testing.T) {
		_, err := ExtractFile(context.Background(), filepath.Join(dir, "nope.sql.gz"), out, pageSchema(), quiet())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"enwiki-20240101-page.sql.gz",
		"enwiki-20240101-pagelinks.sql.gz",
		"enwiki-20240101-redirect.sql.gz",
		"enwiki-20231201-redirect.sql.gz",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	t.Run("page does not match pagelinks", func(t *testing.T) {
		path, err := Locate(dir, "page")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "enwiki-20240101-page.sql.gz"), path)
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := Locate(dir, "redirect")
		assert.ErrorIs(t, err, ErrAmbiguousDump)

		var de *DumpError
		require.ErrorAs(t, err, &de)
		assert.Len(t, de.Matches, 2)
		assert.Contains(t, err.Error(), "move or delete")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Locate(t.TempDir(), "pagelinks")
		assert.ErrorIs(t, err, ErrMissingDump)
		assert.Contains(t, err.Error(), "dumps.wikimedia.org")
	})

	t.Run("locate all reports first failure", func(t *testing.T) {
		_, err := LocateAll(dir)
		assert.ErrorIs(t, err, ErrAmbiguousDump)
	})
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor("redirect", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, s.Columns)

	legacy := map[string]Schema{"page": {Columns: []int{0, 2, 4}, Namespaces: []int{1}}}
	s, err = SchemaFor("page", legacy)
	require.NoError(t, err)
	assert.Equal(t, "page", s.Table)
	assert.Equal(t, 5, s.width())

	_, err = SchemaFor("categorylinks", nil)
	assert.ErrorIs(t, err, ErrUnknownTable)
}
