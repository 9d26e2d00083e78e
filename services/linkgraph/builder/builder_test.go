// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	"github.com/AleutianAI/wikigraph/services/linkgraph/title"
)

// Pages A..D are real, E is a redirect to D.
const (
	samplePages = "1\t'A'\t0\n2\t'B'\t0\n3\t'C'\t0\n4\t'D'\t0\n5\t'E'\t1\n"
	sampleRedir = "5\t'D'\n"
	sampleLinks = "1\t'B'\n2\t'C'\n3\t'D'\n1\t'E'\n"
)

func quietBuilder(opts ...BuilderOption) *Builder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(append([]BuilderOption{WithLogger(logger)}, opts...)...)
}

func build(t *testing.T, pages, redirects, links string) (*BuildResult, string) {
	t.Helper()
	var index bytes.Buffer
	res, err := quietBuilder().Build(context.Background(), Sources{
		Pages:     strings.NewReader(pages),
		Redirects: strings.NewReader(redirects),
		Links:     strings.NewReader(links),
	}, &index)
	require.NoError(t, err)
	return res, index.String()
}

func TestNewBuilder(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		b := NewBuilder()
		assert.NotNil(t, b.options.Logger)
		assert.Equal(t, DefaultProgressInterval, b.options.ProgressInterval)
	})

	t.Run("invalid interval falls back", func(t *testing.T) {
		b := NewBuilder(WithProgressInterval(-1))
		assert.Equal(t, DefaultProgressInterval, b.options.ProgressInterval)
	})
}

func TestBuild_EndToEnd(t *testing.T) {
	ctx := context.Background()
	res, index := build(t, samplePages, sampleRedir, sampleLinks)

	assert.Equal(t, "1\tA\n2\tB\n3\tC\n4\tD\n", index)

	assert.Equal(t, map[graph.PageID][]graph.PageID{
		1: {2, 4},
		2: {3},
		3: {4},
	}, res.Forward.ToMap())
	assert.Equal(t, map[graph.PageID][]graph.PageID{
		2: {1},
		3: {2},
		4: {1, 3},
	}, res.Reverse.ToMap())

	// The redirect page never becomes a node.
	assert.Equal(t, 4, res.Forward.VertexCount())
	assert.False(t, res.Reverse.Has(5))

	p, err := res.Forward.ShortestPath(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []graph.PageID{1, 4}, p.Path)

	// D sits one hop from A through the redirect, so C (A→B→C) is the
	// only page at distance 2.
	f, err := res.Forward.Furthest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, graph.PageID(3), f.Node)
	assert.Equal(t, 2, f.Distance)

	assert.Equal(t, BuildStats{
		Pages:             4,
		RedirectPages:     1,
		RedirectsResolved: 1,
		LinksScanned:      4,
		LinksViaRedirect:  1,
		Edges:             4,
		DurationMilli:     res.Stats.DurationMilli,
	}, res.Stats)
}

func TestBuild_DanglingAndUnknown(t *testing.T) {
	pages := "1\t'A'\t0\n2\t'B'\t0\n10\t'R1'\t1\n11\t'R2'\t1\n"
	redirects := strings.Join([]string{
		"10\t'Nowhere'", // dangling
		"11\t'R1'",      // chain: target is itself a redirect
		"99\t'A'",       // id is not a redirect page
	}, "\n")
	links := strings.Join([]string{
		"1\t'Missing'", // broken
		"1\t'R1'",      // dangling redirect
		"1\t'R2'",      // chain, not followed
		"7\t'B'",       // unknown source
		"10\t'B'",      // source is a redirect page
		"1\t'B'",
		"1\t'B'", // duplicate
	}, "\n")

	res, _ := build(t, pages, redirects, links)

	assert.Equal(t, map[graph.PageID][]graph.PageID{1: {2}}, res.Forward.ToMap())
	assert.Equal(t, 1, res.Stats.Edges)
	assert.Equal(t, 2, res.Stats.RedirectsDangling)
	assert.Equal(t, 1, res.Stats.RedirectsOrphaned)
	assert.Equal(t, 0, res.Stats.RedirectsResolved)
	assert.Equal(t, 3, res.Stats.LinksBroken)
	assert.Equal(t, 2, res.Stats.LinksUnknownSource)
	assert.Equal(t, 7, res.Stats.LinksScanned)
}

func TestBuild_SelfLoops(t *testing.T) {
	// Z redirects to Y, so Y linking to Z is a self-loop too.
	pages := "1\t'X'\t0\n2\t'Y'\t0\n3\t'Z'\t1\n"
	redirects := "3\t'Y'\n"
	links := "1\t'X'\n2\t'Z'\n"

	res, _ := build(t, pages, redirects, links)
	assert.True(t, res.Forward.HasEdge(1, 1))
	assert.True(t, res.Forward.HasEdge(2, 2))
	assert.Equal(t, 1, res.Stats.LinksViaRedirect)
}

func TestBuild_DecodesTitles(t *testing.T) {
	pages := "1\t'O\\'Brien'\t0\n2\t'New_York_City'\t0\n3\t'Caf\\xc3\\xa9'\t0\n"
	_, index := build(t, pages, "", "1\t'New_York_City'\n")

	idx, err := pageindex.LoadMemory(context.Background(), strings.NewReader(index), nil)
	require.NoError(t, err)

	for want, name := range map[graph.PageID]string{1: "O'Brien", 2: "New York City", 3: "Café"} {
		id, err := idx.Lookup(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestBuild_CorruptTitleIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		pages   string
		wantErr error
	}{
		{"bad escape", "1\t'Bad\\q'\t0\n", title.ErrMalformedEscape},
		{"invalid utf8", "1\t'\\xff'\t0\n", title.ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quietBuilder().Build(context.Background(), Sources{
				Pages:     strings.NewReader(tt.pages),
				Redirects: strings.NewReader(""),
				Links:     strings.NewReader(""),
			}, io.Discard)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuild_RedirectTitlesAreNotDecoded(t *testing.T) {
	// A redirect page with an escape that would not decode must not fail.
	pages := "1\t'A'\t0\n2\t'Bad\\q'\t1\n"
	res, _ := build(t, pages, "2\t'A'\n", "1\t'Bad\\q'\n")
	assert.True(t, res.Forward.HasEdge(1, 1))
}

func TestBuild_MalformedRowsAreSkipped(t *testing.T) {
	pages := "1\t'A'\t0\nnot a row\n2\t'B'\t0\t14\n3\t'C'\t0\n"
	res, index := build(t, pages, "", "1\t'C'\nbroken\n")

	assert.Equal(t, "1\tA\n3\tC\n", index)
	assert.Equal(t, 2, res.Stats.MalformedRows)
	assert.Equal(t, 1, res.Stats.FilteredRows)
	assert.Equal(t, 1, res.Stats.Edges)
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing source", func(t *testing.T) {
		_, err := NewBuilder().Build(ctx, Sources{Pages: strings.NewReader("")}, io.Discard)
		assert.ErrorIs(t, err, ErrMissingSource)
	})

	t.Run("nil page index", func(t *testing.T) {
		src := Sources{Pages: strings.NewReader(""), Redirects: strings.NewReader(""), Links: strings.NewReader("")}
		_, err := NewBuilder().Build(ctx, src, nil)
		assert.ErrorIs(t, err, ErrNilPageIndex)
	})

	t.Run("read error", func(t *testing.T) {
		boom := errors.New("disk on fire")
		src := Sources{
			Pages:     io.MultiReader(strings.NewReader("1\t'A'\t0\n"), &failingReader{err: boom}),
			Redirects: strings.NewReader(""),
			Links:     strings.NewReader(""),
		}
		_, err := quietBuilder().Build(ctx, src, io.Discard)
		assert.ErrorIs(t, err, boom)
	})
}

func TestBuild_Progress(t *testing.T) {
	var phases []ProgressPhase
	b := quietBuilder(
		WithProgressInterval(2),
		WithProgressCallback(func(p BuildProgress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		}),
	)
	_, err := b.Build(context.Background(), Sources{
		Pages:     strings.NewReader(samplePages),
		Redirects: strings.NewReader(sampleRedir),
		Links:     strings.NewReader(sampleLinks),
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []ProgressPhase{
		ProgressPhasePages,
		ProgressPhaseRedirects,
		ProgressPhaseLinks,
		ProgressPhaseFinalizing,
	}, phases)
	assert.Equal(t, "finalizing", ProgressPhaseFinalizing.String())
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
