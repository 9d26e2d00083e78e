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
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	"github.com/AleutianAI/wikigraph/services/linkgraph/tables"
	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
	"github.com/AleutianAI/wikigraph/services/linkgraph/title"
)

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhasePages indicates the page table is being scanned.
	ProgressPhasePages ProgressPhase = iota

	// ProgressPhaseRedirects indicates the redirect table is being scanned.
	ProgressPhaseRedirects

	// ProgressPhaseLinks indicates the pagelinks table is being scanned.
	ProgressPhaseLinks

	// ProgressPhaseFinalizing indicates the graphs are being frozen.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhasePages:
		return "pages"
	case ProgressPhaseRedirects:
		return "redirects"
	case ProgressPhaseLinks:
		return "links"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// Rows is the number of rows handled in this phase so far.
	Rows int

	// Edges is the number of edges inserted so far, duplicates included.
	Edges int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// DefaultProgressInterval is the default number of rows between progress
// callbacks.
const DefaultProgressInterval = 1_000_000

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Logger receives diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// ProgressCallback is called every ProgressInterval rows and at the
	// end of each phase. May be nil.
	ProgressCallback ProgressFunc

	// ProgressInterval is the number of rows between progress callbacks.
	ProgressInterval int

	// MaxDiagnostics caps individually logged malformed rows per table.
	MaxDiagnostics int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		ProgressInterval: DefaultProgressInterval,
		MaxDiagnostics:   tables.DefaultMaxDiagnostics,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithProgressInterval sets the number of rows between progress callbacks.
func WithProgressInterval(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressInterval = n
	}
}

// WithMaxDiagnostics caps individually logged malformed rows per table.
func WithMaxDiagnostics(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxDiagnostics = n
	}
}

// Sources holds the three input tables.
type Sources struct {
	Pages     io.Reader
	Redirects io.Reader
	Links     io.Reader
}

// Builder constructs link graphs from extracted tables.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	b := NewBuilder(
//	    WithLogger(logger),
//	    WithProgressCallback(func(p BuildProgress) { ... }),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.ProgressInterval <= 0 {
		options.ProgressInterval = DefaultProgressInterval
	}
	return &Builder{options: options}
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	links *graph.LinkSet
	stats BuildStats

	// realPages is the set of non-redirect page ids.
	realPages map[graph.PageID]struct{}

	// titleToID maps a real page's raw title to its id.
	titleToID map[string]graph.PageID

	// redirectTitle maps a redirect page id to its raw title.
	redirectTitle map[graph.PageID]string

	// redirects maps a redirect's raw title to the real page it points at.
	redirects map[string]graph.PageID
}

// Build constructs the forward and reverse graphs and writes the page index.
//
// Description:
//
//	Scans pages, then redirects, then pagelinks, each exactly once. See the
//	package documentation for the resolution rules. The page index is
//	written to pageIndex while pages are scanned, one "id \t title" line
//	per real page; on error its contents are incomplete and must be
//	discarded by the caller.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked periodically.
//	src - The three tables. All must be non-nil.
//	pageIndex - Destination of the page index.
//
// Outputs:
//
//	*BuildResult - Both graphs and statistics.
//	error - Fatal errors only: corrupt title escapes, read/write errors,
//	  missing sources or cancellation.
//
// Build Phases:
//
//  1. PAGES: decode titles, write the page index, record join keys
//  2. REDIRECTS: resolve redirect titles to real pages
//  3. LINKS: resolve targets and insert edges
//  4. FINALIZE: freeze both graphs
func (b *Builder) Build(ctx context.Context, src Sources, pageIndex io.Writer) (*BuildResult, error) {
	if src.Pages == nil || src.Redirects == nil || src.Links == nil {
		return nil, ErrMissingSource
	}
	if pageIndex == nil {
		return nil, ErrNilPageIndex
	}

	ctx, span := startBuildSpan(ctx)
	defer span.End()
	start := time.Now()

	state := &buildState{
		links:         graph.NewLinkSet(),
		realPages:     make(map[graph.PageID]struct{}),
		titleToID:     make(map[string]graph.PageID),
		redirectTitle: make(map[graph.PageID]string),
		redirects:     make(map[string]graph.PageID),
	}

	fail := func(err error) (*BuildResult, error) {
		state.stats.DurationMilli = time.Since(start).Milliseconds()
		telemetry.RecordError(span, err)
		recordBuildMetrics(ctx, time.Since(start), state.stats, false)
		return nil, err
	}

	if err := b.pagesPhase(ctx, state, src.Pages, pageIndex); err != nil {
		return fail(err)
	}
	if err := b.redirectsPhase(ctx, state, src.Redirects); err != nil {
		return fail(err)
	}
	if err := b.linksPhase(ctx, state, src.Links); err != nil {
		return fail(err)
	}

	forward, reverse := state.links.Freeze()
	state.stats.Edges = forward.EdgeCount()
	state.stats.DurationMilli = time.Since(start).Milliseconds()
	b.reportProgress(ProgressPhaseFinalizing, state.links.Added(), state.links.Added())

	b.options.Logger.Info("link graph built",
		slog.Int("pages", state.stats.Pages),
		slog.Int("redirects_resolved", state.stats.RedirectsResolved),
		slog.Int("redirects_dangling", state.stats.RedirectsDangling),
		slog.Int("links_scanned", state.stats.LinksScanned),
		slog.Int("links_broken", state.stats.LinksBroken),
		slog.Int("edges_created", state.stats.Edges),
		slog.Int64("duration_ms", state.stats.DurationMilli),
	)

	setBuildSpanResult(span, state.stats)
	recordBuildMetrics(ctx, time.Since(start), state.stats, true)

	return &BuildResult{Forward: forward, Reverse: reverse, Stats: state.stats}, nil
}

// pagesPhase scans the page table and writes the page index.
func (b *Builder) pagesPhase(ctx context.Context, state *buildState, r io.Reader, out io.Writer) error {
	w := pageindex.NewWriter(out)
	rows := 0

	scan, err := tables.ScanPages(ctx, r, func(row tables.PageRow) error {
		rows++
		b.tick(ProgressPhasePages, rows, 0)

		if row.IsRedirect {
			state.stats.RedirectPages++
			state.redirectTitle[row.ID] = row.RawTitle
			return nil
		}

		display, err := title.Decode(row.RawTitle)
		if err != nil {
			return fmt.Errorf("page %d: %w", row.ID, err)
		}
		if err := w.Write(row.ID, display); err != nil {
			return err
		}

		if prev, dup := state.titleToID[row.RawTitle]; dup && prev != row.ID {
			state.stats.DuplicateTitles++
			b.options.Logger.Debug("duplicate raw title",
				slog.String("title", row.RawTitle),
				slog.Uint64("page_id", uint64(row.ID)),
				slog.Uint64("previous_page_id", uint64(prev)),
			)
		}
		state.titleToID[row.RawTitle] = row.ID
		state.realPages[row.ID] = struct{}{}
		state.stats.Pages++
		return nil
	}, b.scanOptions()...)
	b.addScanStats(state, scan)
	if err != nil {
		return fmt.Errorf("scan page table: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	b.reportProgress(ProgressPhasePages, rows, 0)
	return nil
}

// redirectsPhase scans the redirect table.
func (b *Builder) redirectsPhase(ctx context.Context, state *buildState, r io.Reader) error {
	rows := 0

	scan, err := tables.ScanRedirects(ctx, r, func(row tables.RedirectRow) error {
		rows++
		b.tick(ProgressPhaseRedirects, rows, 0)

		target, ok := state.titleToID[row.RawTarget]
		if !ok {
			state.stats.RedirectsDangling++
			return nil
		}
		from, ok := state.redirectTitle[row.ID]
		if !ok {
			state.stats.RedirectsOrphaned++
			return nil
		}
		state.redirects[from] = target
		state.stats.RedirectsResolved++
		return nil
	}, b.scanOptions()...)
	b.addScanStats(state, scan)
	if err != nil {
		return fmt.Errorf("scan redirect table: %w", err)
	}

	// Only the title → target mapping is needed from here on.
	state.redirectTitle = nil

	b.reportProgress(ProgressPhaseRedirects, rows, 0)
	return nil
}

// linksPhase scans the pagelinks table and inserts edges.
func (b *Builder) linksPhase(ctx context.Context, state *buildState, r io.Reader) error {
	scan, err := tables.ScanLinks(ctx, r, func(row tables.LinkRow) error {
		state.stats.LinksScanned++
		b.tick(ProgressPhaseLinks, state.stats.LinksScanned, state.links.Added())

		if _, ok := state.realPages[row.From]; !ok {
			state.stats.LinksUnknownSource++
			return nil
		}

		to, ok := state.titleToID[row.RawTarget]
		if !ok {
			to, ok = state.redirects[row.RawTarget]
			if !ok {
				state.stats.LinksBroken++
				return nil
			}
			state.stats.LinksViaRedirect++
		}
		return state.links.AddEdge(row.From, to)
	}, b.scanOptions()...)
	b.addScanStats(state, scan)
	if err != nil {
		return fmt.Errorf("scan pagelinks table: %w", err)
	}

	b.reportProgress(ProgressPhaseLinks, state.stats.LinksScanned, state.links.Added())
	return nil
}

func (b *Builder) scanOptions() []tables.Option {
	return []tables.Option{
		tables.WithLogger(b.options.Logger),
		tables.WithMaxDiagnostics(b.options.MaxDiagnostics),
	}
}

func (b *Builder) addScanStats(state *buildState, s tables.ScanStats) {
	state.stats.MalformedRows += s.Malformed
	state.stats.FilteredRows += s.Filtered
}

// tick reports progress every ProgressInterval rows.
func (b *Builder) tick(phase ProgressPhase, rows, edges int) {
	if rows%b.options.ProgressInterval == 0 {
		b.reportProgress(phase, rows, edges)
	}
}

// reportProgress calls the progress callback if set.
func (b *Builder) reportProgress(phase ProgressPhase, rows, edges int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{Phase: phase, Rows: rows, Edges: edges})
}
