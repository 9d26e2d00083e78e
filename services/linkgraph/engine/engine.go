// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	"github.com/AleutianAI/wikigraph/services/linkgraph/title"
)

// DefaultSuggestions is the number of titles offered for an unknown page.
const DefaultSuggestions = 5

// Source provides the graphs and the page index. *store.Store implements it.
type Source interface {
	Graph(ctx context.Context, dir graph.Direction) (*graph.Adjacency, error)
	PageIndex(ctx context.Context) (pageindex.Index, error)
}

// Page is a real page.
type Page struct {
	ID    graph.PageID `json:"id"`
	Title string       `json:"title"`
}

// PathAnswer is a shortest path in titles.
type PathAnswer struct {
	From  Page   `json:"from"`
	To    Page   `json:"to"`
	Found bool   `json:"found"`
	Hops  int    `json:"hops"`
	Path  []Page `json:"path"`
}

// FurthestAnswer is an eccentricity in titles.
//
// For Furthest, Start is the origin and Node the page furthest from it.
// For Max, Start is the target and Node the page that needs the most
// steps to reach it.
type FurthestAnswer struct {
	Start    Page `json:"start"`
	Node     Page `json:"node"`
	Distance int  `json:"distance"`
	Reached  int  `json:"reached"`
}

// DiameterAnswer is a diameter estimate in titles.
type DiameterAnswer struct {
	Start    Page `json:"start"`
	End      Page `json:"end"`
	Distance int  `json:"distance"`
	Sweeps   int  `json:"sweeps"`
	Seed     Page `json:"seed"`
}

// Options configures an Engine.
type Options struct {
	// Logger receives query logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Suggestions is the number of titles offered for an unknown page.
	Suggestions int

	// Diameter holds default options applied before per-call options.
	Diameter []graph.DiameterOption
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithSuggestions sets the number of suggestions for unknown pages.
func WithSuggestions(n int) Option {
	return func(o *Options) {
		o.Suggestions = n
	}
}

// WithDiameterDefaults sets diameter options applied to every estimate.
func WithDiameterDefaults(opts ...graph.DiameterOption) Option {
	return func(o *Options) {
		o.Diameter = append(o.Diameter, opts...)
	}
}

// Engine runs queries by title.
//
// Thread Safety:
//
//	Safe for concurrent use when the Source is.
type Engine struct {
	src     Source
	options Options
	logger  *slog.Logger
}

// New creates an Engine over src.
func New(src Source, opts ...Option) *Engine {
	o := Options{Suggestions: DefaultSuggestions}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{src: src, options: o, logger: logger}
}

// Resolve finds the real page with the given display title.
//
// Description:
//
//	The input is normalized first (trimmed, underscores to spaces). An
//	unknown title returns *PageNotFoundError carrying up to Suggestions
//	titles that share its prefix, ignoring case.
//
// Outputs:
//
//	Page - The page.
//	error - *PageNotFoundError (wraps ErrUnknownPage), or index errors.
func (e *Engine) Resolve(ctx context.Context, name string) (Page, error) {
	idx, err := e.src.PageIndex(ctx)
	if err != nil {
		return Page{}, err
	}
	norm := title.Normalize(name)
	if norm == "" {
		return Page{}, &PageNotFoundError{Title: norm}
	}

	id, err := idx.Lookup(ctx, norm)
	if errors.Is(err, pageindex.ErrNotFound) {
		return Page{}, &PageNotFoundError{Title: norm, Suggestions: e.suggest(ctx, idx, norm)}
	}
	if err != nil {
		return Page{}, fmt.Errorf("resolve '%s': %w", norm, err)
	}
	return Page{ID: id, Title: norm}, nil
}

// suggest offers titles starting with the input, or failing that with
// its first word.
func (e *Engine) suggest(ctx context.Context, idx pageindex.Index, norm string) []string {
	if e.options.Suggestions <= 0 {
		return nil
	}
	prefixes := []string{norm}
	if first, _, ok := strings.Cut(norm, " "); ok {
		prefixes = append(prefixes, first)
	}
	for _, prefix := range prefixes {
		entries, err := idx.Suggest(ctx, prefix, e.options.Suggestions)
		if err != nil {
			e.logger.Debug("title suggestion failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
			return nil
		}
		if len(entries) == 0 {
			continue
		}
		out := make([]string, len(entries))
		for i, entry := range entries {
			out[i] = entry.Title
		}
		return out
	}
	return nil
}

// ResolveID returns the real page with id.
//
// Outputs:
//
//	error - ErrUnknownPage if id is not a real page.
func (e *Engine) ResolveID(ctx context.Context, id graph.PageID) (Page, error) {
	idx, err := e.src.PageIndex(ctx)
	if err != nil {
		return Page{}, err
	}
	return e.page(ctx, idx, id)
}

func (e *Engine) page(ctx context.Context, idx pageindex.Index, id graph.PageID) (Page, error) {
	name, err := idx.Title(ctx, id)
	if errors.Is(err, pageindex.ErrNotFound) {
		return Page{}, fmt.Errorf("%w: id %d", ErrUnknownPage, id)
	}
	if err != nil {
		return Page{}, err
	}
	return Page{ID: id, Title: name}, nil
}

func (e *Engine) pages(ctx context.Context, ids []graph.PageID) ([]Page, error) {
	idx, err := e.src.PageIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Page, 0, len(ids))
	for _, id := range ids {
		p, err := e.page(ctx, idx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Links returns the pages that p links to.
//
// A real page without outgoing links has no adjacency entry; it yields an
// empty list, not an error.
func (e *Engine) Links(ctx context.Context, p Page) ([]Page, error) {
	fwd, err := e.src.Graph(ctx, graph.Forward)
	if err != nil {
		return nil, err
	}
	ids, err := fwd.Neighbors(p.ID)
	if errors.Is(err, graph.ErrNodeNotFound) {
		return []Page{}, nil
	}
	if err != nil {
		return nil, err
	}
	return e.pages(ctx, ids)
}

// Path finds a shortest chain of links from one page to another.
//
// Outputs:
//
//	*PathAnswer - Found is false and Path empty when to is unreachable.
//	error - Load or context errors.
func (e *Engine) Path(ctx context.Context, from, to Page) (*PathAnswer, error) {
	fwd, err := e.src.Graph(ctx, graph.Forward)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := fwd.ShortestPath(ctx, from.ID, to.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("path query",
		slog.Uint64("from_id", uint64(from.ID)),
		slog.Uint64("to_id", uint64(to.ID)),
		slog.Bool("found", res.Found),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	path, err := e.pages(ctx, res.Path)
	if err != nil {
		return nil, err
	}
	return &PathAnswer{From: from, To: to, Found: res.Found, Hops: res.Hops(), Path: path}, nil
}

// Furthest finds the page furthest from p along forward links.
func (e *Engine) Furthest(ctx context.Context, p Page) (*FurthestAnswer, error) {
	return e.eccentricity(ctx, graph.Forward, p)
}

// Max finds the page that needs the most steps to reach p, by running
// the furthest search on the reverse graph.
func (e *Engine) Max(ctx context.Context, p Page) (*FurthestAnswer, error) {
	return e.eccentricity(ctx, graph.Reverse, p)
}

func (e *Engine) eccentricity(ctx context.Context, dir graph.Direction, p Page) (*FurthestAnswer, error) {
	adj, err := e.src.Graph(ctx, dir)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := adj.Furthest(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("eccentricity query",
		slog.String("direction", dir.String()),
		slog.Uint64("page_id", uint64(p.ID)),
		slog.Int("distance", res.Distance),
		slog.Int("reached", res.Reached),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	idx, err := e.src.PageIndex(ctx)
	if err != nil {
		return nil, err
	}
	node, err := e.page(ctx, idx, res.Node)
	if err != nil {
		return nil, err
	}
	return &FurthestAnswer{Start: p, Node: node, Distance: res.Distance, Reached: res.Reached}, nil
}

// Diameter estimates the diameter of the forward graph.
//
// Description:
//
//	Runs the repeated furthest-node heuristic. The result is a lower bound
//	on the true diameter. Engine defaults are applied before opts.
func (e *Engine) Diameter(ctx context.Context, opts ...graph.DiameterOption) (*DiameterAnswer, error) {
	fwd, err := e.src.Graph(ctx, graph.Forward)
	if err != nil {
		return nil, err
	}
	all := append(append([]graph.DiameterOption{}, e.options.Diameter...), opts...)

	start := time.Now()
	res, err := fwd.EstimateDiameter(ctx, all...)
	if err != nil {
		return nil, err
	}
	e.logger.Info("diameter estimated",
		slog.Int("distance", res.Distance),
		slog.Int("sweeps", res.Sweeps),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	pages, err := e.pages(ctx, []graph.PageID{res.Start, res.End, res.Seed})
	if err != nil {
		return nil, err
	}
	return &DiameterAnswer{
		Start:    pages[0],
		End:      pages[1],
		Distance: res.Distance,
		Sweeps:   res.Sweeps,
		Seed:     pages[2],
	}, nil
}
