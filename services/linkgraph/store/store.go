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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
)

// Options configures a Store.
type Options struct {
	// Logger receives load diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// IndexBackend is BackendMemory or BackendBadger. Empty means memory.
	IndexBackend string

	// CacheSize is the Badger index id → title cache capacity.
	CacheSize int
}

// Option is a functional option for configuring a Store.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithIndexBackend selects the page index backend.
func WithIndexBackend(backend string) Option {
	return func(o *Options) {
		o.IndexBackend = backend
	}
}

// WithCacheSize sets the Badger index cache capacity.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		o.CacheSize = n
	}
}

// slot holds one lazily loaded adjacency.
type slot struct {
	mu  sync.Mutex
	adj *graph.Adjacency
}

// Store loads graph artifacts on first use.
//
// Description:
//
//	Each direction and the page index are loaded at most once. A failed
//	load is not cached; the next call tries again. Loaded values are
//	immutable and shared by all callers.
//
// Thread Safety:
//
//	Safe for concurrent use. Concurrent first calls for the same direction
//	block on one load; different directions load independently.
type Store struct {
	layout  Layout
	options Options
	logger  *slog.Logger

	forward slot
	reverse slot

	indexMu sync.Mutex
	index   pageindex.Index
	closer  io.Closer

	closedMu sync.RWMutex
	closed   bool
}

// Open returns a Store over layout. Nothing is read until first use.
func Open(layout Layout, opts ...Option) (*Store, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	switch o.IndexBackend {
	case "":
		o.IndexBackend = BackendMemory
	case BackendMemory, BackendBadger:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, o.IndexBackend)
	}
	if o.CacheSize <= 0 {
		o.CacheSize = pageindex.DefaultCacheSize
	}
	return &Store{layout: layout, options: o, logger: loggerOr(o.Logger)}, nil
}

// Layout returns the artifact layout.
func (s *Store) Layout() Layout {
	return s.layout
}

func (s *Store) slotFor(dir graph.Direction) *slot {
	if dir == graph.Reverse {
		return &s.reverse
	}
	return &s.forward
}

// Graph returns the adjacency for dir, loading it on first use.
//
// Outputs:
//
//	*graph.Adjacency - Immutable graph.
//	error - ErrNotBuilt if the file is missing, graph.ErrCorruptGraph or
//	  graph.ErrUnsupportedVersion on a bad file, ctx errors.
func (s *Store) Graph(ctx context.Context, dir graph.Direction) (*graph.Adjacency, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	sl := s.slotFor(dir)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.adj != nil {
		return sl.adj, nil
	}

	adj, err := s.loadGraph(ctx, dir)
	if err != nil {
		return nil, err
	}
	sl.adj = adj
	return adj, nil
}

// Loaded reports whether dir has been loaded.
func (s *Store) Loaded(dir graph.Direction) bool {
	sl := s.slotFor(dir)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.adj != nil
}

func (s *Store) loadGraph(ctx context.Context, dir graph.Direction) (*graph.Adjacency, error) {
	path := s.layout.Graph(dir)
	start := time.Now()
	s.logger.Info("loading graph", slog.String("direction", dir.String()), slog.String("path", path))

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNotBuilt, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s graph: %w", dir, err)
	}
	defer f.Close()

	adj, err := graph.Decode(ctx, bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("load %s graph: %w", dir, err)
	}

	s.logger.Info("graph loaded",
		slog.String("direction", dir.String()),
		slog.Int("sources", adj.SourceCount()),
		slog.Int("edges", adj.EdgeCount()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return adj, nil
}

// PageIndex returns the page index, loading it on first use.
func (s *Store) PageIndex(ctx context.Context) (pageindex.Index, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.index != nil {
		return s.index, nil
	}

	start := time.Now()
	switch s.options.IndexBackend {
	case BackendBadger:
		if !exists(s.layout.TitleIndex()) {
			return nil, fmt.Errorf("%w: %s not found", ErrNotBuilt, s.layout.TitleIndex())
		}
		b, err := pageindex.OpenBadger(ctx, s.layout.TitleIndex(), s.options.CacheSize, s.logger)
		if err != nil {
			return nil, err
		}
		s.index, s.closer = b, b
	default:
		f, err := os.Open(s.layout.PageIndex())
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNotBuilt, s.layout.PageIndex())
		}
		if err != nil {
			return nil, fmt.Errorf("open page index: %w", err)
		}
		defer f.Close()
		m, err := pageindex.LoadMemory(ctx, bufio.NewReaderSize(f, 1<<20), s.logger)
		if err != nil {
			return nil, err
		}
		s.index = m
	}

	s.logger.Info("page index loaded",
		slog.String("backend", s.options.IndexBackend),
		slog.Int("pages", s.index.Len()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return s.index, nil
}

// Preload loads both graphs and the page index concurrently.
func (s *Store) Preload(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, dir := range []graph.Direction{graph.Forward, graph.Reverse} {
		g.Go(func() error {
			_, err := s.Graph(gCtx, dir)
			return err
		})
	}
	g.Go(func() error {
		_, err := s.PageIndex(gCtx)
		return err
	})
	return g.Wait()
}

// Stats summarizes both graphs and the page index.
type Stats struct {
	Pages   int         `json:"pages"`
	Forward graph.Stats `json:"forward"`
	Reverse graph.Stats `json:"reverse"`
}

// Stats loads everything and summarizes it.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.Preload(ctx); err != nil {
		return nil, err
	}
	fwd, err := s.Graph(ctx, graph.Forward)
	if err != nil {
		return nil, err
	}
	rev, err := s.Graph(ctx, graph.Reverse)
	if err != nil {
		return nil, err
	}
	idx, err := s.PageIndex(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Pages: idx.Len(), Forward: fwd.Stats(), Reverse: rev.Stats()}, nil
}

// Close releases the page index. Loaded graphs remain usable by callers
// that already hold them.
func (s *Store) Close() error {
	s.closedMu.Lock()
	if s.closed {
		s.closedMu.Unlock()
		return nil
	}
	s.closed = true
	s.closedMu.Unlock()

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Store) checkOpen() error {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
