// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memSource serves A→B, A→D, B→C, C→D, an isolated page E and
// "Apple pie".
type memSource struct {
	forward, reverse *graph.Adjacency
	index            *pageindex.MemoryIndex
	graphErr         error
}

func newMemSource() *memSource {
	ls := graph.NewLinkSet()
	for _, e := range [][2]graph.PageID{{1, 2}, {1, 4}, {2, 3}, {3, 4}} {
		_ = ls.AddEdge(e[0], e[1])
	}
	fwd, rev := ls.Freeze()
	idx := pageindex.NewMemoryIndex()
	for id, name := range map[graph.PageID]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E", 6: "Apple pie"} {
		idx.Add(pageindex.Entry{ID: id, Title: name})
	}
	return &memSource{forward: fwd, reverse: rev, index: idx}
}

func (m *memSource) Graph(_ context.Context, dir graph.Direction) (*graph.Adjacency, error) {
	if m.graphErr != nil {
		return nil, m.graphErr
	}
	if dir == graph.Reverse {
		return m.reverse, nil
	}
	return m.forward, nil
}

func (m *memSource) PageIndex(context.Context) (pageindex.Index, error) {
	return m.index, nil
}

// fakeStatus reports a layout that is built when its files exist.
type fakeStatus struct {
	layout store.Layout
	loaded map[graph.Direction]bool
}

func (f *fakeStatus) Layout() store.Layout             { return f.layout }
func (f *fakeStatus) Loaded(dir graph.Direction) bool { return f.loaded[dir] }

func newStatus(t *testing.T, built bool) *fakeStatus {
	t.Helper()
	layout := store.Layout{DataDir: t.TempDir()}
	if built {
		for _, p := range []string{layout.PageIndex(), layout.Graph(graph.Forward), layout.Graph(graph.Reverse)} {
			require.NoError(t, os.WriteFile(p, nil, 0600))
		}
	}
	return &fakeStatus{layout: layout, loaded: map[graph.Direction]bool{graph.Forward: true}}
}

func newTestRouter(t *testing.T, src *memSource, cfg RouterConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := engine.New(src,
		engine.WithLogger(quietLogger),
		engine.WithDiameterDefaults(graph.WithStartNode(1)),
	)
	cfg.Logger = quietLogger
	return NewRouter(NewHandlers(eng, newStatus(t, true), quietLogger), cfg)
}

func get(t *testing.T, router http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func titles(pages []engine.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Title
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	var resp HealthResponse
	rec := get(t, router, "/v1/wikigraph/health", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandleReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eng := engine.New(newMemSource(), engine.WithLogger(quietLogger))

	t.Run("built", func(t *testing.T) {
		router := NewRouter(NewHandlers(eng, newStatus(t, true), quietLogger), RouterConfig{Logger: quietLogger})
		var resp ReadyResponse
		rec := get(t, router, "/v1/wikigraph/ready", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ReadyResponse{Ready: true, ForwardLoaded: true}, resp)
	})

	t.Run("not built", func(t *testing.T) {
		router := NewRouter(NewHandlers(eng, newStatus(t, false), quietLogger), RouterConfig{Logger: quietLogger})
		var resp ReadyResponse
		rec := get(t, router, "/v1/wikigraph/ready", &resp)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.False(t, resp.Ready)
	})
}

func TestHandlePage(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	t.Run("found with underscores", func(t *testing.T) {
		var page engine.Page
		rec := get(t, router, "/v1/wikigraph/pages?title=Apple_pie", &page)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, engine.Page{ID: 6, Title: "Apple pie"}, page)
	})

	t.Run("unknown with suggestions", func(t *testing.T) {
		var resp ErrorResponse
		rec := get(t, router, "/v1/wikigraph/pages?title=Apple", &resp)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeUnknownPage, resp.Code)
		assert.Equal(t, []string{"Apple pie"}, resp.Suggestions)
	})

	t.Run("missing title", func(t *testing.T) {
		var resp ErrorResponse
		rec := get(t, router, "/v1/wikigraph/pages", &resp)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeInvalidRequest, resp.Code)
		assert.Contains(t, resp.Error, "title")
	})
}

func TestHandleLinks(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	t.Run("links", func(t *testing.T) {
		var resp LinksResponse
		rec := get(t, router, "/v1/wikigraph/pages/1/links", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "A", resp.Page.Title)
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, []string{"B", "D"}, titles(resp.Links))
	})

	t.Run("page without links", func(t *testing.T) {
		var resp LinksResponse
		rec := get(t, router, "/v1/wikigraph/pages/5/links", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.Links)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := get(t, router, "/v1/wikigraph/pages/abc/links", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		var resp ErrorResponse
		rec := get(t, router, "/v1/wikigraph/pages/99/links", &resp)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeUnknownPage, resp.Code)
	})
}

func TestHandlePath(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	t.Run("found", func(t *testing.T) {
		var ans engine.PathAnswer
		rec := get(t, router, "/v1/wikigraph/path?from=A&to=C", &ans)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ans.Found)
		assert.Equal(t, 2, ans.Hops)
		assert.Equal(t, []string{"A", "B", "C"}, titles(ans.Path))
	})

	t.Run("unreachable", func(t *testing.T) {
		var ans engine.PathAnswer
		rec := get(t, router, "/v1/wikigraph/path?from=D&to=A", &ans)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, ans.Found)
		assert.Equal(t, -1, ans.Hops)
		assert.Empty(t, ans.Path)
	})

	t.Run("missing to", func(t *testing.T) {
		rec := get(t, router, "/v1/wikigraph/path?from=A", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown from", func(t *testing.T) {
		rec := get(t, router, "/v1/wikigraph/path?from=Zebra&to=A", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleFurthestAndMax(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	var ans engine.FurthestAnswer
	rec := get(t, router, "/v1/wikigraph/furthest?from=A", &ans)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C", ans.Node.Title)
	assert.Equal(t, 2, ans.Distance)

	rec = get(t, router, "/v1/wikigraph/max?to=D", &ans)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "D", ans.Start.Title)
	assert.Equal(t, "B", ans.Node.Title)
	assert.Equal(t, 2, ans.Distance)
}

func TestHandleDiameter(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	t.Run("estimate", func(t *testing.T) {
		var ans engine.DiameterAnswer
		rec := get(t, router, "/v1/wikigraph/diameter?patience=3&seed=9", &ans)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, ans.Distance)
		assert.Equal(t, "A", ans.Start.Title)
		assert.Equal(t, "C", ans.End.Title)
	})

	for _, q := range []string{"seed=x", "patience=0", "patience=-2"} {
		t.Run("bad "+q, func(t *testing.T) {
			rec := get(t, router, "/v1/wikigraph/diameter?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlers_NotBuilt(t *testing.T) {
	src := newMemSource()
	src.graphErr = fmt.Errorf("load forward graph: %w", store.ErrNotBuilt)
	router := newTestRouter(t, src, RouterConfig{})

	var resp ErrorResponse
	rec := get(t, router, "/v1/wikigraph/furthest?from=A", &resp)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeNotBuilt, resp.Code)
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&engine.PageNotFoundError{Title: "X"}, http.StatusNotFound, CodeUnknownPage},
		{fmt.Errorf("%w: id 9", engine.ErrUnknownPage), http.StatusNotFound, CodeUnknownPage},
		{store.ErrNotBuilt, http.StatusServiceUnavailable, CodeNotBuilt},
		{graph.ErrEmptyGraph, http.StatusUnprocessableEntity, CodeEmptyGraph},
		{fmt.Errorf("bfs: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, CodeQueryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, resp := errorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})

	t.Run("echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/wikigraph/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generated", func(t *testing.T) {
		rec := get(t, router, "/v1/wikigraph/health", nil)
		_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{RateLimit: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, get(t, router, "/v1/wikigraph/health", nil).Code)

	var resp ErrorResponse
	rec := get(t, router, "/v1/wikigraph/health", &resp)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, resp.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Timeout(time.Millisecond))
	router.GET("/", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusOK, c.Request.Context().Err().Error())
	})

	rec := get(t, router, "/", nil)
	assert.Equal(t, context.DeadlineExceeded.Error(), rec.Body.String())
}

func TestRouter_MetricsAndNoRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "wikigraph_up 1\n")
	})
	router := newTestRouter(t, newMemSource(), RouterConfig{MetricsHandler: metrics, RateLimit: 0.001, Burst: 1})

	for range 3 {
		rec := get(t, router, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "/metrics is not rate limited")
		assert.Equal(t, "wikigraph_up 1\n", rec.Body.String())
	}

	var resp ErrorResponse
	rec := get(t, router, "/v2/nothing", &resp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeInvalidRequest, resp.Code)
}

func TestServe(t *testing.T) {
	router := newTestRouter(t, newMemSource(), RouterConfig{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, router, time.Second, quietLogger) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/wikigraph/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
