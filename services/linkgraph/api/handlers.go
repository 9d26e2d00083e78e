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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// Querier answers title queries. *engine.Engine implements it.
type Querier interface {
	Resolve(ctx context.Context, title string) (engine.Page, error)
	ResolveID(ctx context.Context, id graph.PageID) (engine.Page, error)
	Links(ctx context.Context, p engine.Page) ([]engine.Page, error)
	Path(ctx context.Context, from, to engine.Page) (*engine.PathAnswer, error)
	Furthest(ctx context.Context, p engine.Page) (*engine.FurthestAnswer, error)
	Max(ctx context.Context, p engine.Page) (*engine.FurthestAnswer, error)
	Diameter(ctx context.Context, opts ...graph.DiameterOption) (*engine.DiameterAnswer, error)
}

// Status reports artifact and load state. *store.Store implements it.
type Status interface {
	Layout() store.Layout
	Loaded(dir graph.Direction) bool
}

// Handlers contains the HTTP handlers for the link graph endpoints.
//
// Thread Safety: Safe for concurrent use when the Querier is.
type Handlers struct {
	q      Querier
	status Status
	logger *slog.Logger
}

// NewHandlers creates handlers over q. A nil logger uses slog.Default().
func NewHandlers(q Querier, status Status, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{q: q, status: status, logger: logger}
}

// HandleHealth handles GET /v1/wikigraph/health.
//
// Description:
//
//	Returns 200 whenever the process is serving.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/wikigraph/ready.
//
// Description:
//
//	Ready once the page index and both graphs exist on disk. Graphs that
//	are not loaded yet are loaded by the first query that needs them.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false), artifacts missing
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{
		Ready:         h.status.Layout().Built(),
		ForwardLoaded: h.status.Loaded(graph.Forward),
		ReverseLoaded: h.status.Loaded(graph.Reverse),
	}
	if !resp.Ready {
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePage handles GET /v1/wikigraph/pages?title=.
//
// Response:
//
//	200 OK: engine.Page
//	400 Bad Request: missing title
//	404 Not Found: unknown title, with suggestions
func (h *Handlers) HandlePage(c *gin.Context) {
	page, ok := h.resolveParam(c, "title")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleLinks handles GET /v1/wikigraph/pages/:id/links.
//
// Response:
//
//	200 OK: LinksResponse
//	400 Bad Request: malformed id
//	404 Not Found: id is not a real page
func (h *Handlers) HandleLinks(c *gin.Context) {
	id, err := graph.ParsePageID(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid page id: "+c.Param("id"))
		return
	}
	ctx := c.Request.Context()
	page, err := h.q.ResolveID(ctx, id)
	if err != nil {
		h.fail(c, "links", err)
		return
	}
	links, err := h.q.Links(ctx, page)
	if err != nil {
		h.fail(c, "links", err)
		return
	}
	c.JSON(http.StatusOK, LinksResponse{Page: page, Count: len(links), Links: links})
}

// HandlePath handles GET /v1/wikigraph/path?from=&to=.
//
// Response:
//
//	200 OK: engine.PathAnswer (Found=false when unreachable)
//	400 Bad Request: missing parameter
//	404 Not Found: unknown title
func (h *Handlers) HandlePath(c *gin.Context) {
	from, ok := h.resolveParam(c, "from")
	if !ok {
		return
	}
	to, ok := h.resolveParam(c, "to")
	if !ok {
		return
	}
	ans, err := h.q.Path(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "path", err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// HandleFurthest handles GET /v1/wikigraph/furthest?from=.
func (h *Handlers) HandleFurthest(c *gin.Context) {
	from, ok := h.resolveParam(c, "from")
	if !ok {
		return
	}
	ans, err := h.q.Furthest(c.Request.Context(), from)
	if err != nil {
		h.fail(c, "furthest", err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// HandleMax handles GET /v1/wikigraph/max?to=.
func (h *Handlers) HandleMax(c *gin.Context) {
	to, ok := h.resolveParam(c, "to")
	if !ok {
		return
	}
	ans, err := h.q.Max(c.Request.Context(), to)
	if err != nil {
		h.fail(c, "max", err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// HandleDiameter handles GET /v1/wikigraph/diameter.
//
// Query Parameters:
//
//	seed: uint64 seed for a reproducible estimate (optional)
//	patience: non-improving sweeps tolerated (optional)
//
// Response:
//
//	200 OK: engine.DiameterAnswer
//	400 Bad Request: malformed parameter
//	422 Unprocessable Entity: the graph has no links
func (h *Handlers) HandleDiameter(c *gin.Context) {
	var opts []graph.DiameterOption
	if s := c.Query("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.badRequest(c, "invalid seed: "+s)
			return
		}
		opts = append(opts, graph.WithSeed(seed))
	}
	if s := c.Query("patience"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.badRequest(c, "invalid patience: "+s)
			return
		}
		opts = append(opts, graph.WithPatience(n))
	}

	ans, err := h.q.Diameter(c.Request.Context(), opts...)
	if err != nil {
		h.fail(c, "diameter", err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// resolveParam resolves the title in query parameter name. On failure it
// writes the error response and returns false.
func (h *Handlers) resolveParam(c *gin.Context, name string) (engine.Page, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		h.badRequest(c, "missing query parameter: "+name)
		return engine.Page{}, false
	}
	page, err := h.q.Resolve(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, "resolve", err)
		return engine.Page{}, false
	}
	return page, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}

// fail maps err to a status code and writes the error response.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status, resp := errorResponse(err)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With(
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("op", op),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("query failed", slog.String("error", err.Error()))
	} else {
		logger.Debug("query rejected", slog.String("error", err.Error()), slog.String("code", resp.Code))
	}
	c.AbortWithStatusJSON(status, resp)
}

// errorResponse maps domain errors to HTTP.
func errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}
	var nf *engine.PageNotFoundError

	switch {
	case errors.As(err, &nf):
		resp.Code = CodeUnknownPage
		resp.Suggestions = nf.Suggestions
		return http.StatusNotFound, resp
	case errors.Is(err, engine.ErrUnknownPage):
		resp.Code = CodeUnknownPage
		return http.StatusNotFound, resp
	case errors.Is(err, store.ErrNotBuilt):
		resp.Code = CodeNotBuilt
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, graph.ErrEmptyGraph):
		resp.Code = CodeEmptyGraph
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = CodeTimeout
		return http.StatusGatewayTimeout, resp
	default:
		resp.Code = CodeQueryFailed
		return http.StatusInternalServerError, resp
	}
}
