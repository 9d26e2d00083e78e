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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// RegisterRoutes registers all link graph routes with the router.
//
// Description:
//
//	Registers the /wikigraph/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET /v1/wikigraph/health - Health check
//	GET /v1/wikigraph/ready - Readiness check
//	GET /v1/wikigraph/pages?title= - Resolve a title
//	GET /v1/wikigraph/pages/:id/links - Links on a page
//	GET /v1/wikigraph/path?from=&to= - Shortest path
//	GET /v1/wikigraph/furthest?from= - Furthest page from a start
//	GET /v1/wikigraph/max?to= - Page needing the most steps to a target
//	GET /v1/wikigraph/diameter?seed=&patience= - Diameter estimate
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	wg := rg.Group("/wikigraph")
	{
		wg.GET("/health", handlers.HandleHealth)
		wg.GET("/ready", handlers.HandleReady)

		wg.GET("/pages", handlers.HandlePage)
		wg.GET("/pages/:id/links", handlers.HandleLinks)

		wg.GET("/path", handlers.HandlePath)
		wg.GET("/furthest", handlers.HandleFurthest)
		wg.GET("/max", handlers.HandleMax)
		wg.GET("/diameter", handlers.HandleDiameter)
	}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// RateLimit and Burst configure the token bucket. RateLimit 0 disables it.
	RateLimit float64
	Burst     int

	// RequestTimeout bounds each request. 0 disables it.
	RequestTimeout time.Duration

	// Metrics records HTTP metrics. Nil disables them.
	Metrics *telemetry.Metrics

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler

	// Logger receives access and error logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewRouter builds the gin engine with middleware and routes.
//
// Description:
//
//	Middleware order: recovery, request id, tracing, metrics, access log,
//	rate limit, timeout. Rejected requests are therefore still traced,
//	counted and logged. /metrics is mounted outside /v1 and is not rate
//	limited.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "wikigraph"
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), otelgin.Middleware(serviceName))
	if cfg.Metrics != nil {
		router.Use(telemetry.MetricsMiddleware(cfg.Metrics))
	}
	router.Use(AccessLog(logger))

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/v1", RateLimit(cfg.RateLimit, cfg.Burst, cfg.Metrics), Timeout(cfg.RequestTimeout))
	RegisterRoutes(v1, handlers)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no such endpoint: " + c.Request.URL.Path, Code: CodeInvalidRequest})
	})
	return router
}
