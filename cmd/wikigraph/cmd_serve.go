// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/api"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host    string
		port    int
		preload bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve links, path, furthest, max and diameter queries as JSON under
/v1/wikigraph, with Prometheus metrics at /metrics.

Endpoints:
  GET /v1/wikigraph/health
  GET /v1/wikigraph/ready
  GET /v1/wikigraph/pages?title=
  GET /v1/wikigraph/pages/:id/links
  GET /v1/wikigraph/path?from=&to=
  GET /v1/wikigraph/furthest?from=
  GET /v1/wikigraph/max?to=
  GET /v1/wikigraph/diameter?seed=&patience=

Examples:
  wikigraph serve
  wikigraph serve --port 9090 --preload`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				if port < 0 || port > 65535 {
					return badArgs("--port must be between 0 and 65535, got %d", port)
				}
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("preload") {
				a.cfg.Server.Preload = preload
			}
			return a.serve(cmd.Context(), host)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Interface to listen on (default all)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default server.port)")
	cmd.Flags().BoolVar(&preload, "preload", false, "Load both graphs and the page index before listening")
	return cmd
}

func (a *app) serve(ctx context.Context, host string) error {
	logger := a.slog()
	srv := a.cfg.Server

	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if srv.Preload {
		if err := ux.WithSpinner("Loading link graph", func() error { return s.Preload(ctx) }); err != nil {
			return err
		}
	} else if !s.Layout().Built() {
		ux.Warning(fmt.Sprintf("link graph has not been built in %s; queries fail until 'wikigraph build' runs",
			s.Layout().DataDir))
	}

	router, err := a.newRouter(s)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(srv.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ux.Success("Serving on http://" + ln.Addr().String() + "/v1/wikigraph")
	return api.Serve(ctx, ln, router, srv.ShutdownTimeout, logger)
}

// newRouter wires the engine over s into the HTTP API.
func (a *app) newRouter(s *store.Store) (http.Handler, error) {
	if a.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics, err := telemetry.NewMetrics(otel.Meter(serviceName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	logger := a.slog()
	srv := a.cfg.Server
	handlers := api.NewHandlers(a.newEngine(s), s, logger)
	return api.NewRouter(handlers, api.RouterConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		RateLimit:      srv.RateLimit,
		Burst:          srv.Burst,
		RequestTimeout: srv.RequestTimeout,
		Metrics:        metrics,
		MetricsHandler: telemetry.MetricsHandler(),
		Logger:         logger,
	}), nil
}
