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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

var meter = otel.Meter(telemetry.TracerBuilder)

var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	pagesIndexed metric.Int64Histogram
	edgesCreated metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"wikigraph_build_duration_seconds",
			metric.WithDescription("Duration of link graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"wikigraph_build_total",
			metric.WithDescription("Total number of link graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pagesIndexed, err = meter.Int64Histogram(
			"wikigraph_build_pages",
			metric.WithDescription("Number of real pages indexed per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"wikigraph_build_edges",
			metric.WithDescription("Number of edges created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		pagesIndexed.Record(ctx, int64(stats.Pages))
		edgesCreated.Record(ctx, int64(stats.Edges))
	}
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, telemetry.TracerBuilder, "Builder.Build")
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, stats BuildStats) {
	span.SetAttributes(
		attribute.Int("build.pages", stats.Pages),
		attribute.Int("build.redirects_resolved", stats.RedirectsResolved),
		attribute.Int("build.links_scanned", stats.LinksScanned),
		attribute.Int("build.edges", stats.Edges),
	)
}
