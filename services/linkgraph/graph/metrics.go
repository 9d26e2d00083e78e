// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

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

// Package-level meter for graph operations. Spans go through
// telemetry.StartSpan.
var meter = otel.Meter(telemetry.TracerGraph)

// Metrics for graph codec and query operations.
var (
	queryLatency metric.Float64Histogram
	queryReached metric.Int64Histogram
	codecLatency metric.Float64Histogram
	codecTotal   metric.Int64Counter
	edgesDecoded metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"wikigraph_query_duration_seconds",
			metric.WithDescription("Duration of graph traversals"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryReached, err = meter.Int64Histogram(
			"wikigraph_query_nodes",
			metric.WithDescription("Nodes reached or returned per traversal"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		codecLatency, err = meter.Float64Histogram(
			"wikigraph_codec_duration_seconds",
			metric.WithDescription("Duration of graph encode and decode operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		codecTotal, err = meter.Int64Counter(
			"wikigraph_codec_total",
			metric.WithDescription("Total number of graph encode and decode operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesDecoded, err = meter.Int64Histogram(
			"wikigraph_codec_edges",
			metric.WithDescription("Number of edges per encoded or decoded graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryMetrics records metrics for a traversal.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, nodes int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("query_type", queryType))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryReached.Record(ctx, int64(nodes), attrs)
}

// recordCodecMetrics records metrics for an encode or decode.
func recordCodecMetrics(ctx context.Context, op string, duration time.Duration, edges int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	codecLatency.Record(ctx, duration.Seconds(), attrs)
	codecTotal.Add(ctx, 1, attrs)
	if success {
		edgesDecoded.Record(ctx, int64(edges), metric.WithAttributes(attribute.String("op", op)))
	}
}

// startQuerySpan creates a span for a traversal.
func startQuerySpan(ctx context.Context, queryType string, start PageID) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, telemetry.TracerGraph, "Adjacency."+queryType,
		attribute.String("graph.query_type", queryType),
		attribute.Int64("graph.start_id", int64(start)),
	)
}
