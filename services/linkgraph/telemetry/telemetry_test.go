// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig()
	assert.Equal(t, "wikigraph", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterPrometheus, cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
		assert.Equal(t, ExporterStdout, DefaultConfig().TraceExporter)
	})
}

func TestInit(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		var ctx context.Context
		_, err := Init(ctx, DefaultConfig())
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("no exporters", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = ExporterNone
		cfg.MetricExporter = ExporterNone

		shutdown, err := Init(context.Background(), cfg)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("stdout tracer", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = ExporterStdout
		cfg.MetricExporter = ExporterNone

		shutdown, err := Init(context.Background(), cfg)
		require.NoError(t, err)
		defer shutdown(context.Background())

		_, span := StartSpan(context.Background(), "wikigraph.test", "op")
		assert.True(t, span.SpanContext().IsValid())
		span.End()
	})

	t.Run("unknown exporter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = "carrier-pigeon"

		_, err := Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)

		cfg.TraceExporter = ExporterNone
		cfg.MetricExporter = "carrier-pigeon"
		_, err = Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})
}

func TestInit_PrometheusHandler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("wikigraph.test").Int64Counter("wikigraph_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	handler := MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wikigraph_test_events")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := NewMetrics(provider.Meter("wikigraph.test"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(MetricsMiddleware(metrics))
	router.GET("/pages/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/pages/1", "/pages/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "wikigraph_http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value(attribute.Key("route"))
				counts[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"/pages/:id": 2, "unmatched": 1}, counts)
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("no span", func(t *testing.T) {
		buf.Reset()
		LoggerWithTrace(context.Background(), logger).Info("hello")
		assert.NotContains(t, buf.String(), "trace_id")
		assert.Empty(t, TraceID(context.Background()))
		assert.Empty(t, SpanID(context.Background()))
	})

	t.Run("with span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())
		ctx, span := tp.Tracer("wikigraph.test").Start(context.Background(), "op")
		defer span.End()

		buf.Reset()
		LoggerWithTrace(ctx, logger).Info("hello")
		assert.Contains(t, buf.String(), `"trace_id":"`+TraceID(ctx)+`"`)
		assert.Contains(t, buf.String(), `"span_id":"`+SpanID(ctx)+`"`)
	})
}

func TestRecordError(t *testing.T) {
	RecordError(nil, errors.New("boom"))

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	end := func(name string, err error) sdktrace.ReadOnlySpan {
		_, span := StartSpan(context.Background(), TracerGraph, name, attribute.Int64("graph.start_id", 7))
		RecordError(span, err)
		span.End()
		ended := rec.Ended()
		return ended[len(ended)-1]
	}

	t.Run("nil error", func(t *testing.T) {
		span := end("ok", nil)
		assert.Equal(t, codes.Unset, span.Status().Code)
		assert.Empty(t, span.Events())
		assert.Contains(t, span.Attributes(), attribute.Int64("graph.start_id", 7))
	})

	t.Run("failure", func(t *testing.T) {
		span := end("failed", errors.New("corrupt"))
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.Equal(t, "corrupt", span.Status().Description)
	})

	t.Run("cancellation is not a failure", func(t *testing.T) {
		span := end("cancelled", fmt.Errorf("furthest: %w", context.Canceled))
		assert.Equal(t, codes.Unset, span.Status().Code)
		require.Len(t, span.Events(), 1)
		assert.Equal(t, "cancelled", span.Events()[0].Name)
	})
}
