// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for wikigraph.
//
// Packages record spans and instruments through otel.Tracer and otel.Meter
// directly. Init installs the providers those calls resolve to, so the
// exporter is chosen by configuration and never by code.
//
// # Trace Backends
//
//   - otlp: OTLP over gRPC (Jaeger, Tempo, any collector)
//   - stdout: pretty-printed spans on stderr
//   - none: no-op provider (default for the CLI)
//
// # Metric Backends
//
//   - prometheus: pull, served by MetricsHandler at /metrics
//   - stdout: periodic dump on stderr
//   - none: no-op provider
//
// stdout exporters write to stderr so that --json output on stdout stays
// parseable.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
