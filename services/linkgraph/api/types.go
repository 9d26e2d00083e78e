// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves link graph queries over HTTP.
//
// All endpoints are GET requests under /v1/wikigraph and answer JSON. Page
// titles are passed as query parameters and resolved exactly like the
// shell does; unknown titles answer 404 with suggestions.
package api

import (
	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknownPage    = "UNKNOWN_PAGE"
	CodeNotBuilt       = "NOT_BUILT"
	CodeEmptyGraph     = "EMPTY_GRAPH"
	CodeTimeout        = "TIMEOUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeQueryFailed    = "QUERY_FAILED"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Suggestions are titles close to an unknown page.
	Suggestions []string `json:"suggestions,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	// Ready is true once the artifacts have been built.
	Ready bool `json:"ready"`

	// ForwardLoaded and ReverseLoaded report which graphs are in memory.
	ForwardLoaded bool `json:"forward_loaded"`
	ReverseLoaded bool `json:"reverse_loaded"`
}

// LinksResponse is returned by GET /pages/:id/links.
type LinksResponse struct {
	Page  engine.Page   `json:"page"`
	Count int           `json:"count"`
	Links []engine.Page `json:"links"`
}
