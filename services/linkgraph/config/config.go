// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads wikigraph.yaml.
//
// Example file:
//
//	data_dir: ./data
//	dump_dir: ./dumps
//	index:
//	  backend: badger
//	  cache_size: 10000
//	query:
//	  patience: 5
//	server:
//	  port: 8080
//	  rate_limit: 20
//	  burst: 40
//	logging:
//	  level: info
//	schemas:
//	  page:
//	    columns: [0, 2, 4]
//	    namespaces: [1]
package config

import (
	"errors"
	"time"

	"github.com/AleutianAI/wikigraph/services/linkgraph/extract"
	"github.com/AleutianAI/wikigraph/services/linkgraph/pageindex"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "wikigraph.yaml"

// Environment variables that override file values.
const (
	EnvDataDir  = "WIKIGRAPH_DATA_DIR"
	EnvDumpDir  = "WIKIGRAPH_DUMP_DIR"
	EnvLogLevel = "WIKIGRAPH_LOG_LEVEL"
)

// ErrInvalidConfig is returned when a loaded config fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of wikigraph.yaml.
type Config struct {
	// DataDir holds extracted tables and built artifacts.
	DataDir string `yaml:"data_dir" validate:"required"`

	// DumpDir holds the *-page.sql.gz, *-redirect.sql.gz and
	// *-pagelinks.sql.gz downloads. Empty disables extraction.
	DumpDir string `yaml:"dump_dir"`

	Index     IndexConfig      `yaml:"index"`
	Query     QueryConfig      `yaml:"query"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Schemas override the default column layouts, keyed by table name.
	Schemas map[string]extract.Schema `yaml:"schemas,omitempty" validate:"omitempty,dive"`
}

// IndexConfig selects the page index backend.
type IndexConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory badger"`
	CacheSize int    `yaml:"cache_size" validate:"gte=0"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	// Patience is the number of non-improving diameter sweeps allowed.
	Patience int `yaml:"patience" validate:"gte=1"`

	// Seed makes diameter estimates reproducible. Nil picks a random seed.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Suggestions caps "did you mean" titles for unknown pages.
	Suggestions int `yaml:"suggestions" validate:"gte=0,lte=50"`
}

// ServerConfig configures wikigraph serve.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// RateLimit is the sustained requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=1"`

	// Preload loads both graphs and the page index before listening.
	Preload bool `yaml:"preload"`

	// RequestTimeout bounds a single query.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables JSON file logs.
	Dir string `yaml:"dir"`

	// JSON switches console logs to JSON.
	JSON bool `yaml:"json"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir: "data",
		Index: IndexConfig{
			Backend:   store.BackendMemory,
			CacheSize: pageindex.DefaultCacheSize,
		},
		Query: QueryConfig{
			Patience:    5,
			Suggestions: 5,
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimit:       20,
			Burst:           40,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Layout returns the on-disk layout described by the config.
func (c *Config) Layout() store.Layout {
	return store.Layout{DataDir: c.DataDir, DumpDir: c.DumpDir}
}
