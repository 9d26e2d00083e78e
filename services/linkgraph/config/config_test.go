// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wikigraph/pkg/logging"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikigraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDataDir, EnvDumpDir, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, 5, cfg.Query.Patience)
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
data_dir: /srv/wikigraph
dump_dir: /srv/dumps
index:
  backend: badger
query:
  patience: 8
  seed: 42
server:
  port: 9000
  request_timeout: 5s
schemas:
  page:
    columns: [0, 2, 4]
    namespaces: [1]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/wikigraph", cfg.DataDir)
	assert.Equal(t, "/srv/dumps", cfg.DumpDir)
	assert.Equal(t, "badger", cfg.Index.Backend)
	assert.Equal(t, Default().Index.CacheSize, cfg.Index.CacheSize, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Query.Patience)
	require.NotNil(t, cfg.Query.Seed)
	assert.Equal(t, uint64(42), *cfg.Query.Seed)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 40, cfg.Server.Burst)

	page := cfg.Schemas["page"]
	assert.Equal(t, "page", page.Table, "table name is filled from the key")
	assert.Equal(t, []int{0, 2, 4}, page.Columns)

	layout := cfg.Layout()
	assert.Equal(t, "/srv/wikigraph", layout.DataDir)
	assert.Equal(t, "/srv/dumps", layout.DumpDir)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/env/data")
	t.Setenv(EnvDumpDir, "/env/dumps")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load(writeConfig(t, "data_dir: /file/data\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "/env/dumps", cfg.DumpDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		invalid bool
		want    string
	}{
		{name: "syntax", content: "data_dir: [unclosed\n", want: "failed to parse"},
		{name: "unknown key", content: "data_dri: x\n", want: "data_dri"},
		{name: "backend", content: "index:\n  backend: redis\n", invalid: true, want: "index.backend: must be one of [memory badger], got redis"},
		{name: "port", content: "server:\n  port: 70000\n", invalid: true, want: "server.port: must be at most 65535"},
		{name: "patience", content: "query:\n  patience: 0\n", invalid: true, want: "query.patience: must be at least 1"},
		{name: "log level", content: "logging:\n  level: loud\n", invalid: true, want: "logging.level"},
		{name: "empty data dir", content: "data_dir: \"\"\n", invalid: true, want: "data_dir: is required"},
		{name: "telemetry exporter", content: "telemetry:\n  trace_exporter: zipkin\n", invalid: true, want: "telemetry.trace_exporter"},
		{name: "schema columns", content: "schemas:\n  page:\n    columns: [0]\n", invalid: true, want: "schemas[page].columns"},
		{name: "schema table", content: "schemas:\n  categorylinks:\n    columns: [0, 1]\n", invalid: true, want: `unknown table "categorylinks"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conf", "wikigraph.yaml")

	require.NoError(t, WriteDefault(path))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg, "written defaults load back unchanged")

	assert.ErrorIs(t, WriteDefault(path), fs.ErrExist)
}

func TestDiameterOptions(t *testing.T) {
	cfg := Default()
	cfg.Query.Patience = 3

	o := graph.DefaultDiameterOptions()
	for _, opt := range cfg.DiameterOptions() {
		opt(&o)
	}
	assert.Equal(t, 3, o.Patience)
	assert.False(t, o.Seeded)

	seed := uint64(7)
	cfg.Query.Seed = &seed
	o = graph.DefaultDiameterOptions()
	for _, opt := range cfg.DiameterOptions() {
		opt(&o)
	}
	assert.True(t, o.Seeded)
	assert.Equal(t, uint64(7), o.Seed)
}

func TestLoggingFor(t *testing.T) {
	cfg := Default()
	cfg.Logging = LoggingConfig{Level: "warn", Dir: "/tmp/logs", JSON: true}

	got := cfg.LoggingFor("wikigraph-api")
	assert.Equal(t, logging.Config{
		Level:   logging.LevelWarn,
		LogDir:  "/tmp/logs",
		Service: "wikigraph-api",
		JSON:    true,
	}, got)
}
