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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikigraph/pkg/logging"
	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/config"
	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
)

// serviceName tags logs and telemetry.
const serviceName = "wikigraph"

// annotationNoConfig skips config loading for a command.
const annotationNoConfig = "wikigraph/no-config"

// app holds the global flags and what the root command sets up from them.
type app struct {
	// Global flags
	configPath string
	dataDir    string
	logLevel   string
	jsonOutput bool

	cfg    *config.Config
	logger *logging.Logger
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wikigraph",
		Short: "Build and query the Wikipedia link graph",
		Long: `wikigraph turns the page, redirect and pagelinks tables of a Wikipedia
SQL dump into a directed link graph and answers questions about it.

Run without a subcommand to start the interactive shell.

Getting started:
  wikigraph config init         write wikigraph.yaml with defaults
  wikigraph build               extract the dumps and build the graph
  wikigraph path Tree Philosophy

Examples:
  wikigraph links "Alan Turing"
  wikigraph furthest Tree --json
  wikigraph diameter --seed 42
  wikigraph serve --preload`,
		Args:              noArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runShell,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Config file (default ./"+config.DefaultPath+" if present)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "",
		"Directory for tables and built artifacts (overrides data_dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides logging.level)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"Output as JSON for scripting")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newBuildCmd(a),
		newExtractCmd(a),
		newShellCmd(a),
		newLinksCmd(a),
		newPathCmd(a),
		newFurthestCmd(a),
		newMaxCmd(a),
		newDiameterCmd(a),
		newStatsCmd(a),
		newServeCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration and creates the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ux.Out, ux.ErrOut = cmd.OutOrStdout(), cmd.ErrOrStderr()
	if a.jsonOutput {
		ux.SetMode(ux.ModeMachine)
	} else {
		ux.InitMode()
	}

	if cmd.Annotations[annotationNoConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return &usageError{err: fmt.Errorf("--log-level: %w", err)}
		}
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	a.cfg = cfg

	lc := cfg.LoggingFor(serviceName)
	lc.Output = cmd.ErrOrStderr()
	a.logger = logging.New(lc)
	a.logger.Debug("configuration loaded",
		"data_dir", cfg.DataDir,
		"dump_dir", cfg.DumpDir,
		"index_backend", cfg.Index.Backend,
		"log_file", a.logger.FilePath(),
	)
	return nil
}

// close flushes the logger.
func (a *app) close() {
	if a.logger != nil {
		a.logger.Close()
	}
}

func (a *app) slog() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger.Slog()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// openStore opens the artifact store for the configured layout.
func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Layout(),
		store.WithLogger(a.slog()),
		store.WithIndexBackend(a.cfg.Index.Backend),
		store.WithCacheSize(a.cfg.Index.CacheSize),
	)
}

// openBuiltStore is openStore for commands that need built artifacts.
func (a *app) openBuiltStore() (*store.Store, error) {
	layout := a.cfg.Layout()
	if !layout.Built() {
		return nil, fmt.Errorf("%w in %s: run 'wikigraph build' first", store.ErrNotBuilt, layout.DataDir)
	}
	return a.openStore()
}

func (a *app) newEngine(s *store.Store) *engine.Engine {
	return engine.New(s,
		engine.WithLogger(a.slog()),
		engine.WithSuggestions(a.cfg.Query.Suggestions),
		engine.WithDiameterDefaults(a.cfg.DiameterOptions()...),
	)
}

// emit writes v as JSON with --json and calls text otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
	text(w)
	return nil
}

// reportError prints a failed command's error.
func (a *app) reportError(stdout, stderr io.Writer, err error) {
	if a.jsonOutput {
		result := map[string]any{
			"success": false,
			"error":   err.Error(),
		}
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if exitCode(err) == ExitBadArgs {
		fmt.Fprintln(stderr, "Run 'wikigraph --help' for usage.")
	}
}
