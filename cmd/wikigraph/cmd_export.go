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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/export"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		sqlitePath string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the link graph for ad-hoc analysis",
		Long: `Write the pages and forward links to a SQLite database with the tables
pages(id, title) and links(from_id, to_id).

Examples:
  wikigraph export --sqlite wiki.db
  sqlite3 wiki.db "SELECT COUNT(*) FROM links"`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sqlitePath == "" {
				return badArgs("--sqlite is required")
			}
			s, err := a.openBuiltStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			fwd, err := s.Graph(ctx, graph.Forward)
			if err != nil {
				return err
			}
			pages, err := os.Open(s.Layout().PageIndex())
			if err != nil {
				return fmt.Errorf("open page index: %w", err)
			}
			defer pages.Close()

			spin := ux.NewSpinner("Exporting to " + sqlitePath)
			spin.Start()
			report, err := export.SQLite(ctx, sqlitePath, pages, fwd, export.Options{
				Overwrite: overwrite,
				Logger:    a.slog(),
			})
			spin.Stop()
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(io.Writer) {
				ux.Success(fmt.Sprintf("Exported %s pages and %s links to %s",
					ux.FormatCount(report.Pages), ux.FormatCount(report.Links), report.Path))
			})
		},
	}
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Output SQLite database file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	return cmd
}
