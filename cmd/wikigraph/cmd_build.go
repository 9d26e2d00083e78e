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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/builder"
	"github.com/AleutianAI/wikigraph/services/linkgraph/extract"
	"github.com/AleutianAI/wikigraph/services/linkgraph/store"
)

func newBuildCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract missing tables and build the link graph",
		Long: `Extract any table whose TSV is missing from the dump directory, then
build the page index and the forward and reverse graphs.

Artifacts that already exist are kept unless --force is given. A failed
build leaves the previous artifacts untouched.

Examples:
  wikigraph build
  wikigraph build --force --data-dir /srv/wikigraph`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spin := ux.NewCountSpinner("Building link graph")
			spin.WithType(ux.SpinnerCompass)
			spin.Start()
			defer spin.Stop()

			report, err := store.Build(cmd.Context(), a.cfg.Layout(), store.BuildOptions{
				Force:        force,
				IndexBackend: a.cfg.Index.Backend,
				Schemas:      a.cfg.Schemas,
				Logger:       a.slog(),
				Progress: func(p builder.BuildProgress) {
					spin.SetCount(p.Rows, p.Phase.String()+" rows")
				},
				ExtractProgress: func(table string, s extract.Stats) {
					spin.SetCount(s.Written, table+" rows")
				},
			})
			spin.Stop()
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) { printBuildReport(report) })
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even when all artifacts exist")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract missing tables from the SQL dumps",
		Long: `Decompress the *-page.sql.gz, *-redirect.sql.gz and *-pagelinks.sql.gz
dumps in dump_dir and write one TSV per table into the data directory.
Tables that are already extracted are skipped.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spin := ux.NewCountSpinner("Extracting tables")
			spin.Start()
			defer spin.Stop()

			stats, err := store.EnsureExtracted(cmd.Context(), a.cfg.Layout(), store.BuildOptions{
				Schemas: a.cfg.Schemas,
				Logger:  a.slog(),
				ExtractProgress: func(table string, s extract.Stats) {
					spin.SetCount(s.Written, table+" rows")
				},
			})
			spin.Stop()
			if err != nil {
				return err
			}
			return a.emit(cmd, stats, func(w io.Writer) {
				if len(stats) == 0 {
					ux.Success("All tables already extracted")
					return
				}
				for _, table := range extract.Tables {
					s, ok := stats[table]
					if !ok {
						continue
					}
					ux.Success(fmt.Sprintf("%s: %s rows written, %s filtered, %s malformed",
						table, ux.FormatCount(s.Written), ux.FormatCount(s.Filtered), ux.FormatCount(s.Malformed)))
					if s.Malformed > 0 {
						ux.Warning(fmt.Sprintf("%s: %s tuples could not be parsed", table, ux.FormatCount(s.Malformed)))
					}
				}
			})
		},
	}
}

func printBuildReport(r *store.BuildReport) {
	if r.Skipped {
		ux.Success("Link graph is up to date")
		ux.Info("Use --force to rebuild")
		return
	}
	ux.Title("Build")
	b := r.Build
	ux.KeyValues([][2]string{
		{"pages", ux.FormatCount(b.Pages)},
		{"redirect pages", ux.FormatCount(b.RedirectPages)},
		{"redirects resolved", ux.FormatCount(b.RedirectsResolved)},
		{"redirects dangling", ux.FormatCount(b.RedirectsDangling)},
		{"links scanned", ux.FormatCount(b.LinksScanned)},
		{"links via redirect", ux.FormatCount(b.LinksViaRedirect)},
		{"links broken", ux.FormatCount(b.LinksBroken)},
		{"edges", ux.FormatCount(b.Edges)},
		{"malformed rows", ux.FormatCount(b.MalformedRows)},
		{"duration ms", strconv.FormatInt(b.DurationMilli, 10)},
	})
	if r.TitleIndexEntries > 0 {
		ux.KeyValues([][2]string{{"title index entries", ux.FormatCount(r.TitleIndexEntries)}})
	}
	ux.Success("Link graph built")
	warnSkipped(b)
}

// warnSkipped points at build input that was dropped.
func warnSkipped(b *builder.BuildStats) {
	if b.MalformedRows > 0 {
		ux.Warning(fmt.Sprintf("%s malformed rows skipped, see the log for the first of them",
			ux.FormatCount(b.MalformedRows)))
	}
	if b.DuplicateTitles > 0 {
		ux.Warning(fmt.Sprintf("%s pages share a title with a later page, which keeps the title",
			ux.FormatCount(b.DuplicateTitles)))
	}
}
