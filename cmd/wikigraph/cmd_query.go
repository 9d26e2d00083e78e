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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/api"
	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

func newLinksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "links PAGE",
		Short: "List all the links on a page",
		Long: `List the pages a page links to, after redirects are resolved.

Titles may use spaces or underscores.

Examples:
  wikigraph links "Alan Turing"
  wikigraph links Alan_Turing --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, func(ctx context.Context, eng *engine.Engine) error {
				page, err := eng.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				links, err := eng.Links(ctx, page)
				if err != nil {
					return err
				}
				resp := api.LinksResponse{Page: page, Count: len(links), Links: links}
				return a.emit(cmd, resp, func(w io.Writer) {
					fmt.Fprintf(w, "%d links:\n", resp.Count)
					for _, l := range links {
						fmt.Fprintln(w, l.Title)
					}
				})
			})
		},
	}
}

func newPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path FROM TO",
		Short: "Find the shortest path from one page to another",
		Long: `Find a shortest chain of links from one page to another.

Examples:
  wikigraph path Tree Philosophy
  wikigraph path "Kevin Bacon" Mathematics --json`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, func(ctx context.Context, eng *engine.Engine) error {
				from, err := eng.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				to, err := eng.Resolve(ctx, args[1])
				if err != nil {
					return err
				}
				ans, err := eng.Path(ctx, from, to)
				if err != nil {
					return err
				}
				return a.emit(cmd, ans, func(w io.Writer) {
					if !ans.Found {
						fmt.Fprintln(w, "No path found.")
						return
					}
					fmt.Fprintf(w, "Reachable in %d steps:\n", ans.Hops)
					for _, p := range ans.Path {
						fmt.Fprintln(w, p.Title)
					}
				})
			})
		},
	}
}

func newFurthestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "furthest PAGE",
		Short: "Find the page furthest away from a starting point",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, func(ctx context.Context, eng *engine.Engine) error {
				start, err := eng.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				ans, err := eng.Furthest(ctx, start)
				if err != nil {
					return err
				}
				return a.emit(cmd, ans, func(w io.Writer) {
					fmt.Fprintf(w, "The furthest page is '%s' at %d steps.\n", ans.Node.Title, ans.Distance)
				})
			})
		},
	}
}

func newMaxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "max PAGE",
		Short: "Find the maximal number of steps needed to get to a page from anywhere",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, func(ctx context.Context, eng *engine.Engine) error {
				target, err := eng.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				ans, err := eng.Max(ctx, target)
				if err != nil {
					return err
				}
				return a.emit(cmd, ans, func(w io.Writer) {
					fmt.Fprintf(w, "The maximal number of steps needed is %d from page '%s'.\n", ans.Distance, ans.Node.Title)
				})
			})
		},
	}
}

func newDiameterCmd(a *app) *cobra.Command {
	var (
		seed     uint64
		patience int
	)

	cmd := &cobra.Command{
		Use:   "diameter",
		Short: "Approximate the diameter of the link graph",
		Long: `Estimate how far apart the two most distant pages are with repeated
breadth-first sweeps. Each sweep starts from the end of the previous one;
the estimate stops after --patience sweeps without improvement.

Examples:
  wikigraph diameter
  wikigraph diameter --seed 42 --patience 10`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []graph.DiameterOption
			if cmd.Flags().Changed("seed") {
				opts = append(opts, graph.WithSeed(seed))
			}
			if cmd.Flags().Changed("patience") {
				if patience < 1 {
					return badArgs("--patience must be at least 1, got %d", patience)
				}
				opts = append(opts, graph.WithPatience(patience))
			}

			return a.query(cmd, func(ctx context.Context, eng *engine.Engine) error {
				spin := ux.NewSpinner("Estimating diameter")
				spin.Start()
				ans, err := eng.Diameter(ctx, opts...)
				spin.Stop()
				if err != nil {
					return err
				}
				return a.emit(cmd, ans, func(w io.Writer) {
					fmt.Fprintf(w, "The estimated diameter is %d.\n", ans.Distance)
					fmt.Fprintf(w, "when going from '%s'\n", ans.Start.Title)
					fmt.Fprintf(w, "to '%s'.\n", ans.End.Title)
				})
			})
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for a reproducible estimate (default from config, else random)")
	cmd.Flags().IntVar(&patience, "patience", 0, "Sweeps without improvement before stopping (default from config)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show page, node and edge counts of both graphs",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openBuiltStore()
			if err != nil {
				return err
			}
			defer s.Close()

			spin := ux.NewSpinner("Loading link graph")
			spin.Start()
			stats, err := s.Stats(cmd.Context())
			spin.Stop()
			if err != nil {
				return err
			}
			return a.emit(cmd, stats, func(io.Writer) {
				ux.Title("Link graph")
				ux.KeyValues([][2]string{
					{"pages", ux.FormatCount(stats.Pages)},
					{"edges", ux.FormatCount(stats.Forward.Edges)},
					{"pages with links", ux.FormatCount(stats.Forward.Sources)},
					{"pages linked to", ux.FormatCount(stats.Reverse.Sources)},
					{"max out degree", fmt.Sprintf("%s (page %d)", ux.FormatCount(stats.Forward.MaxDegree), stats.Forward.MaxDegreeNode)},
					{"max in degree", fmt.Sprintf("%s (page %d)", ux.FormatCount(stats.Reverse.MaxDegree), stats.Reverse.MaxDegreeNode)},
				})
			})
		},
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// query opens the built store and runs fn with an engine over it.
func (a *app) query(cmd *cobra.Command, fn func(ctx context.Context, eng *engine.Engine) error) error {
	s, err := a.openBuiltStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), a.newEngine(s))
}
