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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/shell"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive query prompt (default)",
		Long: `Answer links, path, furthest, max and diameter questions interactively.
Graphs are loaded on the first command that needs them.

Type 'help' at the prompt for the list of commands and 'exit' to leave.`,
		Args: noArgs,
		RunE: a.runShell,
	}
}

func (a *app) runShell(cmd *cobra.Command, _ []string) error {
	s, err := a.openBuiltStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sh := shell.New(cmd.InOrStdin(), cmd.OutOrStdout(), a.newEngine(s),
		shell.WithLogger(a.slog()),
		shell.WithStyler(ux.NewStyler(ux.GetMode() == ux.ModeRich)),
		shell.WithDiameterOptions(a.cfg.DiameterOptions()...),
	)
	return sh.Run(cmd.Context())
}
