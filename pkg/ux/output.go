// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders wikigraph's terminal output.
//
// Results go to Out, diagnostics and progress go to ErrOut, so a command
// run with --json or WIKIGRAPH_OUTPUT=machine leaves stdout parseable.
// Every helper checks the output Mode: rich styles with lipgloss, plain
// keeps the icons, machine prints stable prefixes ("OK:", "WARN:",
// "ERROR:") and key=value lines.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles are the lipgloss styles shared by the helpers and Styler.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
}

// Icon is a status marker printed before a message.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// Render returns the icon in its status color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Out and ErrOut receive the helpers' output. Commands point them at the
// cobra command's writers; tests swap them.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

// Title prints a section heading. Silent in machine mode.
func Title(text string) {
	if GetMode() == ModeMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Title.Render(text))
}

// Success prints a completed step to Out.
func Success(text string) {
	status(Out, "OK", IconSuccess, Styles.Success, text)
}

// Warning prints a problem that did not stop the command to ErrOut,
// e.g. rows skipped during a build.
func Warning(text string) {
	status(ErrOut, "WARN", IconWarning, Styles.Warning, text)
}

// Error prints a failed step to ErrOut.
func Error(text string) {
	status(ErrOut, "ERROR", IconError, Styles.Error, text)
}

// Info prints a hint line to Out, e.g. how to rerun a command.
func Info(text string) {
	if GetMode() == ModeMachine {
		fmt.Fprintln(Out, text)
		return
	}
	fmt.Fprintf(Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

func status(w io.Writer, prefix string, icon Icon, style lipgloss.Style, text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(w, "%s: %s\n", prefix, text)
	case ModePlain:
		fmt.Fprintf(w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// KeyValues prints aligned "key  value" lines, in machine mode as
// key=value.
func KeyValues(pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	for _, p := range pairs {
		if GetMode() == ModeMachine {
			fmt.Fprintf(Out, "%s=%s\n", p[0], p[1])
			continue
		}
		key := p[0] + strings.Repeat(" ", width-len(p[0]))
		fmt.Fprintf(Out, "  %s  %s\n", Styles.Muted.Render(key), Styles.Bold.Render(p[1]))
	}
}
