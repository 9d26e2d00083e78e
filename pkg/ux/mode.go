// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode defines how rich terminal output is.
type Mode string

const (
	// ModeRich enables colors, icons, boxes and spinners.
	ModeRich Mode = "rich"

	// ModePlain uses icons and basic formatting only, no animation.
	ModePlain Mode = "plain"

	// ModeMachine outputs plain text suitable for scripting and parsing.
	ModeMachine Mode = "machine"
)

// ModeEnv overrides the detected mode.
const ModeEnv = "WIKIGRAPH_OUTPUT"

var (
	currentMode = ModeRich
	modeMu      sync.RWMutex
)

// GetMode returns the current output mode.
func GetMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode updates the output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a string to a Mode. Unknown values map to ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "rich", "full", "r":
		return ModeRich
	case "plain", "minimal", "p":
		return ModePlain
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// InitMode picks the mode from the environment, then from whether stdout
// is a terminal.
func InitMode() {
	if env := os.Getenv(ModeEnv); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !IsTerminal(os.Stdout) {
		SetMode(ModeMachine)
		return
	}
	SetMode(ModeRich)
}

// IsTerminal reports whether f is a terminal, Cygwin terminals included.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if prompts should be shown on stdin.
func IsInteractive() bool {
	return GetMode() != ModeMachine && IsTerminal(os.Stdin)
}

// ShouldShowProgress returns true if spinners should animate.
func ShouldShowProgress() bool {
	return GetMode() == ModeRich
}

// ShouldShowColors returns true if output should be styled.
func ShouldShowColors() bool {
	return GetMode() != ModeMachine
}
