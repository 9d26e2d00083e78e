// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// capture redirects Out and ErrOut for the duration of f.
func capture(t *testing.T, mode Mode, f func()) (stdout, stderr string) {
	t.Helper()
	origMode, origOut, origErr := GetMode(), Out, ErrOut
	defer func() {
		SetMode(origMode)
		Out, ErrOut = origOut, origErr
	}()

	var o, e bytes.Buffer
	Out, ErrOut = &o, &e
	SetMode(mode)
	f()
	return o.String(), e.String()
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"rich":    ModeRich,
		"FULL":    ModeRich,
		"plain":   ModePlain,
		"machine": ModeMachine,
		"q":       ModeMachine,
		"bogus":   ModePlain,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitMode_FromEnv(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)

	t.Setenv(ModeEnv, "machine")
	InitMode()
	if GetMode() != ModeMachine {
		t.Errorf("expected machine mode from env, got %v", GetMode())
	}
	if ShouldShowColors() || ShouldShowProgress() {
		t.Error("machine mode must not style or animate")
	}
}

func TestIsTerminal_Nil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}
}

// =============================================================================
// Print Helper Tests
// =============================================================================

func TestSuccess_MachineMode(t *testing.T) {
	out, _ := capture(t, ModeMachine, func() { Success("built") })
	if out != "OK: built\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestError_GoesToStderr(t *testing.T) {
	out, errOut := capture(t, ModePlain, func() { Error("boom") })
	if out != "" {
		t.Errorf("stdout should be empty, got %q", out)
	}
	if !strings.Contains(errOut, "boom") {
		t.Errorf("stderr should contain message, got %q", errOut)
	}
}

func TestWarning(t *testing.T) {
	out, errOut := capture(t, ModeMachine, func() { Warning("3 malformed rows skipped") })
	if out != "" || errOut != "WARN: 3 malformed rows skipped\n" {
		t.Errorf("machine: stdout=%q stderr=%q", out, errOut)
	}

	_, errOut = capture(t, ModePlain, func() { Warning("skipped") })
	if errOut != string(IconWarning)+" skipped\n" {
		t.Errorf("plain: stderr=%q", errOut)
	}
}

func TestInfo(t *testing.T) {
	out, _ := capture(t, ModeMachine, func() { Info("Use --force to rebuild") })
	if out != "Use --force to rebuild\n" {
		t.Errorf("machine: %q", out)
	}

	out, _ = capture(t, ModePlain, func() { Info("hint") })
	if !strings.HasSuffix(out, " hint\n") || !strings.Contains(out, "│") {
		t.Errorf("plain: %q", out)
	}
}

func TestTitle_SilentInMachineMode(t *testing.T) {
	out, _ := capture(t, ModeMachine, func() { Title("Stats") })
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestKeyValues(t *testing.T) {
	pairs := [][2]string{{"pages", "4"}, {"edges", "12"}}

	out, _ := capture(t, ModeMachine, func() { KeyValues(pairs) })
	if out != "pages=4\nedges=12\n" {
		t.Errorf("unexpected machine output %q", out)
	}

	out, _ = capture(t, ModePlain, func() { KeyValues(pairs) })
	if !strings.Contains(out, "pages") || !strings.Contains(out, "12") {
		t.Errorf("unexpected plain output %q", out)
	}
}

// =============================================================================
// Spinner Tests
// =============================================================================

func TestSpinner_MachineModePrintsOnce(t *testing.T) {
	_, errOut := capture(t, ModeMachine, func() {
		spin := NewSpinner("Loading graph")
		spin.Start()
		spin.Start()
		spin.Stop()
		spin.Stop()
	})
	if errOut != "PROGRESS: Loading graph\n" {
		t.Errorf("unexpected output %q", errOut)
	}
}

func TestWithSpinner(t *testing.T) {
	boom := errors.New("boom")
	out, errOut := capture(t, ModeMachine, func() {
		if err := WithSpinner("step", func() error { return nil }); err != nil {
			t.Errorf("unexpected error %v", err)
		}
		if err := WithSpinner("step", func() error { return boom }); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
	if !strings.Contains(out, "OK: step") {
		t.Errorf("missing success line in %q", out)
	}
	if !strings.Contains(errOut, "ERROR: step: boom") {
		t.Errorf("missing error line in %q", errOut)
	}
}

func TestSpinner_RichModeAnimates(t *testing.T) {
	_, errOut := capture(t, ModeRich, func() {
		spin := NewCountSpinner("Scanning").WithType(SpinnerCompass)
		spin.Start()
		spin.Stop()
	})
	if !strings.HasSuffix(errOut, "\r\033[K") {
		t.Errorf("spinner should clear its line on stop, got %q", errOut)
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		123456789: "123,456,789",
		-1234:     "-1,234",
	}
	for in, want := range tests {
		if got := FormatCount(in); got != want {
			t.Errorf("FormatCount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestStyler_Disabled(t *testing.T) {
	s := NewStyler(false)
	for _, got := range []string{s.Prompt("x"), s.Heading("x"), s.Item("x"), s.Muted("x"), s.Error("x")} {
		if got != "x" {
			t.Errorf("disabled styler changed text to %q", got)
		}
	}
}
