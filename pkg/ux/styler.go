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

// Styler renders text with Styles when enabled and returns it unchanged
// otherwise. Components that write to an injected io.Writer use it instead
// of the print helpers.
type Styler struct {
	enabled bool
}

// NewStyler returns a Styler. Disabled stylers are used for pipes and tests.
func NewStyler(enabled bool) Styler {
	return Styler{enabled: enabled}
}

// Prompt styles an input prompt.
func (s Styler) Prompt(text string) string {
	return s.render(Styles.Subtitle.Render, text)
}

// Heading styles a result heading.
func (s Styler) Heading(text string) string {
	return s.render(Styles.Title.Render, text)
}

// Item styles one entry of a listing.
func (s Styler) Item(text string) string {
	return s.render(Styles.Bold.Render, text)
}

// Muted styles secondary text.
func (s Styler) Muted(text string) string {
	return s.render(Styles.Muted.Render, text)
}

// Error styles an error message.
func (s Styler) Error(text string) string {
	return s.render(Styles.Error.Render, text)
}

func (s Styler) render(fn func(...string) string, text string) string {
	if !s.enabled {
		return text
	}
	return fn(text)
}
