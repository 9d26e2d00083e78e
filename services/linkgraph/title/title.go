// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package title converts page titles between the raw form found in dump
// tables and the display form shown to users.
//
// A raw title is a SQL string literal: wrapped in single quotes, with
// backslash escapes, and with underscores in place of spaces. The raw form
// is the join key between the page, redirect and pagelinks tables and is
// never decoded for that purpose; only real page titles are decoded, once,
// when the page index is written.
package title

import (
	"strings"
	"unicode/utf8"
)

// Decode converts a raw title to its display form.
//
// Description:
//
//	Strips one surrounding pair of single quotes if present, interprets the
//	escapes \b \f \n \r \t \\ \' \" and \xHH, collapses the SQL doubled
//	quote '' to ', and turns '_' into a space. All other bytes pass through
//	unchanged, so multi-byte UTF-8 stays intact. Text that is already in
//	display form and carries no backslash or doubled quote decodes to
//	itself.
//
// Inputs:
//
//	raw - The title as extracted from the dump.
//
// Outputs:
//
//	string - The display title.
//	error - *EscapeError wrapping ErrMalformedEscape or ErrInvalidUTF8.
func Decode(raw string) (string, error) {
	s := raw
	base := 0
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
		base = 1
	}

	if !strings.ContainsAny(s, "\\_'") {
		if !utf8.ValidString(s) {
			return "", &EscapeError{Raw: raw, Err: ErrInvalidUTF8}
		}
		return s, nil
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '_':
			out = append(out, ' ')
			continue
		case '\'':
			// SQL doubled quote.
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
			}
			out = append(out, '\'')
			continue
		case '\\':
		default:
			out = append(out, c)
			continue
		}

		if i+1 >= len(s) {
			return "", &EscapeError{Raw: raw, Offset: base + i, Err: ErrMalformedEscape}
		}
		esc := s[i+1]
		switch esc {
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\', '\'', '"':
			out = append(out, esc)
		case 'x':
			if i+3 >= len(s) {
				return "", &EscapeError{Raw: raw, Offset: base + i, Err: ErrMalformedEscape}
			}
			hi, ok1 := unhex(s[i+2])
			lo, ok2 := unhex(s[i+3])
			if !ok1 || !ok2 {
				return "", &EscapeError{Raw: raw, Offset: base + i, Err: ErrMalformedEscape}
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return "", &EscapeError{Raw: raw, Offset: base + i, Err: ErrMalformedEscape}
		}
		i++
	}

	if !utf8.Valid(out) {
		return "", &EscapeError{Raw: raw, Err: ErrInvalidUTF8}
	}
	return string(out), nil
}

// Normalize turns user input into the display form used for lookups.
//
// Surrounding whitespace is trimmed and underscores become spaces, so both
// "Albert_Einstein" and " Albert Einstein " find the same page.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
