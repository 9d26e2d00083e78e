// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"errors"
)

// errTuple is returned by parseTuples when the VALUES list is malformed.
// The offset of the failure is carried by tupleSyntaxError.
var errTuple = errors.New("malformed tuple")

type tupleSyntaxError struct {
	offset int
	reason string
}

func (e *tupleSyntaxError) Error() string {
	return e.reason
}

func (e *tupleSyntaxError) Unwrap() error {
	return errTuple
}

// parseTuples tokenizes a VALUES list: (f, f, ...),(f, ...),...;
//
// Description:
//
//	Fields are returned as sub-slices of s, so they are only valid until
//	the next line is read. Quoted strings are returned with their quotes
//	and escapes intact; a backslash always escapes the following byte. A
//	quote doubled inside a string ('') is also treated as an escaped quote.
//
//	fn is called for every complete tuple. Parsing stops at the first
//	syntax error; tuples before it have already been delivered.
//
// Inputs:
//
//	s - Everything after "VALUES ".
//	fn - Tuple callback. fields is reused between calls.
//
// Outputs:
//
//	error - *tupleSyntaxError, or fn's error.
func parseTuples(s []byte, fn func(fields [][]byte) error) error {
	fields := make([][]byte, 0, 16)
	i := 0
	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return nil
		}
		if s[i] == ';' {
			return nil
		}
		if s[i] != '(' {
			return &tupleSyntaxError{offset: i, reason: "expected '('"}
		}
		i++

		fields = fields[:0]
		for {
			i = skipSpace(s, i)
			if i >= len(s) {
				return &tupleSyntaxError{offset: i, reason: "unterminated tuple"}
			}

			start := i
			if s[i] == '\'' {
				end, ok := scanQuoted(s, i)
				if !ok {
					return &tupleSyntaxError{offset: start, reason: "unterminated string"}
				}
				i = end
			} else {
				for i < len(s) && s[i] != ',' && s[i] != ')' {
					i++
				}
			}
			fields = append(fields, trimSpace(s[start:i]))

			i = skipSpace(s, i)
			if i >= len(s) {
				return &tupleSyntaxError{offset: i, reason: "unterminated tuple"}
			}
			if s[i] == ',' {
				i++
				continue
			}
			if s[i] == ')' {
				i++
				break
			}
			return &tupleSyntaxError{offset: i, reason: "expected ',' or ')'"}
		}

		if err := fn(fields); err != nil {
			return err
		}

		i = skipSpace(s, i)
		if i < len(s) && s[i] == ',' {
			i++
		}
	}
}

// scanQuoted returns the index just past the string literal starting at
// s[i] == '\''.
func scanQuoted(s []byte, i int) (int, bool) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\'':
			if j+1 < len(s) && s[j+1] == '\'' {
				j++
				continue
			}
			return j + 1, true
		}
	}
	return 0, false
}

func skipSpace(s []byte, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
