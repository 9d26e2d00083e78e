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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTuples(t *testing.T, s string) ([][]string, error) {
	t.Helper()
	var out [][]string
	err := parseTuples([]byte(s), func(fields [][]byte) error {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = string(f)
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func TestParseTuples(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "simple",
			input: "(1,0,'A',0),(2,0,'B',1);",
			want:  [][]string{{"1", "0", "'A'", "0"}, {"2", "0", "'B'", "1"}},
		},
		{
			name:  "separator inside string",
			input: "(1,0,'Seesterne_(Klasse),(Art)',0);",
			want:  [][]string{{"1", "0", "'Seesterne_(Klasse),(Art)'", "0"}},
		},
		{
			name:  "escaped quote",
			input: `(1,'O\'Brien'),(2,'C:\\')`,
			want:  [][]string{{"1", `'O\'Brien'`}, {"2", `'C:\\'`}},
		},
		{
			name:  "doubled quote",
			input: "(1,'it''s')",
			want:  [][]string{{"1", "'it''s'"}},
		},
		{
			name:  "whitespace and NULL",
			input: " ( 1 , NULL , 'x' ) , (2,'')\n",
			want:  [][]string{{"1", "NULL", "'x'"}, {"2", "''"}},
		},
		{
			name:  "empty",
			input: ";",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collectTuples(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTuples_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		delivered  int
		wantOffset int
		wantReason string
	}{
		{"missing paren", "1,2", 0, 0, "expected '('"},
		{"unterminated string", "(1,'abc", 0, 3, "unterminated string"},
		{"unterminated tuple", "(1,2", 0, 4, "unterminated tuple"},
		{"garbage after string", "(1,'a' x)", 0, 7, "expected ',' or ')'"},
		{"error after good tuple", "(1,'a'),(2,'b", 1, 11, "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collectTuples(t, tt.input)
			assert.Len(t, got, tt.delivered)
			require.ErrorIs(t, err, errTuple)

			var syn *tupleSyntaxError
			require.True(t, errors.As(err, &syn))
			assert.Equal(t, tt.wantOffset, syn.offset)
			assert.Equal(t, tt.wantReason, syn.reason)
		})
	}
}

func TestParseTuples_CallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := parseTuples([]byte("(1),(2),(3)"), func([][]byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}
