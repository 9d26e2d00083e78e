// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tables

import (
	"errors"
	"fmt"
)

// ErrMalformedRow is the sentinel behind every MalformedRowError.
var ErrMalformedRow = errors.New("malformed row")

// MalformedRowError describes a table row that could not be parsed.
//
// Malformed rows are never fatal: the scanner reports them to the logger,
// counts them and moves on.
type MalformedRowError struct {
	// Table is the table name ("page", "redirect", "pagelinks").
	Table string

	// Line is the 1-based line number.
	Line int

	// Reason says what was wrong with the row.
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s line %d: %v: %s", e.Table, e.Line, ErrMalformedRow, e.Reason)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}
