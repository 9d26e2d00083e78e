// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns gzip-compressed SQL table dumps into the flat
// tab-separated tables read by the builder.
//
// A dump is a sequence of statements; only lines of the form
//
//	INSERT INTO `table` VALUES (...),(...),...;
//
// are considered. Each tuple is tokenized with quoted strings honored, so
// a title such as 'Seesterne_(Klasse),(Art)' stays one field. Selected
// columns are written tab-separated, one row per line, after rows outside
// namespace 0 are dropped. String fields keep their quotes and escapes:
// that raw form is the join key downstream.
package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDump is returned when no dump file exists for a table.
	ErrMissingDump = errors.New("missing database dump")

	// ErrAmbiguousDump is returned when several dump files match a table.
	ErrAmbiguousDump = errors.New("multiple database dumps for table")

	// ErrUnknownTable is returned for a table with no schema.
	ErrUnknownTable = errors.New("unknown table")
)

// DownloadHint tells the user where dumps come from.
const DownloadHint = "download the 'page', 'redirect' and 'pagelinks' tables as .sql.gz files from https://dumps.wikimedia.org/ into the dump directory"

// DumpError describes a dump lookup failure for one table.
type DumpError struct {
	// Table is the table name.
	Table string

	// Dir is the directory that was searched.
	Dir string

	// Matches lists the candidates when more than one matched.
	Matches []string

	// Err is ErrMissingDump or ErrAmbiguousDump.
	Err error
}

func (e *DumpError) Error() string {
	if errors.Is(e.Err, ErrAmbiguousDump) {
		return fmt.Sprintf("%v '%s' in %s: %v; move or delete the others and try again", e.Err, e.Table, e.Dir, e.Matches)
	}
	return fmt.Sprintf("%v for table '%s' in %s; %s", e.Err, e.Table, e.Dir, DownloadHint)
}

func (e *DumpError) Unwrap() error {
	return e.Err
}

// TupleError describes a tuple that could not be tokenized.
type TupleError struct {
	Table  string
	Line   int
	Offset int
	Reason string
}

func (e *TupleError) Error() string {
	return fmt.Sprintf("%s dump line %d offset %d: %s", e.Table, e.Line, e.Offset, e.Reason)
}
