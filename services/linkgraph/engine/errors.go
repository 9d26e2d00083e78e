// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine answers link graph queries in terms of page titles.
//
// It sits between the user-facing surfaces (shell, CLI, HTTP API) and the
// graph package: titles are resolved through the page index, queries run
// on the lazily loaded forward or reverse graph, and results are mapped
// back to titles.
//
// Unlike the graph algorithms, which treat an unknown id as a page
// without links, the engine rejects anything that is not a real page with
// ErrUnknownPage.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPage is returned for a title or id that is not a real page.
var ErrUnknownPage = errors.New("unknown page")

// PageNotFoundError describes a title that did not resolve.
type PageNotFoundError struct {
	// Title is the normalized input.
	Title string

	// Suggestions are existing titles sharing a prefix with the input.
	Suggestions []string
}

func (e *PageNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%v: '%s'", ErrUnknownPage, e.Title)
	}
	return fmt.Sprintf("%v: '%s' (did you mean: %s?)", ErrUnknownPage, e.Title, strings.Join(e.Suggestions, ", "))
}

func (e *PageNotFoundError) Unwrap() error {
	return ErrUnknownPage
}
