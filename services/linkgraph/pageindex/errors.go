// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pageindex maps page ids to display titles and back.
//
// The index artifact is a text file with one "id \t display_title" line per
// real page. Two Index implementations read it:
//
//   - MemoryIndex loads the whole file into maps. Fast, and the default.
//   - BadgerIndex imports the file into a Badger database once and then
//     serves lookups from disk, with an LRU cache in front of id lookups.
//
// Both resolve exact display titles, and both offer case-insensitive prefix
// suggestions for titles that did not match.
package pageindex

import "errors"

var (
	// ErrNotFound is returned when a title or id is not in the index.
	ErrNotFound = errors.New("page not found in index")

	// ErrCorruptIndex is returned when the index file cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt page index")
)
