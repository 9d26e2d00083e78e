// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package title

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEscape is returned for an unknown or truncated backslash
	// escape sequence.
	ErrMalformedEscape = errors.New("malformed escape sequence")

	// ErrInvalidUTF8 is returned when the decoded bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("decoded title is not valid UTF-8")
)

// EscapeError describes where a raw title failed to decode.
type EscapeError struct {
	// Raw is the title as extracted.
	Raw string

	// Offset is the byte offset of the offending backslash in Raw.
	Offset int

	// Err is ErrMalformedEscape or ErrInvalidUTF8.
	Err error
}

func (e *EscapeError) Error() string {
	if errors.Is(e.Err, ErrInvalidUTF8) {
		return fmt.Sprintf("decode title %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("decode title %q at byte %d: %v", e.Raw, e.Offset, e.Err)
}

func (e *EscapeError) Unwrap() error {
	return e.Err
}
