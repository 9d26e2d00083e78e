// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package atomicfile writes files that appear at their final path only
// once they are complete.
//
// Data is written to "<path>.tmp", synced, closed and renamed over path on
// Commit. Abort (or a Close without Commit) removes the temp file, so a
// failed writer never leaves a partial artifact behind.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TempSuffix is appended to the final path while the file is written.
const TempSuffix = ".tmp"

// ErrClosed is returned when writing to a committed or aborted File.
var ErrClosed = errors.New("atomic file already closed")

// File is an os.File that is renamed into place on Commit.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type File struct {
	f      *os.File
	path   string
	tmp    string
	closed bool
}

// Create opens "<path>.tmp" for writing, creating parent directories.
//
// Inputs:
//
//	path - The final path.
//
// Outputs:
//
//	*File - Writer. Callers must call Commit or Abort.
//	error - Non-nil if the directory or temp file cannot be created.
func Create(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	tmp := path + TempSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{f: f, path: path, tmp: tmp}, nil
}

// Write implements io.Writer.
func (a *File) Write(p []byte) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}
	return a.f.Write(p)
}

// Path returns the final path.
func (a *File) Path() string {
	return a.path
}

// Commit syncs the temp file and renames it over the final path.
func (a *File) Commit() error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true

	if err := a.f.Sync(); err != nil {
		a.cleanup()
		return fmt.Errorf("sync: %w", err)
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.tmp)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(a.tmp, a.path); err != nil {
		os.Remove(a.tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Abort discards the temp file. Safe to call after Commit, in which case
// it does nothing, so it can be deferred unconditionally.
func (a *File) Abort() {
	if a.closed {
		return
	}
	a.closed = true
	a.cleanup()
}

func (a *File) cleanup() {
	a.f.Close()
	os.Remove(a.tmp)
}

// WriteFile writes the output of fn atomically to path.
//
// Description:
//
//	fn receives the temp file. If fn returns an error the temp file is
//	removed and the error is returned unchanged; otherwise the file is
//	committed.
func WriteFile(path string, fn func(f *File) error) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	if err := fn(f); err != nil {
		return err
	}
	return f.Commit()
}
