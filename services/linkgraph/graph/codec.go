// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AleutianAI/wikigraph/services/linkgraph/telemetry"
)

// Binary layout:
//
//	magic   [4]byte "WKGR"
//	version byte
//	zstd stream of msgpack values:
//	  array(n)   of uint  vertex ids, ascending
//	  array(n+1) of uint  row offsets
//	  array(m)   of uint  target vertex indices
const (
	codecVersion byte = 1

	// maxPrealloc caps the capacity reserved from an array header, so a
	// corrupt length fails on EOF instead of on allocation.
	maxPrealloc = 1 << 20
)

var codecMagic = [4]byte{'W', 'K', 'G', 'R'}

// Encode writes the adjacency to w in the binary graph format.
//
// Inputs:
//
//	ctx - Context for tracing and metrics.
//	w - Destination. Not closed.
//	a - Graph to encode.
//
// Outputs:
//
//	error - Non-nil on write failure.
func Encode(ctx context.Context, w io.Writer, a *Adjacency) (err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGraph, "graph.Encode")
	defer span.End()
	began := time.Now()
	defer func() {
		telemetry.RecordError(span, err)
		recordCodecMetrics(ctx, "encode", time.Since(began), len(a.targets), err == nil)
	}()

	header := append(codecMagic[:], codecVersion)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	enc := msgpack.NewEncoder(zw)
	if err := encodeArrays(enc, a); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	return nil
}

func encodeArrays(enc *msgpack.Encoder, a *Adjacency) error {
	if err := enc.EncodeArrayLen(len(a.ids)); err != nil {
		return fmt.Errorf("encode ids: %w", err)
	}
	for _, id := range a.ids {
		if err := enc.EncodeUint(uint64(id)); err != nil {
			return fmt.Errorf("encode ids: %w", err)
		}
	}

	if err := enc.EncodeArrayLen(len(a.offsets)); err != nil {
		return fmt.Errorf("encode offsets: %w", err)
	}
	for _, off := range a.offsets {
		if err := enc.EncodeUint(off); err != nil {
			return fmt.Errorf("encode offsets: %w", err)
		}
	}

	if err := enc.EncodeArrayLen(len(a.targets)); err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}
	for _, t := range a.targets {
		if err := enc.EncodeUint(uint64(t)); err != nil {
			return fmt.Errorf("encode targets: %w", err)
		}
	}
	return nil
}

// Decode reads an adjacency previously written by Encode.
//
// Description:
//
//	Verifies the magic and version, then streams the three CSR arrays and
//	validates them (sorted ids, monotonic offsets, in-range sorted targets).
//
// Outputs:
//
//	*Adjacency - The decoded graph.
//	error - ErrCorruptGraph for malformed input, ErrUnsupportedVersion for a
//	  different format version.
func Decode(ctx context.Context, r io.Reader) (a *Adjacency, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGraph, "graph.Decode")
	defer span.End()
	began := time.Now()
	defer func() {
		telemetry.RecordError(span, err)
		edges := 0
		if a != nil {
			edges = len(a.targets)
		}
		recordCodecMetrics(ctx, "decode", time.Since(began), edges, err == nil)
	}()

	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptGraph, err)
	}
	if !bytes.Equal(header[:4], codecMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptGraph, header[:4])
	}
	if header[4] != codecVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, header[4], codecVersion)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptGraph, err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)

	n, err := decodeLen(dec, "ids")
	if err != nil {
		return nil, err
	}
	ids := make([]PageID, 0, min(n, maxPrealloc))
	for range n {
		v, err := dec.DecodeUint32()
		if err != nil {
			return nil, corrupt("ids", err)
		}
		ids = append(ids, PageID(v))
	}

	n, err = decodeLen(dec, "offsets")
	if err != nil {
		return nil, err
	}
	offsets := make([]uint64, 0, min(n, maxPrealloc))
	for range n {
		v, err := dec.DecodeUint64()
		if err != nil {
			return nil, corrupt("offsets", err)
		}
		offsets = append(offsets, v)
	}

	n, err = decodeLen(dec, "targets")
	if err != nil {
		return nil, err
	}
	targets := make([]uint32, 0, min(n, maxPrealloc))
	for range n {
		v, err := dec.DecodeUint32()
		if err != nil {
			return nil, corrupt("targets", err)
		}
		targets = append(targets, v)
	}

	return newAdjacency(ids, offsets, targets)
}

func decodeLen(dec *msgpack.Decoder, what string) (int, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return 0, corrupt(what, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s length %d", ErrCorruptGraph, what, n)
	}
	return n, nil
}

func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s truncated", ErrCorruptGraph, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorruptGraph, what, err)
}
