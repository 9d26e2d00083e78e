// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pageindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
	badgerstore "github.com/AleutianAI/wikigraph/services/linkgraph/storage/badger"
)

// Key layout:
//
//	t/<title>                    → id (4 bytes, big endian)
//	i/<id>                       → title
//	f/<folded title> 0x00 <id>   → title
//	m/count                      → number of pages (8 bytes, big endian)
var (
	prefixTitle = []byte("t/")
	prefixID    = []byte("i/")
	prefixFold  = []byte("f/")
	keyCount    = []byte("m/count")
)

// BadgerIndex serves the page index from a Badger database.
//
// Thread Safety: Safe for concurrent use.
type BadgerIndex struct {
	db    *badgerstore.DB
	cache *lruCache[graph.PageID, string]
	n     int
}

// ImportBadger copies an index file into db.
//
// Description:
//
//	Streams the file through a WriteBatch. Titles shared by several ids
//	resolve to the last one imported, matching MemoryIndex.
//
// Outputs:
//
//	int - Number of entries imported.
//	error - Parse, write or ctx error.
func ImportBadger(ctx context.Context, db *badgerstore.DB, r io.Reader) (int, error) {
	n := 0
	err := db.WithBatch(ctx, func(wb *badger.WriteBatch) error {
		err := Read(ctx, r, func(e Entry) error {
			n++
			idKey := idBytes(e.ID)
			if err := wb.Set(append(prefixTitle[:len(prefixTitle):len(prefixTitle)], e.Title...), idKey); err != nil {
				return err
			}
			if err := wb.Set(append(prefixID[:len(prefixID):len(prefixID)], idKey...), []byte(e.Title)); err != nil {
				return err
			}
			return wb.Set(foldedKey(foldKey(e.Title), e.ID), []byte(e.Title))
		})
		if err != nil {
			return err
		}
		return wb.Set(keyCount, binary.BigEndian.AppendUint64(nil, uint64(n)))
	})
	if err != nil {
		return 0, fmt.Errorf("import page index: %w", err)
	}
	return n, nil
}

// NewBadgerIndex wraps an already populated database.
//
// Inputs:
//
//	db - Database written by ImportBadger.
//	cacheSize - Capacity of the id → title LRU cache. <= 0 uses the default.
func NewBadgerIndex(ctx context.Context, db *badgerstore.DB, cacheSize int) (*BadgerIndex, error) {
	b := &BadgerIndex{db: db, cache: newLRUCache[graph.PageID, string](cacheSize)}

	err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyCount)
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(v) != 8 {
			return fmt.Errorf("%w: bad count value", ErrCorruptIndex)
		}
		b.n = int(binary.BigEndian.Uint64(v))
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: missing page count, index was not imported", ErrCorruptIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("open badger page index: %w", err)
	}
	return b, nil
}

// OpenBadger opens the index database at path read-only.
func OpenBadger(ctx context.Context, path string, cacheSize int, logger *slog.Logger) (*BadgerIndex, error) {
	cfg := badgerstore.DefaultConfig(path)
	cfg.ReadOnly = true
	cfg.Logger = logger
	db, err := badgerstore.Open(cfg)
	if err != nil {
		return nil, err
	}
	b, err := NewBadgerIndex(ctx, db, cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the underlying database.
func (b *BadgerIndex) Close() error {
	return b.db.Close()
}

// Lookup implements Index.
func (b *BadgerIndex) Lookup(ctx context.Context, title string) (graph.PageID, error) {
	var id graph.PageID
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(append(prefixTitle[:len(prefixTitle):len(prefixTitle)], title...))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) != 4 {
				return fmt.Errorf("%w: bad id value for %q", ErrCorruptIndex, title)
			}
			id = graph.PageID(binary.BigEndian.Uint32(v))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Title implements Index.
func (b *BadgerIndex) Title(ctx context.Context, id graph.PageID) (string, error) {
	if t, ok := b.cache.Get(id); ok {
		return t, nil
	}

	var title string
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(append(prefixID[:len(prefixID):len(prefixID)], idBytes(id)...))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		title = string(v)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return "", err
	}

	b.cache.Set(id, title)
	return title, nil
}

// Suggest implements Index.
func (b *BadgerIndex) Suggest(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	seek := append(prefixFold[:len(prefixFold):len(prefixFold)], foldKey(prefix)...)
	var out []Entry
	err := b.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seek
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek) && len(out) < limit; it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) < len(prefixFold)+5 {
				return fmt.Errorf("%w: short suggestion key", ErrCorruptIndex)
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Entry{
				ID:    graph.PageID(binary.BigEndian.Uint32(key[len(key)-4:])),
				Title: string(v),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len implements Index.
func (b *BadgerIndex) Len() int {
	return b.n
}

// CacheStats reports the id → title cache counters.
func (b *BadgerIndex) CacheStats() CacheStats {
	return b.cache.Stats()
}

func idBytes(id graph.PageID) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), uint32(id))
}

func foldedKey(folded string, id graph.PageID) []byte {
	k := make([]byte, 0, len(prefixFold)+len(folded)+5)
	k = append(k, prefixFold...)
	k = append(k, folded...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint32(k, uint32(id))
}
