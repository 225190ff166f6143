// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
)

// Collection is a named document holding a JSON array of T.
//
// The encoded document is cached after the first load; every ReadAll decodes
// a fresh copy so callers may mutate what they get back. Writers are
// serialised, and the cache only advances after the backend accepted the
// new document.
type Collection[T any] struct {
	name    string
	backend Backend

	mu     sync.Mutex
	data   []byte
	loaded bool
}

// NewCollection binds a collection name to a backend.
func NewCollection[T any](name string, backend Backend) *Collection[T] {
	return &Collection[T]{name: name, backend: backend}
}

// Name returns the document name.
func (c *Collection[T]) Name() string { return c.name }

// ReadAll returns every element. An absent, unreadable or corrupt document
// reads as an empty collection; the problem is logged, never returned.
func (c *Collection[T]) ReadAll(ctx context.Context) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("collection", c.name).Msg("Collection read failed, treating as empty")
		return []T{}
	}
	return c.decode(ctx, c.data)
}

// WriteAll replaces the whole collection.
func (c *Collection[T]) WriteAll(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(ctx, items)
}

// Update runs fn over the current elements and persists what it returns.
// If fn fails nothing is written and its error is returned unchanged.
func (c *Collection[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return fmt.Errorf("load %s: %w", c.name, err)
	}
	next, err := fn(c.decode(ctx, c.data))
	if err != nil {
		return err
	}
	return c.saveLocked(ctx, next)
}

// loadLocked fills the cache. A backend I/O failure leaves the cache
// unloaded so the next call retries.
func (c *Collection[T]) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	metrics.StoreReads.WithLabelValues(c.name).Inc()

	data, err := c.backend.Load(ctx, c.name)
	switch {
	case errors.Is(err, ErrNotExist):
		c.data = nil
	case err != nil:
		return err
	default:
		c.data = data
	}
	c.loaded = true
	return nil
}

func (c *Collection[T]) decode(ctx context.Context, data []byte) []T {
	if len(data) == 0 {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		metrics.StoreCorruptReads.WithLabelValues(c.name).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("collection", c.name).Msg("Collection document is corrupt, treating as empty")
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func (c *Collection[T]) saveLocked(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}

	start := time.Now()
	err = c.backend.Save(ctx, c.name, data)
	metrics.RecordStoreWrite(c.name, time.Since(start), err)
	if err != nil {
		return err
	}

	c.data = data
	c.loaded = true
	return nil
}
