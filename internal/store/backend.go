// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package store persists Pinboard's collections as whole JSON documents.
//
// A Collection owns one named document (for example "devices"), caches it
// in memory and serialises every read-modify-write behind a single mutex.
// Where the bytes live is decided by a Backend: a directory of JSON files
// or an embedded badger database.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by a Backend when the named document has never
// been written.
var ErrNotExist = errors.New("store: document does not exist")

// Backend stores whole named documents.
type Backend interface {
	// Load returns the document bytes or ErrNotExist.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the document. Readers never observe a partial write.
	Save(ctx context.Context, name string, data []byte) error

	Close() error
}

// Supported backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Options selects and configures a Backend.
type Options struct {
	Backend    string
	DataDir    string
	BadgerPath string
	SyncWrites bool
}

// Open returns the backend named in opts.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileBackend(opts.DataDir), nil
	case BackendBadger:
		return OpenBadger(BadgerConfig{
			Path:        opts.BadgerPath,
			SyncWrites:  opts.SyncWrites,
			Compression: true,
		})
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
