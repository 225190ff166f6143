// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/pinboard/internal/logging"
)

// GarbageCollector reclaims storage space. Satisfied by
// *store.BadgerBackend.
type GarbageCollector interface {
	RunGC(ctx context.Context) error
}

// StorageGCService runs the collector every interval. A failed run is
// logged and retried on the next tick; only context cancellation stops the
// service.
type StorageGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewStorageGCService returns the service. A non-positive interval means
// 10 minutes.
func NewStorageGCService(gc GarbageCollector, interval time.Duration) *StorageGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StorageGCService{gc: gc, interval: interval, name: "storage-gc"}
}

// Serve implements suture.Service.
func (s *StorageGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().Err(err).Msg("Storage garbage collection failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Storage garbage collection finished")
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *StorageGCService) String() string {
	return s.name
}
