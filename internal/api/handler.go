// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"context"
	"time"

	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
)

// DeviceStore is the device repository as seen by the handlers.
type DeviceStore interface {
	List(ctx context.Context) []models.Device
	Find(ctx context.Context, id string) (models.Device, error)
	Create(ctx context.Context, in models.DeviceInput, asset *store.Asset) (models.Device, error)
	Update(ctx context.Context, id string, in models.DeviceInput, asset *store.Asset) (models.Device, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PinService applies pin operations.
type PinService interface {
	CreatePin(ctx context.Context, deviceID string, in models.PinInput) (models.Device, error)
	UpdatePin(ctx context.Context, deviceID string, in models.PinInput) (models.Device, error)
	BulkUpdate(ctx context.Context, deviceID string, updates []models.PinInput) (models.BulkResult, error)
	FindPin(ctx context.Context, deviceID, pinID string) (models.Pin, error)
	DeletePin(ctx context.Context, deviceID, pinID string) (models.Device, error)
}

// HistoryStore exposes history queries and deletions.
type HistoryStore interface {
	Find(ctx context.Context, f history.Filter) []models.HistoryDevice
	FindItems(ctx context.Context, deviceID, itemID string) []models.HistoryItem
	DeleteItem(ctx context.Context, deviceID, itemID string) (bool, error)
	RemoveChange(ctx context.Context, key history.Key, time string) (models.DateRecord, error)
}

// OverviewBuilder joins a device with its history.
type OverviewBuilder interface {
	Build(ctx context.Context, deviceID string) (models.Overview, error)
}

// Bridge reads and writes pin values on the remote service.
type Bridge interface {
	Read(ctx context.Context, deviceID, pinID string) (models.Device, error)
	Write(ctx context.Context, deviceID, pinID string, value float64) (models.Device, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler holds the dependencies of every endpoint.
type Handler struct {
	devices  DeviceStore
	pins     PinService
	history  HistoryStore
	overview OverviewBuilder
	bridge   Bridge

	maxUploadBytes int64
	checks         map[string]ReadinessCheck
	startTime      time.Time
}

// HandlerOptions wires a Handler.
type HandlerOptions struct {
	Devices  DeviceStore
	Pins     PinService
	History  HistoryStore
	Overview OverviewBuilder
	Bridge   Bridge

	// MaxUploadBytes caps multipart device bodies. Defaults to 50 MB.
	MaxUploadBytes int64
	// Checks are run by /health/ready, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

// NewHandler returns a Handler.
func NewHandler(opts HandlerOptions) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Handler{
		devices:        opts.Devices,
		pins:           opts.Pins,
		history:        opts.History,
		overview:       opts.Overview,
		bridge:         opts.Bridge,
		maxUploadBytes: opts.MaxUploadBytes,
		checks:         opts.Checks,
		startTime:      time.Now(),
	}
}
