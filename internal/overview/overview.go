// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package overview assembles the per-device report: recorded history joined
// with the device's metadata and the current state of each pin.
package overview

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/pinboard/internal/models"
)

// ErrNotFound is returned when a device has no recorded history.
var ErrNotFound = errors.New("overview: no history for device")

// HistorySource looks up history by device.
type HistorySource interface {
	FindDevices(ctx context.Context, deviceID string) []models.HistoryDevice
}

// DeviceSource looks up devices.
type DeviceSource interface {
	Find(ctx context.Context, id string) (models.Device, error)
}

// Builder joins history with device records.
type Builder struct {
	history HistorySource
	devices DeviceSource
}

// NewBuilder returns a Builder.
func NewBuilder(h HistorySource, d DeviceSource) *Builder {
	return &Builder{history: h, devices: d}
}

// Build returns the overview of deviceID. The device and pin views are
// omitted when the device or pin no longer exists; their history is still
// reported.
func (b *Builder) Build(ctx context.Context, deviceID string) (models.Overview, error) {
	found := b.history.FindDevices(ctx, deviceID)
	if len(found) == 0 {
		return models.Overview{}, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
	}
	hist := found[0]

	out := models.Overview{
		DeviceID: hist.DeviceID,
		Items:    make([]models.OverviewItem, 0, len(hist.Items)),
	}

	d, err := b.devices.Find(ctx, deviceID)
	hasDevice := err == nil
	if hasDevice {
		summary := d.Summary()
		out.Device = &summary
	}

	for _, item := range hist.Items {
		oi := models.OverviewItem{HistoryItem: item}
		if hasDevice {
			if idx := d.PinIndex(item.ID); idx >= 0 {
				ps := d.Items[idx].Summary()
				oi.Pin = &ps
			}
		}
		out.Items = append(out.Items, oi)
	}
	return out, nil
}
