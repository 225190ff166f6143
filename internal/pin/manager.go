// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package pin manages the pins nested inside a device: creation, merge
// updates, ordering and the value range rules that depend on pin type.
package pin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/pinboard/internal/device"
	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/validation"
)

var (
	ErrDeviceNotFound = errors.New("pin: device not found")
	ErrPinNotFound    = errors.New("pin: pin not found")
)

// SortPolicy decides the sort of a newly created pin.
type SortPolicy string

const (
	// SortMax gives a new pin the largest existing sort (0 on an empty
	// device), so it ties with the current last pin.
	SortMax SortPolicy = "max"
	// SortNext gives a new pin the largest existing sort plus one.
	SortNext SortPolicy = "next"
)

// HistoryRecorder is the part of history.Aggregator the manager uses.
type HistoryRecorder interface {
	AddChangeIf(ctx context.Context, key history.Key, change models.Change) (models.DateRecord, error)
	DeleteItem(ctx context.Context, deviceID, itemID string) (bool, error)
}

// Notifier is told about every successful pin update.
type Notifier interface {
	NotifyPinChanged(ctx context.Context, d models.Device, p models.Pin) error
}

// Options configures a Manager.
type Options struct {
	SortPolicy     SortPolicy
	CascadeHistory bool

	// Location is used for history dates and times. Defaults to time.Local.
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time

	Notifier Notifier
}

// Manager applies pin operations through the device repository.
type Manager struct {
	devices *device.Repository
	history HistoryRecorder
	opts    Options
}

// NewManager wires a manager to its device and history stores.
func NewManager(devices *device.Repository, hist HistoryRecorder, opts Options) *Manager {
	if opts.SortPolicy == "" {
		opts.SortPolicy = SortMax
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{devices: devices, history: hist, opts: opts}
}

// CreatePin appends a new pin to the device and returns the device.
func (m *Manager) CreatePin(ctx context.Context, deviceID string, in models.PinInput) (models.Device, error) {
	if in.Type == nil {
		return models.Device{}, validation.NewFieldError("type", "required", "type is required")
	}

	now := m.opts.Clock().UTC()
	d, err := m.devices.Mutate(ctx, deviceID, func(d *models.Device) error {
		sort := d.MaxSort()
		if m.opts.SortPolicy == SortNext && len(d.Items) > 0 {
			sort++
		}

		id := uuid.NewString()
		p := models.Pin{
			ID:        id,
			Name:      "Pin_" + id,
			Type:      *in.Type,
			Sort:      sort,
			Property:  mergeProperty(models.DefaultPinProperty(), in),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.Name != nil && *in.Name != "" {
			p.Name = *in.Name
		}
		if in.Pin != nil {
			p.Pin = *in.Pin
		}
		applyRange(&p, in, p)

		d.Items = append(d.Items, p)
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Device{}, mapNotFound(err, deviceID)
	}

	metrics.PinOperations.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Info().Str("device_id", deviceID).Int("pins", len(d.Items)).Msg("Pin created")
	return d, nil
}

// UpdatePin merges in over the stored pin in.ID. Omitted fields keep their
// stored values, except sort which falls back to the device's largest
// sort. The resulting value is recorded in history for the current day.
func (m *Manager) UpdatePin(ctx context.Context, deviceID string, in models.PinInput) (models.Device, error) {
	return m.update(ctx, deviceID, in, time.Time{}, func(d *models.Device, _ models.Pin) int { return d.MaxSort() })
}

// ObserveValue records a value read from or written to the remote device.
// Unlike UpdatePin it keeps the pin's position.
func (m *Manager) ObserveValue(ctx context.Context, deviceID, pinID string, value float64) (models.Device, error) {
	return m.ObserveValueAt(ctx, deviceID, pinID, value, time.Time{})
}

// ObserveValueAt is ObserveValue with the history change stamped at at
// instead of the current time. A zero at means now.
func (m *Manager) ObserveValueAt(ctx context.Context, deviceID, pinID string, value float64, at time.Time) (models.Device, error) {
	in := models.PinInput{ID: pinID, Value: &value}
	return m.update(ctx, deviceID, in, at, func(_ *models.Device, stored models.Pin) int { return stored.Sort })
}

func (m *Manager) update(ctx context.Context, deviceID string, in models.PinInput, at time.Time, sortFallback func(*models.Device, models.Pin) int) (models.Device, error) {
	if in.ID == "" {
		return models.Device{}, validation.NewFieldError("id", "required", "id is required")
	}

	now := m.opts.Clock()
	if at.IsZero() {
		at = now
	}
	var updated models.Pin
	d, err := m.devices.Mutate(ctx, deviceID, func(d *models.Device) error {
		idx := d.PinIndex(in.ID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrPinNotFound, in.ID)
		}
		stored := d.Items[idx]
		p := merge(stored, in, now.UTC())
		if in.Sort != nil {
			p.Sort = *in.Sort
		} else {
			p.Sort = sortFallback(d, stored)
		}

		d.Items[idx] = p
		d.UpdatedAt = now.UTC()
		updated = p
		return nil
	})
	if err != nil {
		return models.Device{}, mapNotFound(err, deviceID)
	}
	metrics.PinOperations.WithLabelValues("update").Inc()

	local := at.In(m.opts.Location)
	key := history.Key{DeviceID: deviceID, ItemID: updated.ID, Date: local.Format(models.DateLayout)}
	change := models.Change{Time: local.Format(models.TimeLayout), Value: updated.Value}
	if _, err := m.history.AddChangeIf(ctx, key, change); err != nil {
		return models.Device{}, fmt.Errorf("record history: %w", err)
	}

	if m.opts.Notifier != nil {
		if err := m.opts.Notifier.NotifyPinChanged(ctx, d, updated); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("device_id", deviceID).Str("pin_id", updated.ID).Msg("Failed to publish pin change")
		}
	}
	return d, nil
}

// DeletePin removes a pin from its device. History is kept unless the
// manager was built with CascadeHistory.
func (m *Manager) DeletePin(ctx context.Context, deviceID, pinID string) (models.Device, error) {
	now := m.opts.Clock().UTC()
	d, err := m.devices.Mutate(ctx, deviceID, func(d *models.Device) error {
		idx := d.PinIndex(pinID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrPinNotFound, pinID)
		}
		d.Items = append(d.Items[:idx], d.Items[idx+1:]...)
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Device{}, mapNotFound(err, deviceID)
	}
	metrics.PinOperations.WithLabelValues("delete").Inc()

	if m.opts.CascadeHistory {
		if _, err := m.history.DeleteItem(ctx, deviceID, pinID); err != nil {
			return models.Device{}, fmt.Errorf("delete history: %w", err)
		}
	}
	return d, nil
}

// BulkUpdate applies each update to its pin and persists once. Unknown pin
// ids are skipped. Omitted sorts keep the pin's stored sort. No history is
// recorded.
func (m *Manager) BulkUpdate(ctx context.Context, deviceID string, updates []models.PinInput) (models.BulkResult, error) {
	now := m.opts.Clock().UTC()
	changed := []models.Pin{}
	_, err := m.devices.Mutate(ctx, deviceID, func(d *models.Device) error {
		for _, in := range updates {
			idx := d.PinIndex(in.ID)
			if in.ID == "" || idx < 0 {
				continue
			}
			stored := d.Items[idx]
			p := merge(stored, in, now)
			if in.Sort != nil {
				p.Sort = *in.Sort
			}
			d.Items[idx] = p
			changed = append(changed, p)
		}
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.BulkResult{}, mapNotFound(err, deviceID)
	}

	metrics.PinOperations.WithLabelValues("bulk").Inc()
	logging.Ctx(ctx).Debug().Str("device_id", deviceID).Int("requested", len(updates)).Int("updated", len(changed)).Msg("Pins bulk updated")
	return models.BulkResult{DeviceID: deviceID, UpdatedCount: len(changed), UpdatedItems: changed}, nil
}

// FindPin returns one pin of a device.
func (m *Manager) FindPin(ctx context.Context, deviceID, pinID string) (models.Pin, error) {
	d, err := m.devices.Find(ctx, deviceID)
	if err != nil {
		return models.Pin{}, mapNotFound(err, deviceID)
	}
	idx := d.PinIndex(pinID)
	if idx < 0 {
		return models.Pin{}, fmt.Errorf("%w: %s", ErrPinNotFound, pinID)
	}
	return d.Items[idx], nil
}

// merge overlays the supplied fields of in on stored. Sort is left to the
// caller.
func merge(stored models.Pin, in models.PinInput, now time.Time) models.Pin {
	p := stored
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Type != nil {
		p.Type = *in.Type
	}
	if in.Pin != nil {
		p.Pin = *in.Pin
	}
	p.Property = mergeProperty(stored.Property, in)
	if p.Property.DelaySec <= 0 {
		p.Property.DelaySec = models.DefaultPinProperty().DelaySec
	}
	applyRange(&p, in, stored)
	p.UpdatedAt = now
	return p
}

// applyRange enforces the value range of p's (already merged) type.
//
// Virtual pins are 0 or 1: anything but exactly 1 becomes 0. Analog pins
// take the supplied bounds, falling back to stored, and a missing value
// becomes the effective minimum.
func applyRange(p *models.Pin, in models.PinInput, stored models.Pin) {
	switch p.Type {
	case models.PinTypeVirtual:
		p.MinValue, p.MaxValue = 0, 1
		v := stored.Value
		if in.Value != nil {
			v = *in.Value
		}
		if v == 1 {
			p.Value = 1
		} else {
			p.Value = 0
		}
	default:
		p.MinValue = stored.MinValue
		if in.MinValue != nil {
			p.MinValue = *in.MinValue
		}
		p.MaxValue = stored.MaxValue
		if in.MaxValue != nil {
			p.MaxValue = *in.MaxValue
		}
		if in.Value != nil {
			p.Value = *in.Value
		} else {
			p.Value = p.MinValue
		}
	}
}

// mergeProperty resolves each property field from the nested property
// object, then the flat field, then base.
func mergeProperty(base models.PinProperty, in models.PinInput) models.PinProperty {
	var nested models.PinPropertyInput
	if in.Property != nil {
		nested = *in.Property
	}
	out := base
	if v := firstString(nested.Widget, in.Widget); v != nil {
		out.Widget = *v
	}
	if v := firstString(nested.Color, in.Color); v != nil {
		out.Color = *v
	}
	if v := firstInt(nested.Width, in.Width); v != nil {
		out.Width = *v
	}
	if v := firstInt(nested.Height, in.Height); v != nil {
		out.Height = *v
	}
	if v := firstInt(nested.DelaySec, in.DelaySec); v != nil {
		out.DelaySec = *v
	}
	return out
}

func firstString(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func mapNotFound(err error, deviceID string) error {
	if errors.Is(err, device.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return err
}
