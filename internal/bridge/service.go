// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/pin"
)

// ErrNoRemotePin is returned for pins that have no remote pin identifier.
var ErrNoRemotePin = errors.New("bridge: pin has no remote identifier")

// DeviceFinder looks up a device.
type DeviceFinder interface {
	Find(ctx context.Context, id string) (models.Device, error)
}

// ValueObserver stores a value seen on the remote side.
type ValueObserver interface {
	ObserveValue(ctx context.Context, deviceID, pinID string, value float64) (models.Device, error)
}

// Service pairs remote reads and writes with local pin updates. A failed
// remote call leaves local state untouched.
type Service struct {
	remote   Remote
	devices  DeviceFinder
	observer ValueObserver
}

// NewService returns a Service.
func NewService(remote Remote, devices DeviceFinder, observer ValueObserver) *Service {
	return &Service{remote: remote, devices: devices, observer: observer}
}

// Read fetches the remote value of a pin and stores it locally.
func (s *Service) Read(ctx context.Context, deviceID, pinID string) (models.Device, error) {
	d, p, err := s.lookup(ctx, deviceID, pinID)
	if err != nil {
		return models.Device{}, err
	}

	v, err := s.remote.Get(ctx, d.Token, p.Pin)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("device_id", deviceID).Str("pin", p.Pin).Msg("Remote read failed")
		return models.Device{}, err
	}
	return s.observer.ObserveValue(ctx, deviceID, pinID, v)
}

// Write pushes value to the remote pin and, once accepted, stores it
// locally.
func (s *Service) Write(ctx context.Context, deviceID, pinID string, value float64) (models.Device, error) {
	d, p, err := s.lookup(ctx, deviceID, pinID)
	if err != nil {
		return models.Device{}, err
	}

	if err := s.remote.Update(ctx, d.Token, p.Pin, value); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("device_id", deviceID).Str("pin", p.Pin).Msg("Remote write failed")
		return models.Device{}, err
	}
	return s.observer.ObserveValue(ctx, deviceID, pinID, value)
}

func (s *Service) lookup(ctx context.Context, deviceID, pinID string) (models.Device, models.Pin, error) {
	d, err := s.devices.Find(ctx, deviceID)
	if err != nil {
		return models.Device{}, models.Pin{}, err
	}
	idx := d.PinIndex(pinID)
	if idx < 0 {
		return models.Device{}, models.Pin{}, fmt.Errorf("%w: %s", pin.ErrPinNotFound, pinID)
	}
	p := d.Items[idx]
	if p.Pin == "" {
		return models.Device{}, models.Pin{}, fmt.Errorf("%w: %s", ErrNoRemotePin, pinID)
	}
	return d, p, nil
}
