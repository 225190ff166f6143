// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

/*
Package events carries pin activity over a Watermill message bus.

Two topics are used:

	pin.observed  a value read from the remote API by the gauge poller
	pin.changed   a pin persisted by the pin manager

The router applies pin.observed to the pin manager and, when MQTT is
enabled, forwards pin.changed to the broker. The bus runs on the in-process
GoChannel pub/sub by default, or on NATS JetStream (optionally embedded).
*/
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pinboard/internal/models"
)

// Topic names.
const (
	TopicPinObserved = "pin.observed"
	TopicPinChanged  = "pin.changed"
	// TopicPoison collects messages no handler could process.
	TopicPoison = "pin.poison"
)

// Metadata keys set on every message.
const (
	MetadataDeviceID = "device_id"
	MetadataPinID    = "pin_id"
)

// PinObserved is the payload of TopicPinObserved.
type PinObserved struct {
	DeviceID   string    `json:"device_id"`
	PinID      string    `json:"pin_id"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// PinChanged is the payload of TopicPinChanged.
type PinChanged struct {
	DeviceID   string     `json:"device_id"`
	DeviceName string     `json:"device_name"`
	Pin        models.Pin `json:"pin"`
	ChangedAt  time.Time  `json:"changed_at"`
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}
