// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
	"github.com/tomtom215/pinboard/internal/models"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("events: bus is closed")

// Bus owns the publisher and subscriber for one backend.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	shared     bool // publisher and subscriber are the same pub/sub
	nats       *embeddedNATS
	now        func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewBus builds a bus for cfg.Backend.
func NewBus(ctx context.Context, cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}

	switch cfg.Backend {
	case "", "gochannel":
		return NewGoChannelBus(cfg.BufferSize, logger), nil
	case "nats":
		return newNATSBus(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Backend)
	}
}

// NewGoChannelBus returns an in-process bus. Messages published before a
// handler subscribes are dropped.
func NewGoChannelBus(buffer int64, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, logger)
	return &Bus{
		publisher:  pubSub,
		subscriber: pubSub,
		shared:     true,
		logger:     logger,
		now:        time.Now,
	}
}

// Subscriber returns the subscriber side for router handlers.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Publish sends payload on topic with device and pin metadata.
func (b *Bus) Publish(ctx context.Context, topic, deviceID, pinID string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := encode(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataDeviceID, deviceID)
	msg.Metadata.Set(MetadataPinID, pinID)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	err = b.publisher.Publish(topic, msg)
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PinObserved publishes a value read from the remote API.
func (b *Bus) PinObserved(ctx context.Context, deviceID, pinID string, value float64, at time.Time) error {
	return b.Publish(ctx, TopicPinObserved, deviceID, pinID, PinObserved{
		DeviceID:   deviceID,
		PinID:      pinID,
		Value:      value,
		ObservedAt: at,
	})
}

// NotifyPinChanged publishes a persisted pin.
func (b *Bus) NotifyPinChanged(ctx context.Context, d models.Device, p models.Pin) error {
	return b.Publish(ctx, TopicPinChanged, d.ID, p.ID, PinChanged{
		DeviceID:   d.ID,
		DeviceName: d.Name,
		Pin:        p,
		ChangedAt:  b.now(),
	})
}

// Check reports whether the bus can still carry events.
func (b *Bus) Check(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if b.nats != nil && !b.nats.server.Running() {
		return errors.New("embedded nats server not running")
	}
	return nil
}

// Close closes the publisher and the subscriber. It also shuts down the
// embedded NATS server if one was started.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if b.nats != nil {
		b.nats.Shutdown()
	}
	return errors.Join(errs...)
}
