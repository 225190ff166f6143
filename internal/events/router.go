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
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/pin"
)

// Handler names.
const (
	HandlerApplyObservation = "apply-observation"
	HandlerMQTTForward      = "mqtt-forward"
)

// ValueObserver stores a value observed on the remote side at the given
// time.
type ValueObserver interface {
	ObserveValueAt(ctx context.Context, deviceID, pinID string, value float64, at time.Time) (models.Device, error)
}

// Forwarder receives pin changes for an external system.
type Forwarder interface {
	Forward(ev PinChanged) error
}

// RouterConfig holds retry settings for the router middleware.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// PoisonQueueTopic receives messages whose handler still fails after
	// the last retry. Defaults to TopicPoison.
	PoisonQueueTopic string
}

// RouterConfigFrom maps the events configuration section.
func RouterConfigFrom(cfg config.EventsConfig) RouterConfig {
	return RouterConfig{
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      cfg.MaxRetries,
		RetryInitialInterval: cfg.InitialInterval,
		RetryMaxInterval:     5 * time.Second,
		PoisonQueueTopic:     TopicPoison,
	}
}

// Router runs the bus handlers as a suture service. Each Serve call builds
// a new Watermill router.
type Router struct {
	bus       *Bus
	observer  ValueObserver
	forwarder Forwarder
	config    RouterConfig
	logger    watermill.LoggerAdapter

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRouter returns a router applying observations to observer. forwarder
// may be nil.
func NewRouter(bus *Bus, observer ValueObserver, forwarder Forwarder, cfg RouterConfig, logger watermill.LoggerAdapter) *Router {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	if cfg.PoisonQueueTopic == "" {
		cfg.PoisonQueueTopic = TopicPoison
	}
	return &Router{
		bus:       bus,
		observer:  observer,
		forwarder: forwarder,
		config:    cfg,
		logger:    logger,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once handlers have subscribed for the first time.
func (r *Router) Ready() <-chan struct{} { return r.ready }

func (r *Router) build() (*message.Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: r.config.CloseTimeout}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	// Added before Retry so it only sees a message once retries are spent.
	poisonQueue, err := middleware.PoisonQueue(r.bus.publisher, r.config.PoisonQueueTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	wmRouter.AddMiddleware(poisonQueue)

	if r.config.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      r.config.RetryMaxRetries,
			InitialInterval: r.config.RetryInitialInterval,
			MaxInterval:     r.config.RetryMaxInterval,
			Multiplier:      2.0,
			Logger:          r.logger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}

	wmRouter.AddConsumerHandler(
		HandlerApplyObservation,
		TopicPinObserved,
		r.bus.Subscriber(),
		r.applyObservation,
	)

	if r.forwarder != nil {
		wmRouter.AddConsumerHandler(
			HandlerMQTTForward,
			TopicPinChanged,
			r.bus.Subscriber(),
			r.forwardChange,
		)
	}

	return wmRouter, nil
}

// Serve implements suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	wmRouter, err := r.build()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-wmRouter.Running():
			r.readyOnce.Do(func() { close(r.ready) })
		case <-ctx.Done():
		}
	}()

	if err := wmRouter.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (r *Router) String() string { return "event-router" }

// applyObservation stores an observed value. A pin or device deleted since
// the observation was taken is not an error.
func (r *Router) applyObservation(msg *message.Message) error {
	var ev PinObserved
	if err := decode(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed pin.observed event")
		metrics.RecordEventHandled(HandlerApplyObservation, err)
		return nil
	}

	_, err := r.observer.ObserveValueAt(msg.Context(), ev.DeviceID, ev.PinID, ev.Value, ev.ObservedAt)
	if errors.Is(err, pin.ErrPinNotFound) || errors.Is(err, pin.ErrDeviceNotFound) {
		logging.Debug().Str("device_id", ev.DeviceID).Str("pin_id", ev.PinID).Msg("Observation for removed pin ignored")
		err = nil
	}
	metrics.RecordEventHandled(HandlerApplyObservation, err)
	return err
}

func (r *Router) forwardChange(msg *message.Message) error {
	var ev PinChanged
	if err := decode(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed pin.changed event")
		metrics.RecordEventHandled(HandlerMQTTForward, err)
		return nil
	}

	err := r.forwarder.Forward(ev)
	metrics.RecordEventHandled(HandlerMQTTForward, err)
	return err
}
