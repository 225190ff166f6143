// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
	"github.com/tomtom215/pinboard/internal/models"
)

// DeviceLister lists every device.
type DeviceLister interface {
	List(ctx context.Context) []models.Device
}

// ObservationSink receives values read by the poller.
type ObservationSink interface {
	PinObserved(ctx context.Context, deviceID, pinID string, value float64, at time.Time) error
}

// PollerConfig holds poller timing.
type PollerConfig struct {
	// RescanInterval is how often the device list is re-read to pick up
	// added, removed or re-timed gauges.
	RescanInterval time.Duration
	// MinInterval floors each pin's delay_sec.
	MinInterval time.Duration
}

type pollTarget struct {
	deviceID string
	pinID    string
	token    string
	pin      string
	interval time.Duration
}

type pollWorker struct {
	target pollTarget
	cancel context.CancelFunc
}

// Poller reads every gauge pin on its own delay_sec cadence. It runs as a
// supervised service: Serve blocks until ctx is cancelled.
type Poller struct {
	devices DeviceLister
	remote  Remote
	sink    ObservationSink
	config  PollerConfig

	mu      sync.Mutex
	workers map[string]*pollWorker
	wg      sync.WaitGroup
}

// NewPoller returns a poller. Values are handed to sink rather than stored
// directly so they can travel over the event bus.
func NewPoller(devices DeviceLister, remote Remote, sink ObservationSink, cfg PollerConfig) *Poller {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = 30 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	return &Poller{
		devices: devices,
		remote:  remote,
		sink:    sink,
		config:  cfg,
		workers: make(map[string]*pollWorker),
	}
}

// Serve implements suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("rescan_interval", p.config.RescanInterval).Msg("Starting gauge poller")

	p.rescan(ctx)

	ticker := time.NewTicker(p.config.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stopAll()
			logging.Info().Msg("Gauge poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.rescan(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Poller) String() string { return "gauge-poller" }

// Active returns the number of pins being polled.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *Poller) targets(ctx context.Context) map[string]pollTarget {
	out := make(map[string]pollTarget)
	for _, d := range p.devices.List(ctx) {
		if d.Token == "" {
			continue
		}
		for _, pin := range d.Items {
			if pin.Property.Widget != models.WidgetGauge || pin.Pin == "" {
				continue
			}
			interval := time.Duration(pin.Property.DelaySec) * time.Second
			if interval < p.config.MinInterval {
				interval = p.config.MinInterval
			}
			out[d.ID+"/"+pin.ID] = pollTarget{
				deviceID: d.ID,
				pinID:    pin.ID,
				token:    d.Token,
				pin:      pin.Pin,
				interval: interval,
			}
		}
	}
	return out
}

// rescan reconciles running workers with the current gauge set.
func (p *Poller) rescan(ctx context.Context) {
	want := p.targets(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	for key, w := range p.workers {
		if t, ok := want[key]; !ok || t != w.target {
			w.cancel()
			delete(p.workers, key)
		}
	}
	for key, t := range want {
		if _, ok := p.workers[key]; ok {
			continue
		}
		wctx, cancel := context.WithCancel(ctx)
		p.workers[key] = &pollWorker{target: t, cancel: cancel}
		p.wg.Add(1)
		go p.run(wctx, t)
	}

	metrics.PolledPins.Set(float64(len(p.workers)))
}

func (p *Poller) run(ctx context.Context, t pollTarget) {
	defer p.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, t)
		}
	}
}

func (p *Poller) poll(ctx context.Context, t pollTarget) {
	v, err := p.remote.Get(ctx, t.token, t.pin)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PollCycles.WithLabelValues("remote_error").Inc()
		logging.Debug().Err(err).Str("device_id", t.deviceID).Str("pin", t.pin).Msg("Gauge poll failed")
		return
	}

	if err := p.sink.PinObserved(ctx, t.deviceID, t.pinID, v, time.Now()); err != nil {
		metrics.PollCycles.WithLabelValues("publish_error").Inc()
		logging.Warn().Err(err).Str("device_id", t.deviceID).Str("pin_id", t.pinID).Msg("Failed to publish gauge value")
		return
	}
	metrics.PollCycles.WithLabelValues("success").Inc()
}

func (p *Poller) stopAll() {
	p.mu.Lock()
	for key, w := range p.workers {
		w.cancel()
		delete(p.workers, key)
	}
	p.mu.Unlock()

	p.wg.Wait()
	metrics.PolledPins.Set(0)
}
