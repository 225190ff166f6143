// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tomtom215/pinboard/docs" // Import generated swagger docs
	"github.com/tomtom215/pinboard/internal/api"
	"github.com/tomtom215/pinboard/internal/bridge"
	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/device"
	"github.com/tomtom215/pinboard/internal/events"
	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/overview"
	"github.com/tomtom215/pinboard/internal/pin"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/supervisor"
	"github.com/tomtom215/pinboard/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("storage_backend", cfg.Storage.Backend).
		Str("events_backend", cfg.Events.Backend).
		Str("bridge_url", cfg.Bridge.BaseURL).
		Msg("Starting Pinboard with supervisor tree")

	loc, err := cfg.Server.Location()
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Server.Timezone).Msg("Invalid timezone")
	}

	// === STORAGE ===

	backend, err := store.Open(store.Options{
		Backend:    cfg.Storage.Backend,
		DataDir:    cfg.Storage.DataDir,
		BadgerPath: cfg.Storage.BadgerPath,
		SyncWrites: cfg.Storage.SyncWrites,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()
	assets := store.NewAssetStore(cfg.Storage.AssetsDir)

	// === DOMAIN ===

	hist := history.NewAggregator(backend)

	var repoOpts []device.Option
	if cfg.Pins.CascadeHistory {
		repoOpts = append(repoOpts, device.WithHistoryCascade(hist))
		logging.Info().Msg("History cascade enabled: deleting a device or pin drops its history")
	}
	devices := device.NewRepository(backend, assets, repoOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := events.NewBus(ctx, cfg.Events, logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	pins := pin.NewManager(devices, hist, pin.Options{
		SortPolicy:     pin.SortPolicy(cfg.Pins.SortPolicy),
		CascadeHistory: cfg.Pins.CascadeHistory,
		Location:       loc,
		Notifier:       bus,
	})

	client := bridge.NewClient(&cfg.Bridge)
	bridgeSvc := bridge.NewService(client, devices, pins)

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	var forwarder events.Forwarder
	if cfg.MQTT.Enabled {
		mqttForwarder, err := events.NewMQTTForwarder(cfg.MQTT)
		if err != nil {
			// Pin changes still reach the store; only forwarding is lost.
			logging.Error().Err(err).Str("broker", cfg.MQTT.BrokerURL).Msg("MQTT forwarding disabled")
		} else {
			defer mqttForwarder.Close()
			forwarder = mqttForwarder
			logging.Info().Str("broker", cfg.MQTT.BrokerURL).Msg("MQTT forwarding enabled")
		}
	}

	tree.AddMessagingService(events.NewRouter(bus, pins, forwarder, events.RouterConfigFrom(cfg.Events), nil))

	if cfg.Bridge.PollEnabled {
		tree.AddMessagingService(bridge.NewPoller(devices, client, bus, bridge.PollerConfig{
			RescanInterval: cfg.Bridge.RescanInterval,
			MinInterval:    cfg.Bridge.MinPollInterval,
		}))
		logging.Info().Dur("rescan", cfg.Bridge.RescanInterval).Msg("Gauge poller enabled")
	}

	if bb, ok := backend.(*store.BadgerBackend); ok {
		tree.AddDataService(services.NewStorageGCService(bb, cfg.Storage.GCInterval))
	}

	// === HTTP ===

	handler := api.NewHandler(api.HandlerOptions{
		Devices:        devices,
		Pins:           pins,
		History:        hist,
		Overview:       overview.NewBuilder(hist, devices),
		Bridge:         bridgeSvc,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Checks: map[string]api.ReadinessCheck{
			"storage": func(ctx context.Context) error {
				_, err := backend.Load(ctx, "devices")
				if errors.Is(err, store.ErrNotExist) {
					return nil
				}
				return err
			},
			"events": bus.Check,
		},
	})

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security))
	router := api.NewRouter(handler, mw, cfg.Storage.AssetsDir)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Pinboard stopped")
}
