// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

/*
Package main is the entry point for the Pinboard server.

Pinboard keeps a catalog of IoT devices, each with an optional 3D model file
and a set of pins (named values such as a gauge reading or a switch state).
Every pin value change is recorded into a per-day history, and gauge pins can
be read from and written to a remote pin API.

# Application Architecture

Long-lived components run under a Suture v4 supervisor tree:

	RootSupervisor ("pinboard")
	├── DataSupervisor ("data-layer")
	│   └── Storage GC (badger backend only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Event router (pin.observed -> pin manager, pin.changed -> MQTT)
	│   └── Gauge poller (optional, ENABLE_GAUGE_POLLING=true)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment variables
 2. Logging: zerolog, with slog and watermill adapters
 3. Storage: file or badger backend plus the model asset directory
 4. Domain: history aggregator, device repository, pin manager
 5. Events: watermill bus on a Go channel or NATS JetStream
 6. Bridge: remote pin API client behind a circuit breaker
 7. HTTP: Chi router with CORS, rate limiting and Prometheus metrics

# Configuration

Configuration is layered (highest priority wins):
  - Environment variables (see .env.example)
  - Config file (config.yaml, or CONFIG_PATH)
  - Built-in defaults

Commonly changed settings:
  - HTTP_PORT: HTTP listen port (default 3000)
  - STORAGE_BACKEND: "file" or "badger"
  - DATA_DIR / ASSETS_DIR: where documents and model files live
  - BLYNK_URL: remote pin API
  - ENABLE_GAUGE_POLLING: poll gauge pins on their delay_sec cadence
  - EVENTS_BACKEND: "gochannel" or "nats"
  - MQTT_ENABLED / MQTT_BROKER_URL: forward pin changes to a broker

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM. The supervisor
stops the HTTP server and the messaging services, after which the bus, the
MQTT client and the storage backend are closed.
*/
package main
