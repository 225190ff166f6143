// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pinboard/config.yaml",
	"/etc/pinboard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotenvFile is loaded into the process environment before env vars are
// read. Variables already set in the environment win.
var DotenvFile = ".env"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Timezone:        "Local",
			MaxUploadBytes:  50 << 20,
		},
		Storage: StorageConfig{
			Backend:    "file",
			DataDir:    "./data",
			AssetsDir:  "./shapes",
			BadgerPath: "./data/badger",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
		},
		Pins: PinsConfig{
			SortPolicy:     "max",
			CascadeHistory: false,
		},
		Bridge: BridgeConfig{
			BaseURL:         "https://blynk.cloud/external/api",
			Timeout:         10 * time.Second,
			RateLimit:       10,
			RateBurst:       5,
			PollEnabled:     true,
			RescanInterval:  30 * time.Second,
			MinPollInterval: time.Second,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Events: EventsConfig{
			Backend:         "gochannel",
			NATSURL:         "nats://127.0.0.1:4222",
			EmbeddedNATS:    false,
			StoreDir:        "./data/nats",
			StreamName:      "PINBOARD",
			BufferSize:      256,
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Enabled:        false,
			BrokerURL:      "tcp://127.0.0.1:1883",
			ClientID:       "pinboard",
			TopicPrefix:    "pinboard",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
// Priority order (lowest to highest):
//  1. Built-in defaults
//  2. Config file (config.yaml)
//  3. Environment variables, including those from .env
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: .env, then environment variables (highest priority)
	if err := loadDotenv(DotenvFile); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotenv reads path into the process environment. A missing file is
// not an error.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigFile searches for a config file in the following order:
//  1. Path specified in CONFIG_PATH environment variable
//  2. Default paths (config.yaml, config.yml, /etc/pinboard/...)
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
// Environment variables can't directly represent slices, so we parse them.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"tz":                    "server.timezone",
	"max_upload_bytes":      "server.max_upload_bytes",

	// Storage
	"storage_backend":    "storage.backend",
	"data_dir":           "storage.data_dir",
	"assets_dir":         "storage.assets_dir",
	"badger_path":        "storage.badger_path",
	"storage_sync":       "storage.sync_writes",
	"badger_gc_interval": "storage.gc_interval",

	// Pins
	"pin_sort_policy":     "pins.sort_policy",
	"pin_cascade_history": "pins.cascade_history",

	// Bridge
	"blynk_url":                   "bridge.base_url",
	"blynk_timeout":               "bridge.timeout",
	"blynk_rate_limit":            "bridge.rate_limit",
	"blynk_rate_burst":            "bridge.rate_burst",
	"enable_gauge_polling":        "bridge.poll_enabled",
	"gauge_rescan_interval":       "bridge.rescan_interval",
	"gauge_min_interval":          "bridge.min_poll_interval",
	"blynk_breaker_max_requests":  "bridge.breaker.max_requests",
	"blynk_breaker_interval":      "bridge.breaker.interval",
	"blynk_breaker_timeout":       "bridge.breaker.timeout",
	"blynk_breaker_min_requests":  "bridge.breaker.min_requests",
	"blynk_breaker_failure_ratio": "bridge.breaker.failure_ratio",

	// Events
	"events_backend":        "events.backend",
	"nats_url":              "events.nats_url",
	"nats_embedded":         "events.embedded_nats",
	"nats_store_dir":        "events.store_dir",
	"nats_stream_name":      "events.stream_name",
	"events_buffer_size":    "events.buffer_size",
	"events_max_retries":    "events.max_retries",
	"events_retry_interval": "events.initial_interval",

	// MQTT
	"mqtt_enabled":         "mqtt.enabled",
	"mqtt_broker_url":      "mqtt.broker_url",
	"mqtt_client_id":       "mqtt.client_id",
	"mqtt_topic_prefix":    "mqtt.topic_prefix",
	"mqtt_qos":             "mqtt.qos",
	"mqtt_username":        "mqtt.username",
	"mqtt_password":        "mqtt.password",
	"mqtt_connect_timeout": "mqtt.connect_timeout",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - BLYNK_URL -> bridge.base_url
//   - ENABLE_GAUGE_POLLING -> bridge.poll_enabled
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables do not
	// pollute config.
	return ""
}
