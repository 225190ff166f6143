// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

/*
Package config loads Pinboard configuration.

Configuration Loading Order (Koanf v2):
 1. Defaults: built-in values from defaultConfig()
 2. Config File: optional YAML file (CONFIG_PATH, then DefaultConfigPaths)
 3. .env: loaded into the process environment when present
 4. Environment Variables: mapped explicitly by envTransformFunc

Config is immutable after LoadWithKoanf() and safe for concurrent reads.
*/
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Pins     PinsConfig     `koanf:"pins"`
	Bridge   BridgeConfig   `koanf:"bridge"`
	Events   EventsConfig   `koanf:"events"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Timezone names the IANA zone used for history dates and times.
	// Default: Local
	Timezone string `koanf:"timezone"`

	// MaxUploadBytes caps multipart device uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Location resolves Timezone.
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// StorageConfig selects where devices, history and model assets live.
type StorageConfig struct {
	// Backend is "file" (one JSON document per collection) or "badger".
	Backend    string `koanf:"backend"`
	DataDir    string `koanf:"data_dir"`
	AssetsDir  string `koanf:"assets_dir"`
	BadgerPath string `koanf:"badger_path"`
	SyncWrites bool   `koanf:"sync_writes"`

	// GCInterval is how often badger value log GC runs. Ignored for "file".
	GCInterval time.Duration `koanf:"gc_interval"`
}

// PinsConfig holds pin manager policy.
type PinsConfig struct {
	// SortPolicy is "max" (new pin takes the current max sort) or "next"
	// (max + 1).
	SortPolicy string `koanf:"sort_policy"`

	// CascadeHistory deletes a pin's history when the pin or its device is
	// deleted.
	CascadeHistory bool `koanf:"cascade_history"`
}

// BridgeConfig holds the remote pin API client and gauge poller settings.
type BridgeConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst int           `koanf:"rate_burst"`

	PollEnabled     bool          `koanf:"poll_enabled"`
	RescanInterval  time.Duration `koanf:"rescan_interval"`
	MinPollInterval time.Duration `koanf:"min_poll_interval"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker in front of the remote API.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"` // probes allowed while half-open
	Interval     time.Duration `koanf:"interval"`     // closed-state count reset period
	Timeout      time.Duration `koanf:"timeout"`      // open duration before half-open
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// EventsConfig holds the watermill bus settings.
type EventsConfig struct {
	// Backend is "gochannel" (in-process) or "nats" (JetStream).
	Backend string `koanf:"backend"`

	NATSURL      string `koanf:"nats_url"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	StoreDir     string `koanf:"store_dir"`
	StreamName   string `koanf:"stream_name"`

	BufferSize int64 `koanf:"buffer_size"`

	// Router retry middleware.
	MaxRetries      int           `koanf:"max_retries"`
	InitialInterval time.Duration `koanf:"initial_interval"`
}

// MQTTConfig holds the optional MQTT forwarder of pin changes.
type MQTTConfig struct {
	Enabled        bool          `koanf:"enabled"`
	BrokerURL      string        `koanf:"broker_url"`
	ClientID       string        `koanf:"client_id"`
	TopicPrefix    string        `koanf:"topic_prefix"`
	QoS            int           `koanf:"qos"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// SecurityConfig holds HTTP edge settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}
