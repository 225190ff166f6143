// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package config

import (
	"fmt"
	"net/url"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validatePins(); err != nil {
		return err
	}

	if err := c.validateBridge(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validateMQTT(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if _, err := c.Server.Location(); err != nil {
		return fmt.Errorf("TZ is not a known time zone: %w", err)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when STORAGE_BACKEND=file")
		}
	case "badger":
		if c.Storage.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
		if c.Storage.GCInterval < time.Minute {
			return fmt.Errorf("BADGER_GC_INTERVAL must be at least 1m, got: %v", c.Storage.GCInterval)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: file, badger")
	}
	if c.Storage.AssetsDir == "" {
		return fmt.Errorf("ASSETS_DIR is required")
	}
	return nil
}

func (c *Config) validatePins() error {
	if c.Pins.SortPolicy != "max" && c.Pins.SortPolicy != "next" {
		return fmt.Errorf("PIN_SORT_POLICY must be one of: max, next")
	}
	return nil
}

func (c *Config) validateBridge() error {
	if err := validateHTTPURL(c.Bridge.BaseURL, "BLYNK_URL"); err != nil {
		return err
	}
	if c.Bridge.Timeout <= 0 {
		return fmt.Errorf("BLYNK_TIMEOUT must be positive")
	}
	if c.Bridge.RateLimit < 0 {
		return fmt.Errorf("BLYNK_RATE_LIMIT must not be negative")
	}
	if c.Bridge.PollEnabled && c.Bridge.RescanInterval < time.Second {
		return fmt.Errorf("GAUGE_RESCAN_INTERVAL must be at least 1s, got: %v", c.Bridge.RescanInterval)
	}

	b := c.Bridge.Breaker
	if b.MaxRequests == 0 {
		return fmt.Errorf("BLYNK_BREAKER_MAX_REQUESTS must be at least 1")
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		return fmt.Errorf("BLYNK_BREAKER_FAILURE_RATIO must be in (0, 1], got: %v", b.FailureRatio)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("BLYNK_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "gochannel":
	case "nats":
		if !c.Events.EmbeddedNATS {
			if err := validateNATSURL(c.Events.NATSURL); err != nil {
				return fmt.Errorf("NATS_URL is invalid: %w", err)
			}
		}
		if c.Events.StreamName == "" {
			return fmt.Errorf("NATS_STREAM_NAME is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of: gochannel, nats")
	}
	if c.Events.MaxRetries < 0 {
		return fmt.Errorf("EVENTS_MAX_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	u, err := url.Parse(c.MQTT.BrokerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("MQTT_BROKER_URL is invalid: %q", c.MQTT.BrokerURL)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("MQTT_BROKER_URL scheme must be tcp, ssl, tls, ws, wss, mqtt or mqtts, got: %s", u.Scheme)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got: %d", c.MQTT.QoS)
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_ENABLED=true")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL checks that rawURL is an http(s) URL with a host and no
// query string.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateNATSURL supports nats://, tls://, ws:// and wss:// schemes.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}
