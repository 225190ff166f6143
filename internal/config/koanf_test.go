// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points config discovery at an empty temp dir for one test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origPaths, origDotenv := DefaultConfigPaths, DotenvFile
	DefaultConfigPaths = []string{filepath.Join(dir, "config.yaml")}
	DotenvFile = filepath.Join(dir, ".env")
	t.Cleanup(func() {
		DefaultConfigPaths, DotenvFile = origPaths, origDotenv
	})
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Pins.SortPolicy != "max" {
		t.Errorf("Pins.SortPolicy = %q, want max", cfg.Pins.SortPolicy)
	}
	if cfg.Pins.CascadeHistory {
		t.Error("Pins.CascadeHistory should default to false")
	}
	if cfg.Events.Backend != "gochannel" {
		t.Errorf("Events.Backend = %q, want gochannel", cfg.Events.Backend)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"TZ", "server.timezone"},
		{"STORAGE_BACKEND", "storage.backend"},
		{"BADGER_PATH", "storage.badger_path"},
		{"PIN_SORT_POLICY", "pins.sort_policy"},
		{"PIN_CASCADE_HISTORY", "pins.cascade_history"},
		{"BLYNK_URL", "bridge.base_url"},
		{"ENABLE_GAUGE_POLLING", "bridge.poll_enabled"},
		{"BLYNK_BREAKER_FAILURE_RATIO", "bridge.breaker.failure_ratio"},
		{"EVENTS_BACKEND", "events.backend"},
		{"NATS_EMBEDDED", "events.embedded_nats"},
		{"MQTT_BROKER_URL", "mqtt.broker_url"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},

		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := isolate(t)

	t.Run("no config file exists", func(t *testing.T) {
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("default path exists", func(t *testing.T) {
		path := DefaultConfigPaths[0]
		if err := os.WriteFile(path, []byte("server:\n  port: 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(path)

		if got := findConfigFile(); got != path {
			t.Errorf("findConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("CONFIG_PATH takes precedence", func(t *testing.T) {
		custom := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(custom, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, custom)

		if got := findConfigFile(); got != custom {
			t.Errorf("findConfigFile() = %q, want %q", got, custom)
		}
	})

	t.Run("CONFIG_PATH with non-existent file", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PIN_SORT_POLICY", "next")
	t.Setenv("BLYNK_TIMEOUT", "3s")
	t.Setenv("BLYNK_BREAKER_FAILURE_RATIO", "0.5")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example ,")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Pins.SortPolicy != "next" {
		t.Errorf("Pins.SortPolicy = %q, want next", cfg.Pins.SortPolicy)
	}
	if cfg.Bridge.Timeout != 3*time.Second {
		t.Errorf("Bridge.Timeout = %v, want 3s", cfg.Bridge.Timeout)
	}
	if cfg.Bridge.Breaker.FailureRatio != 0.5 {
		t.Errorf("Breaker.FailureRatio = %v, want 0.5", cfg.Bridge.Breaker.FailureRatio)
	}
	want := []string{"http://a.example", "http://b.example"}
	if strings.Join(cfg.Security.CORSOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}

	// Defaults survive for unset values.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Bridge.Breaker.MinRequests != 10 {
		t.Errorf("Breaker.MinRequests = %d, want 10 (default)", cfg.Bridge.Breaker.MinRequests)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := isolate(t)

	content := `
server:
  port: 8088
storage:
  backend: badger
  badger_path: /var/lib/pinboard/badger
pins:
  cascade_history: true
events:
  backend: nats
  embedded_nats: true
security:
  cors_origins:
    - https://dash.example
`
	path := filepath.Join(dir, "pinboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	// Env beats the file.
	t.Setenv("HTTP_PORT", "7000")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 from env", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "badger" || cfg.Storage.BadgerPath != "/var/lib/pinboard/badger" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if !cfg.Pins.CascadeHistory {
		t.Error("Pins.CascadeHistory = false, want true from file")
	}
	if cfg.Events.Backend != "nats" || !cfg.Events.EmbeddedNATS {
		t.Errorf("Events = %+v", cfg.Events)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "https://dash.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfDotenv(t *testing.T) {
	isolate(t)

	dotenv := "MQTT_CLIENT_ID=from-dotenv\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(DotenvFile, []byte(dotenv), 0o644); err != nil {
		t.Fatal(err)
	}
	// Set before loading so godotenv leaves it alone.
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("MQTT_CLIENT_ID") })

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.MQTT.ClientID != "from-dotenv" {
		t.Errorf("MQTT.ClientID = %q, want from-dotenv", cfg.MQTT.ClientID)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (process env wins over .env)", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfInvalid(t *testing.T) {
	isolate(t)
	t.Setenv("STORAGE_BACKEND", "sqlite")

	_, err := LoadWithKoanf()
	if err == nil || !strings.Contains(err.Error(), "STORAGE_BACKEND") {
		t.Errorf("LoadWithKoanf() error = %v, want STORAGE_BACKEND validation error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"unknown timezone", func(c *Config) { c.Server.Timezone = "Mars/Olympus" }, "TZ"},
		{"badger without path", func(c *Config) { c.Storage.Backend = "badger"; c.Storage.BadgerPath = "" }, "BADGER_PATH"},
		{"sort policy", func(c *Config) { c.Pins.SortPolicy = "min" }, "PIN_SORT_POLICY"},
		{"bridge scheme", func(c *Config) { c.Bridge.BaseURL = "ftp://blynk" }, "BLYNK_URL"},
		{"failure ratio", func(c *Config) { c.Bridge.Breaker.FailureRatio = 1.5 }, "FAILURE_RATIO"},
		{"events backend", func(c *Config) { c.Events.Backend = "kafka" }, "EVENTS_BACKEND"},
		{"nats url", func(c *Config) { c.Events.Backend = "nats"; c.Events.NATSURL = "http://x" }, "NATS_URL"},
		{"embedded nats skips url", func(c *Config) {
			c.Events.Backend = "nats"
			c.Events.EmbeddedNATS = true
			c.Events.NATSURL = ""
		}, ""},
		{"mqtt scheme", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.BrokerURL = "http://broker:1883" }, "MQTT_BROKER_URL"},
		{"mqtt qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, "MQTT_QOS"},
		{"mqtt disabled ignores url", func(c *Config) { c.MQTT.BrokerURL = "" }, ""},
		{"rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestServerLocation(t *testing.T) {
	t.Parallel()
	s := ServerConfig{Timezone: "UTC"}
	loc, err := s.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
	if loc, _ := (ServerConfig{}).Location(); loc != time.Local {
		t.Errorf("empty Timezone = %v, want Local", loc)
	}
}
