// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package metrics holds the Prometheus collectors for Pinboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinboard_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinboard_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Store Metrics
	StoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_store_reads_total",
			Help: "Collection loads from the storage backend",
		},
		[]string{"collection"},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_store_writes_total",
			Help: "Whole-collection writes to the storage backend",
		},
		[]string{"collection", "result"}, // result: "success", "error"
	)

	StoreCorruptReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_store_corrupt_reads_total",
			Help: "Collection documents that could not be parsed and were treated as empty",
		},
		[]string{"collection"},
	)

	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinboard_store_write_duration_seconds",
			Help:    "Duration of whole-collection writes",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"collection"},
	)

	// Domain Metrics
	PinOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_pin_operations_total",
			Help: "Pin operations by kind",
		},
		[]string{"operation"}, // create, update, delete, bulk
	)

	HistoryChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_history_changes_total",
			Help: "History change mutations",
		},
		[]string{"operation"}, // add, overwrite, remove
	)

	// Bridge Metrics
	BridgeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_bridge_requests_total",
			Help: "Remote pin API calls",
		},
		[]string{"operation", "result"}, // operation: get, update; result: success, rejected, error, open
	)

	BridgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinboard_bridge_request_duration_seconds",
			Help:    "Remote pin API call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_poll_cycles_total",
			Help: "Gauge poll attempts",
		},
		[]string{"result"},
	)

	PolledPins = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinboard_polled_pins",
			Help: "Number of gauge pins currently being polled",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_events_published_total",
			Help: "Events published to the bus",
		},
		[]string{"topic", "result"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_events_handled_total",
			Help: "Events consumed by router handlers",
		},
		[]string{"handler", "result"},
	)

	MQTTForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinboard_mqtt_forwarded_total",
			Help: "Pin changes forwarded to the MQTT broker",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreWrite records a collection write and its outcome.
func RecordStoreWrite(collection string, duration time.Duration, err error) {
	StoreWriteDuration.WithLabelValues(collection).Observe(duration.Seconds())
	StoreWrites.WithLabelValues(collection, resultLabel(err)).Inc()
}

// RecordBridgeRequest records a remote API call. result is one of
// success, rejected, error, open.
func RecordBridgeRequest(operation, result string, duration time.Duration) {
	BridgeRequests.WithLabelValues(operation, result).Inc()
	BridgeRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventPublished records a bus publish.
func RecordEventPublished(topic string, err error) {
	EventsPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordEventHandled records a router handler outcome.
func RecordEventHandled(handler string, err error) {
	EventsHandled.WithLabelValues(handler, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
