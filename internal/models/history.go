// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package models

// Layouts for history bucket keys.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Change is one observed pin value. Within a DateRecord, Time is unique.
type Change struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Summary is derived from a DateRecord's changes.
type Summary struct {
	AvgValue float64 `json:"avg_value"`
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
	Count    int     `json:"count"`
}

// ValueGroup counts how often a distinct value was observed.
type ValueGroup struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// DateRecord is the per (device, pin, date) history bucket. Summary and
// ValueGroups are always recomputed from Changes.
type DateRecord struct {
	Date        string       `json:"date"`
	Changes     []Change     `json:"changes"`
	Summary     Summary      `json:"summary"`
	ValueGroups []ValueGroup `json:"value_groups"`
}

// HistoryItem is the history of one pin; ID is the pin id.
type HistoryItem struct {
	ID      string       `json:"id"`
	Records []DateRecord `json:"records"`
}

// HistoryDevice groups pin histories by device.
type HistoryDevice struct {
	DeviceID string        `json:"device_id"`
	Items    []HistoryItem `json:"items"`
}

// OverviewItem is a pin history joined with the pin it belongs to. Pin is
// nil when the pin no longer exists on the device.
type OverviewItem struct {
	HistoryItem
	Pin *PinSummary `json:"pin,omitempty"`
}

// Overview joins a device's history with its metadata for reporting.
type Overview struct {
	DeviceID string         `json:"device_id"`
	Device   *DeviceSummary `json:"device,omitempty"`
	Items    []OverviewItem `json:"items"`
}
