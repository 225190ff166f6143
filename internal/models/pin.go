// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package models

import "time"

// PinType distinguishes boolean virtual pins from ranged analog pins.
type PinType string

const (
	PinTypeVirtual PinType = "virtual"
	PinTypeAnalog  PinType = "analog"
)

// Widget names understood by the dashboard.
const (
	WidgetSwitch = "switch"
	WidgetSlider = "slider"
	WidgetGauge  = "gauge"
)

// Pin is a typed data channel on a device, bound to a remote hardware pin
// identifier such as "V1".
type Pin struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      PinType     `json:"type"`
	Pin       string      `json:"pin"`
	Sort      int         `json:"sort"`
	Value     float64     `json:"value"`
	MinValue  float64     `json:"min_value"`
	MaxValue  float64     `json:"max_value"`
	Property  PinProperty `json:"property"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PinProperty holds presentation metadata. DelaySec is also the gauge poll
// interval.
type PinProperty struct {
	Widget   string `json:"widget"`
	Color    string `json:"color"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	DelaySec int    `json:"delay_sec"`
}

// DefaultPinProperty returns the presentation defaults for a new pin.
func DefaultPinProperty() PinProperty {
	return PinProperty{
		Widget:   WidgetSwitch,
		Color:    "#16a34a",
		Width:    1,
		Height:   1,
		DelaySec: 3,
	}
}

// PinSummary is a pin without its presentation metadata.
type PinSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      PinType   `json:"type"`
	Pin       string    `json:"pin"`
	Sort      int       `json:"sort"`
	Value     float64   `json:"value"`
	MinValue  float64   `json:"min_value"`
	MaxValue  float64   `json:"max_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary projects the pin onto PinSummary.
//
//nolint:gocritic // value receiver mirrors Device.Summary
func (p Pin) Summary() PinSummary {
	return PinSummary{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type,
		Pin:       p.Pin,
		Sort:      p.Sort,
		Value:     p.Value,
		MinValue:  p.MinValue,
		MaxValue:  p.MaxValue,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PinInput carries caller-supplied pin fields. Nil fields are "not given":
// on create they take defaults, on update they keep the stored value.
//
// Presentation fields may be sent flat (widget, color, ...) or nested under
// property; nested values win.
type PinInput struct {
	ID       string            `json:"id,omitempty"`
	Name     *string           `json:"name,omitempty" validate:"omitempty,max=100"`
	Type     *PinType          `json:"type,omitempty" validate:"omitempty,oneof=virtual analog"`
	Pin      *string           `json:"pin,omitempty" validate:"omitempty,max=32"`
	Sort     *int              `json:"sort,omitempty"`
	Value    *float64          `json:"value,omitempty"`
	MinValue *float64          `json:"min_value,omitempty"`
	MaxValue *float64          `json:"max_value,omitempty"`
	Widget   *string           `json:"widget,omitempty" validate:"omitempty,oneof=switch slider gauge"`
	Color    *string           `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Width    *int              `json:"width,omitempty" validate:"omitempty,min=1"`
	Height   *int              `json:"height,omitempty" validate:"omitempty,min=1"`
	DelaySec *int              `json:"delay_sec,omitempty" validate:"omitempty,min=1"`
	Property *PinPropertyInput `json:"property,omitempty"`
}

// PinPropertyInput is the nested form of the presentation fields.
type PinPropertyInput struct {
	Widget   *string `json:"widget,omitempty" validate:"omitempty,oneof=switch slider gauge"`
	Color    *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Width    *int    `json:"width,omitempty" validate:"omitempty,min=1"`
	Height   *int    `json:"height,omitempty" validate:"omitempty,min=1"`
	DelaySec *int    `json:"delay_sec,omitempty" validate:"omitempty,min=1"`
}

// BulkResult reports a batch pin update.
type BulkResult struct {
	DeviceID     string `json:"device_id"`
	UpdatedCount int    `json:"updated_count"`
	UpdatedItems []Pin  `json:"updated_items"`
}
