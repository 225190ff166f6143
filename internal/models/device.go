// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package models

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Device is a registered hardware unit reachable through the remote pin API.
// Pins are owned by the device and only change through pin operations.
type Device struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Token         string        `json:"token"`
	Description   string        `json:"description"`
	ModelPath     string        `json:"model_path"`
	ModelName     string        `json:"model_name"`
	ModelProperty ModelProperty `json:"model_property"`
	Items         []Pin         `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PinIndex returns the position of the pin with the given id, or -1.
func (d *Device) PinIndex(pinID string) int {
	for i := range d.Items {
		if d.Items[i].ID == pinID {
			return i
		}
	}
	return -1
}

// MaxSort returns the largest sort value among the device's pins, 0 when
// the device has none.
func (d *Device) MaxSort() int {
	maxSort := 0
	for i, p := range d.Items {
		if i == 0 || p.Sort > maxSort {
			maxSort = p.Sort
		}
	}
	return maxSort
}

// DeviceSummary is the device without its pins and visualization config,
// used where those would bloat a response (the history overview).
type DeviceSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Token       string    `json:"token"`
	Description string    `json:"description"`
	ModelPath   string    `json:"model_path"`
	ModelName   string    `json:"model_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary projects the device onto DeviceSummary.
//
//nolint:gocritic // value receiver keeps Device usable as a map value
func (d Device) Summary() DeviceSummary {
	return DeviceSummary{
		ID:          d.ID,
		Name:        d.Name,
		Token:       d.Token,
		Description: d.Description,
		ModelPath:   d.ModelPath,
		ModelName:   d.ModelName,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// DeviceInput carries caller-supplied device fields. Nil fields keep the
// stored value on update.
type DeviceInput struct {
	Name          *string        `json:"name,omitempty" validate:"omitempty,max=200"`
	Token         *string        `json:"token,omitempty" validate:"omitempty,max=200"`
	Description   *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	ModelPath     *string        `json:"model_path,omitempty" validate:"omitempty,asset_ext"`
	ModelProperty *ModelProperty `json:"model_property,omitempty"`
}

// ModelProperty is the 3D viewer configuration stored with a device.
type ModelProperty struct {
	ModelX      float64   `json:"model_x"`
	ModelY      float64   `json:"model_y"`
	ModelZ      float64   `json:"model_z"`
	ModelSize   float64   `json:"model_size"`
	CamX        float64   `json:"cam_x"`
	CamY        float64   `json:"cam_y"`
	CamZ        float64   `json:"cam_z"`
	SpaceWidth  Dimension `json:"space_width"`
	SpaceHeight Dimension `json:"space_height"`
	CanMouse    bool      `json:"can_mouse"`
	CanZoom     bool      `json:"can_zoom"`
	BG          string    `json:"bg"`
	LightX      float64   `json:"light_x"`
	LightY      float64   `json:"light_y"`
	LightZ      float64   `json:"light_z"`
	LightColor  string    `json:"light_color"`
	LightPower  float64   `json:"light_power"`
}

// DefaultModelProperty returns the viewer configuration used for new devices
// and for every field a caller leaves out.
func DefaultModelProperty() ModelProperty {
	return ModelProperty{
		ModelSize:   1,
		CamX:        2,
		CamY:        2,
		CamZ:        2,
		SpaceWidth:  Dimension{Text: "100%"},
		SpaceHeight: Dimension{Text: "100%"},
		CanMouse:    true,
		CanZoom:     true,
		BG:          "#ffffff",
		LightY:      100,
		LightColor:  "#ffffff",
		LightPower:  3,
	}
}

// UnmarshalJSON decodes over DefaultModelProperty, so absent keys keep
// their defaults.
func (m *ModelProperty) UnmarshalJSON(data []byte) error {
	type plain ModelProperty
	p := plain(DefaultModelProperty())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = ModelProperty(p)
	return nil
}

// Dimension is a viewer size given either as CSS text ("100%") or as a
// bare number of pixels. It round-trips in whichever form it arrived.
type Dimension struct {
	Text     string
	Pixels   float64
	IsPixels bool
}

// MarshalJSON implements json.Marshaler.
func (d Dimension) MarshalJSON() ([]byte, error) {
	if d.IsPixels {
		return []byte(strconv.FormatFloat(d.Pixels, 'f', -1, 64)), nil
	}
	return json.Marshal(d.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Dimension{Text: s}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*d = Dimension{Pixels: f, IsPixels: true}
	return nil
}
