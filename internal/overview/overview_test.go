// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package overview

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pinboard/internal/device"
	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	backend := store.NewFileBackend(dir)
	devices := device.NewRepository(backend, store.NewAssetStore(filepath.Join(dir, "shapes")))
	hist := history.NewAggregator(backend)

	d, err := devices.Create(ctx, models.DeviceInput{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err = devices.Mutate(ctx, d.ID, func(dev *models.Device) error {
		dev.Items = append(dev.Items, models.Pin{ID: "p1", Name: "lamp", Value: 1, Property: models.DefaultPinProperty()})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range []string{"p1", "gone"} {
		if _, err := hist.AddChangeIf(ctx, history.Key{DeviceID: d.ID, ItemID: item, Date: "2024-01-01"}, models.Change{Time: "t", Value: 1}); err != nil {
			t.Fatal(err)
		}
	}

	ov, err := NewBuilder(hist, devices).Build(ctx, d.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ov.Device == nil || ov.Device.ID != d.ID {
		t.Errorf("device = %+v", ov.Device)
	}
	if len(ov.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(ov.Items))
	}
	if ov.Items[0].Pin == nil || ov.Items[0].Pin.Name != "lamp" {
		t.Errorf("item p1 pin = %+v", ov.Items[0].Pin)
	}
	if ov.Items[1].Pin != nil {
		t.Errorf("deleted pin still joined: %+v", ov.Items[1].Pin)
	}

	raw, err := json.Marshal(ov)
	if err != nil {
		t.Fatal(err)
	}
	for _, hidden := range []string{`"model_property"`, `"property"`} {
		if strings.Contains(string(raw), hidden) {
			t.Errorf("overview JSON exposes %s: %s", hidden, raw)
		}
	}
}

func TestBuildNoHistory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	backend := store.NewFileBackend(dir)
	b := NewBuilder(history.NewAggregator(backend), device.NewRepository(backend, store.NewAssetStore(dir)))

	if _, err := b.Build(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Build() error = %v, want ErrNotFound", err)
	}
}
