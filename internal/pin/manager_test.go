// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package pin

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/pinboard/internal/device"
	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/validation"
)

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	pins []models.Pin
}

func (n *recordingNotifier) NotifyPinChanged(_ context.Context, _ models.Device, p models.Pin) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pins = append(n.pins, p)
	return nil
}

type fixture struct {
	mgr      *Manager
	devices  *device.Repository
	history  *history.Aggregator
	notifier *recordingNotifier
	deviceID string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	backend := store.NewFileBackend(filepath.Join(dir, "data"))
	devices := device.NewRepository(backend, store.NewAssetStore(filepath.Join(dir, "shapes")))
	hist := history.NewAggregator(backend)

	n := &recordingNotifier{}
	opts.Notifier = n
	opts.Location = time.UTC
	opts.Clock = func() time.Time { return testNow }

	d, err := devices.Create(context.Background(), models.DeviceInput{}, nil)
	if err != nil {
		t.Fatalf("create device: %v", err)
	}
	return &fixture{
		mgr:      NewManager(devices, hist, opts),
		devices:  devices,
		history:  hist,
		notifier: n,
		deviceID: d.ID,
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) create(t *testing.T, in models.PinInput) models.Pin {
	t.Helper()
	d, err := f.mgr.CreatePin(context.Background(), f.deviceID, in)
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	return d.Items[len(d.Items)-1]
}

func TestCreatePinDefaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	p := f.create(t, models.PinInput{Type: ptr(models.PinTypeVirtual), Pin: ptr("V1")})

	if p.Name != "Pin_"+p.ID {
		t.Errorf("Name = %q, want Pin_<id>", p.Name)
	}
	if p.Property != models.DefaultPinProperty() {
		t.Errorf("Property = %+v, want defaults", p.Property)
	}
	if p.Sort != 0 {
		t.Errorf("Sort on empty device = %d, want 0", p.Sort)
	}
	if p.MinValue != 0 || p.MaxValue != 1 || p.Value != 0 {
		t.Errorf("virtual range = %v..%v value %v", p.MinValue, p.MaxValue, p.Value)
	}
}

func TestCreatePinRequiresType(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	_, err := f.mgr.CreatePin(context.Background(), f.deviceID, models.PinInput{})
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Errorf("CreatePin() error = %v, want validation error", err)
	}
}

func TestCreatePinSortPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy SortPolicy
		want   int
	}{
		{SortMax, 5},
		{SortNext, 6},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Options{SortPolicy: tt.policy})
			ctx := context.Background()
			for _, s := range []int{1, 2, 5} {
				p := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
				if _, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{{ID: p.ID, Sort: ptr(s)}}); err != nil {
					t.Fatal(err)
				}
			}

			p := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
			if p.Sort != tt.want {
				t.Errorf("new pin sort = %d, want %d", p.Sort, tt.want)
			}
		})
	}
}

func TestCreatePinDeviceNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	_, err := f.mgr.CreatePin(context.Background(), "missing", models.PinInput{Type: ptr(models.PinTypeVirtual)})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestVirtualInvariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value *float64
		want  float64
	}{
		{"one", ptr(1.0), 1},
		{"zero", ptr(0.0), 0},
		{"above range", ptr(5.0), 0},
		{"fraction", ptr(0.5), 0},
		{"negative", ptr(-1.0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Options{})
			p := f.create(t, models.PinInput{
				Type:     ptr(models.PinTypeAnalog),
				MinValue: ptr(10.0),
				MaxValue: ptr(20.0),
			})

			d, err := f.mgr.UpdatePin(context.Background(), f.deviceID, models.PinInput{
				ID:    p.ID,
				Type:  ptr(models.PinTypeVirtual),
				Value: tt.value,
			})
			if err != nil {
				t.Fatalf("UpdatePin: %v", err)
			}
			got := d.Items[0]
			if got.MinValue != 0 || got.MaxValue != 1 || got.Value != tt.want {
				t.Errorf("pin = min %v max %v value %v, want 0/1/%v", got.MinValue, got.MaxValue, got.Value, tt.want)
			}
		})
	}
}

func TestAnalogInvariant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})

	p := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog), MinValue: ptr(10.0), MaxValue: ptr(50.0)})
	if p.Value != 10 {
		t.Errorf("create value = %v, want min 10", p.Value)
	}

	d, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: p.ID, Value: ptr(30.0)})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Items[0]; got.MinValue != 10 || got.MaxValue != 50 || got.Value != 30 {
		t.Errorf("after value update = %+v", got)
	}

	d, err = f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: p.ID, MinValue: ptr(20.0)})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Items[0]; got.MinValue != 20 || got.MaxValue != 50 || got.Value != 20 {
		t.Errorf("omitted value should default to effective min 20: %+v", got)
	}
}

func TestUpdatePinMergesAndRecordsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog), MaxValue: ptr(100.0), Name: ptr("temp")})

	d, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{
		ID:       p.ID,
		Value:    ptr(42.0),
		Property: &models.PinPropertyInput{Widget: ptr(models.WidgetGauge)},
		Color:    ptr("#000000"),
	})
	if err != nil {
		t.Fatalf("UpdatePin: %v", err)
	}

	got := d.Items[0]
	if got.Name != "temp" || got.Property.Widget != models.WidgetGauge || got.Property.Color != "#000000" {
		t.Errorf("merged pin = %+v", got)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Error("created_at changed on update")
	}

	items := f.history.FindItems(ctx, f.deviceID, p.ID)
	if len(items) != 1 || len(items[0].Records) != 1 {
		t.Fatalf("history = %+v", items)
	}
	rec := items[0].Records[0]
	if rec.Date != "2024-01-01" || len(rec.Changes) != 1 || rec.Changes[0] != (models.Change{Time: "10:00:00", Value: 42}) {
		t.Errorf("record = %+v", rec)
	}
	want := models.Summary{AvgValue: 42, MinValue: 42, MaxValue: 42, Count: 1}
	if rec.Summary != want {
		t.Errorf("summary = %+v, want %+v", rec.Summary, want)
	}

	if len(f.notifier.pins) != 1 || f.notifier.pins[0].Value != 42 {
		t.Errorf("notifications = %+v", f.notifier.pins)
	}
}

func TestUpdatePinSortFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	a := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
	b := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
	if _, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{{ID: a.ID, Sort: ptr(0)}, {ID: b.ID, Sort: ptr(7)}}); err != nil {
		t.Fatal(err)
	}

	d, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: a.ID, Name: ptr("x")})
	if err != nil {
		t.Fatal(err)
	}
	if d.Items[0].Sort != 7 {
		t.Errorf("sort = %d, want max existing 7", d.Items[0].Sort)
	}

	d, err = f.mgr.ObserveValue(ctx, f.deviceID, b.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d.Items[1].Sort != 7 || d.Items[1].Value != 3 {
		t.Errorf("observed pin = %+v, want sort kept at 7 and value 3", d.Items[1])
	}
}

func TestUpdatePinWithOnlyID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	a := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog), MinValue: ptr(5.0), MaxValue: ptr(50.0), Value: ptr(20.0)})
	b := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
	if _, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{{ID: a.ID, Sort: ptr(1)}, {ID: b.ID, Sort: ptr(4)}}); err != nil {
		t.Fatal(err)
	}

	d, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: a.ID})
	if err != nil {
		t.Fatalf("UpdatePin: %v", err)
	}
	got := d.Items[0]
	if got.Sort != 4 {
		t.Errorf("sort = %d, want device max 4", got.Sort)
	}
	if got.Value != 5 || got.MinValue != 5 || got.MaxValue != 50 {
		t.Errorf("analog pin = %+v, want value reset to min_value 5", got)
	}

	items := f.history.FindItems(ctx, f.deviceID, a.ID)
	if len(items) != 1 || len(items[0].Records) != 1 || items[0].Records[0].Changes[0].Value != 5 {
		t.Errorf("history = %+v, want one change with value 5", items)
	}
}

func TestObserveValueAtStampsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog), MaxValue: ptr(100.0)})

	at := time.Date(2023, 12, 31, 23, 59, 30, 0, time.UTC)
	if _, err := f.mgr.ObserveValueAt(ctx, f.deviceID, p.ID, 12, at); err != nil {
		t.Fatalf("ObserveValueAt: %v", err)
	}
	if _, err := f.mgr.ObserveValueAt(ctx, f.deviceID, p.ID, 13, time.Time{}); err != nil {
		t.Fatalf("ObserveValueAt zero time: %v", err)
	}

	items := f.history.FindItems(ctx, f.deviceID, p.ID)
	if len(items) != 1 || len(items[0].Records) != 2 {
		t.Fatalf("history = %+v, want records for two days", items)
	}
	byDate := map[string]models.DateRecord{}
	for _, r := range items[0].Records {
		byDate[r.Date] = r
	}
	if r := byDate["2023-12-31"]; len(r.Changes) != 1 || r.Changes[0] != (models.Change{Time: "23:59:30", Value: 12}) {
		t.Errorf("observed-at record = %+v", r)
	}
	if r := byDate["2024-01-01"]; len(r.Changes) != 1 || r.Changes[0] != (models.Change{Time: "10:00:00", Value: 13}) {
		t.Errorf("clock record = %+v", r)
	}
}

func TestUpdatePinNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})

	if _, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: "missing"}); !errors.Is(err, ErrPinNotFound) {
		t.Errorf("missing pin error = %v, want ErrPinNotFound", err)
	}
	if _, err := f.mgr.UpdatePin(ctx, "missing", models.PinInput{ID: "x"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("missing device error = %v, want ErrDeviceNotFound", err)
	}
	if got := f.history.Find(ctx, history.Filter{}); len(got) != 0 {
		t.Errorf("history written for failed update: %+v", got)
	}
}

func TestDeletePin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cascade     bool
		wantHistory int
	}{
		{"history kept", false, 1},
		{"history cascaded", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			f := newFixture(t, Options{CascadeHistory: tt.cascade})
			p := f.create(t, models.PinInput{Type: ptr(models.PinTypeVirtual)})
			if _, err := f.mgr.UpdatePin(ctx, f.deviceID, models.PinInput{ID: p.ID, Value: ptr(1.0)}); err != nil {
				t.Fatal(err)
			}

			d, err := f.mgr.DeletePin(ctx, f.deviceID, p.ID)
			if err != nil {
				t.Fatalf("DeletePin: %v", err)
			}
			if len(d.Items) != 0 {
				t.Errorf("items = %+v, want empty", d.Items)
			}
			if got := len(f.history.FindItems(ctx, f.deviceID, p.ID)); got != tt.wantHistory {
				t.Errorf("history items = %d, want %d", got, tt.wantHistory)
			}
			if _, err := f.mgr.DeletePin(ctx, f.deviceID, p.ID); !errors.Is(err, ErrPinNotFound) {
				t.Errorf("second delete error = %v, want ErrPinNotFound", err)
			}
		})
	}
}

func TestBulkUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	a := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog), MaxValue: ptr(10.0)})
	b := f.create(t, models.PinInput{Type: ptr(models.PinTypeVirtual)})

	res, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{
		{ID: b.ID, Sort: ptr(0), Value: ptr(9.0)},
		{ID: a.ID, Sort: ptr(1), Property: &models.PinPropertyInput{Width: ptr(2)}},
		{ID: "unknown", Sort: ptr(2)},
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if res.DeviceID != f.deviceID || res.UpdatedCount != 2 || len(res.UpdatedItems) != 2 {
		t.Fatalf("result = %+v", res)
	}

	d, err := f.devices.Find(ctx, f.deviceID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Items[0].Sort != 1 || d.Items[0].Property.Width != 2 {
		t.Errorf("pin a = %+v", d.Items[0])
	}
	if d.Items[1].Sort != 0 || d.Items[1].Value != 0 {
		t.Errorf("pin b = %+v, want sort 0 and virtual value coerced to 0", d.Items[1])
	}
	if got := f.history.Find(ctx, history.Filter{}); len(got) != 0 {
		t.Errorf("bulk update wrote history: %+v", got)
	}
}

func TestBulkUpdateKeepsStoredSort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	a := f.create(t, models.PinInput{Type: ptr(models.PinTypeAnalog)})
	if _, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{{ID: a.ID, Sort: ptr(4)}}); err != nil {
		t.Fatal(err)
	}

	res, err := f.mgr.BulkUpdate(ctx, f.deviceID, []models.PinInput{{ID: a.ID, Name: ptr("renamed")}})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.UpdatedItems[0]; got.Sort != 4 || got.Name != "renamed" {
		t.Errorf("pin = %+v, want sort 4 kept", got)
	}
}

func TestFindPin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.create(t, models.PinInput{Type: ptr(models.PinTypeVirtual), Name: ptr("lamp")})

	got, err := f.mgr.FindPin(ctx, f.deviceID, p.ID)
	if err != nil || got.Name != "lamp" {
		t.Errorf("FindPin() = %+v, %v", got, err)
	}
	if _, err := f.mgr.FindPin(ctx, f.deviceID, "x"); !errors.Is(err, ErrPinNotFound) {
		t.Errorf("error = %v, want ErrPinNotFound", err)
	}
	if _, err := f.mgr.FindPin(ctx, "x", p.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}
