// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/validation"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newRepo(t *testing.T, opts ...Option) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()
	assets := filepath.Join(dir, "shapes")
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return NewRepository(store.NewFileBackend(filepath.Join(dir, "data")), store.NewAssetStore(assets), opts...), assets
}

func strPtr(s string) *string { return &s }

func TestCreateDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newRepo(t)

	d, err := r.Create(ctx, models.DeviceInput{Token: strPtr("abc")}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" {
		t.Error("Create did not assign an id")
	}
	if d.Name != "device_abc" {
		t.Errorf("Name = %q, want device_abc", d.Name)
	}
	if !reflect.DeepEqual(d.ModelProperty, models.DefaultModelProperty()) {
		t.Errorf("ModelProperty = %+v, want defaults", d.ModelProperty)
	}
	if d.Items == nil || len(d.Items) != 0 {
		t.Errorf("Items = %#v, want empty", d.Items)
	}

	got, err := r.Find(ctx, d.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Name != d.Name || !got.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("Find() = %+v, want %+v", got, d)
	}
}

func TestCreateWithAsset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, assets := newRepo(t)

	d, err := r.Create(ctx, models.DeviceInput{Name: strPtr("arm")},
		&store.Asset{Filename: "Arm.GLB", Body: strings.NewReader("glTF")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ModelPath != "/"+d.ID+"/Arm.GLB" || d.ModelName != "Arm.GLB" {
		t.Errorf("model = %q / %q", d.ModelPath, d.ModelName)
	}
	data, err := os.ReadFile(filepath.Join(assets, d.ID, "Arm.GLB"))
	if err != nil || string(data) != "glTF" {
		t.Errorf("asset file = %q, %v", data, err)
	}
}

func TestCreateRejectsAsset(t *testing.T) {
	t.Parallel()
	r, assets := newRepo(t)

	_, err := r.Create(context.Background(), models.DeviceInput{},
		&store.Asset{Filename: "virus.exe", Body: strings.NewReader("")})
	if !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("Create() error = %v, want ErrInvalidAsset", err)
	}
	if got := r.List(context.Background()); len(got) != 0 {
		t.Errorf("device persisted despite invalid asset: %+v", got)
	}
	if _, err := os.Stat(assets); !os.IsNotExist(err) {
		t.Errorf("asset root created for rejected upload (err=%v)", err)
	}
}

func TestUpdateKeepsImmutableFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newRepo(t)

	d, err := r.Create(ctx, models.DeviceInput{Name: strPtr("a"), Token: strPtr("t")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Mutate(ctx, d.ID, func(dev *models.Device) error {
		dev.Items = append(dev.Items, models.Pin{ID: "p1"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Update(ctx, d.ID, models.DeviceInput{Name: strPtr("b"), ModelPath: strPtr("")}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "b" || got.Token != "t" {
		t.Errorf("merged name/token = %q/%q, want b/t", got.Name, got.Token)
	}
	if got.ID != d.ID || !got.CreatedAt.Equal(d.CreatedAt) {
		t.Error("id or created_at changed on update")
	}
	if len(got.Items) != 1 || got.Items[0].ID != "p1" {
		t.Errorf("items = %+v, want the stored pin kept", got.Items)
	}
	if !got.UpdatedAt.After(d.UpdatedAt) {
		t.Errorf("updated_at = %v, want after %v", got.UpdatedAt, d.UpdatedAt)
	}
}

func TestUpdateNoChangesIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newRepo(t)
	d, err := r.Create(ctx, models.DeviceInput{Name: strPtr("a")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Update(ctx, d.ID, models.DeviceInput{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got.UpdatedAt, d.UpdatedAt = time.Time{}, time.Time{}
	got.CreatedAt, d.CreatedAt = got.CreatedAt.UTC(), d.CreatedAt.UTC()
	if !reflect.DeepEqual(got, d) {
		t.Errorf("no-op update changed the device:\n got %+v\nwant %+v", got, d)
	}
}

func TestUpdateReplacesAsset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, assets := newRepo(t)

	d, err := r.Create(ctx, models.DeviceInput{}, &store.Asset{Filename: "old.obj", Body: strings.NewReader("o")})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Update(ctx, d.ID, models.DeviceInput{}, &store.Asset{Filename: "new.stl", Body: strings.NewReader("n")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got.ModelPath != "/"+d.ID+"/new.stl" || got.ModelName != "new.stl" {
		t.Errorf("model = %q / %q", got.ModelPath, got.ModelName)
	}
	if _, err := os.Stat(filepath.Join(assets, d.ID, "old.obj")); !os.IsNotExist(err) {
		t.Error("old asset still on disk")
	}
	if _, err := os.Stat(filepath.Join(assets, d.ID, "new.stl")); err != nil {
		t.Errorf("new asset missing: %v", err)
	}
}

func TestUpdateModelPathOwnership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newRepo(t)

	d, err := r.Create(ctx, models.DeviceInput{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	other, err := r.Create(ctx, models.DeviceInput{}, &store.Asset{Filename: "other.obj", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		modelPath string
		wantErr   bool
	}{
		{"own directory", "/" + d.ID + "/model.obj", false},
		{"own directory without slash", d.ID + "/model.stl", false},
		{"other device", other.ModelPath, true},
		{"escapes own directory", "/" + d.ID + "/../" + other.ID + "/other.obj", true},
		{"directory only", "/" + d.ID, true},
		{"nested", "/" + d.ID + "/sub/model.obj", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Update(ctx, d.ID, models.DeviceInput{ModelPath: strPtr(tt.modelPath)}, nil)
			if tt.wantErr {
				var verr *validation.RequestValidationError
				if !errors.As(err, &verr) {
					t.Errorf("Update(model_path=%q) error = %v, want validation error", tt.modelPath, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update(model_path=%q): %v", tt.modelPath, err)
			}
			if got.ModelPath != tt.modelPath {
				t.Errorf("model_path = %q, want %q", got.ModelPath, tt.modelPath)
			}
		})
	}

	stored, err := r.Find(ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ModelPath != other.ModelPath {
		t.Errorf("other device model_path = %q, want %q", stored.ModelPath, other.ModelPath)
	}
}

func TestUpdateNotFound(t *testing.T) {
	t.Parallel()
	r, _ := newRepo(t)
	_, err := r.Update(context.Background(), "missing", models.DeviceInput{}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

type historyStub struct{ deleted []string }

func (h *historyStub) DeleteDevice(_ context.Context, id string) (bool, error) {
	h.deleted = append(h.deleted, id)
	return true, nil
}

func TestDeleteCascadesAssets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hist := &historyStub{}
	r, assets := newRepo(t, WithHistoryCascade(hist))

	d, err := r.Create(ctx, models.DeviceInput{}, &store.Asset{Filename: "m.ply", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := r.Delete(ctx, d.ID)
	if !ok || err != nil {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if _, err := r.Find(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find after delete error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(assets, d.ID)); !os.IsNotExist(err) {
		t.Error("asset directory survived device deletion")
	}
	if len(hist.deleted) != 1 || hist.deleted[0] != d.ID {
		t.Errorf("history cascade = %v, want [%s]", hist.deleted, d.ID)
	}

	ok, err = r.Delete(ctx, d.ID)
	if ok || err != nil {
		t.Errorf("second Delete() = %v, %v; want false, nil", ok, err)
	}
}

func TestMutateNotFound(t *testing.T) {
	t.Parallel()
	r, _ := newRepo(t)
	_, err := r.Mutate(context.Background(), "x", func(*models.Device) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Mutate() error = %v, want ErrNotFound", err)
	}
}
