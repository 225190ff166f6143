// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package device is the record store for devices and their 3D model assets.
package device

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/validation"
)

// CollectionName is the document devices live in.
const CollectionName = "devices"

var (
	// ErrNotFound is returned when no device has the requested id.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidAsset is returned for model files whose extension is not in
	// validation.AllowedAssetExtensions.
	ErrInvalidAsset = errors.New("device: unsupported model file type")

	errNoChange = errors.New("device: no change")
)

// HistoryRemover drops the recorded history of a device.
type HistoryRemover interface {
	DeleteDevice(ctx context.Context, deviceID string) (bool, error)
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithHistoryCascade makes Delete also remove the device's history.
func WithHistoryCascade(h HistoryRemover) Option {
	return func(r *Repository) { r.history = h }
}

// Repository owns the device collection and the asset tree.
type Repository struct {
	col     *store.Collection[models.Device]
	assets  *store.AssetStore
	history HistoryRemover
	now     func() time.Time
}

// NewRepository returns a repository persisting through backend.
func NewRepository(backend store.Backend, assets *store.AssetStore, opts ...Option) *Repository {
	r := &Repository{
		col:    store.NewCollection[models.Device](CollectionName, backend),
		assets: assets,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every device.
func (r *Repository) List(ctx context.Context) []models.Device {
	return r.col.ReadAll(ctx)
}

// Find returns the device with id.
func (r *Repository) Find(ctx context.Context, id string) (models.Device, error) {
	for _, d := range r.col.ReadAll(ctx) {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create stores a new device and, when asset is non-nil, its model file.
func (r *Repository) Create(ctx context.Context, in models.DeviceInput, asset *store.Asset) (models.Device, error) {
	if asset != nil && !validation.IsAllowedAsset(asset.Filename) {
		return models.Device{}, ErrInvalidAsset
	}

	now := r.now().UTC()
	d := models.Device{
		ID:            uuid.NewString(),
		Token:         deref(in.Token),
		Description:   deref(in.Description),
		ModelProperty: models.DefaultModelProperty(),
		Items:         []models.Pin{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	d.Name = deref(in.Name)
	if d.Name == "" {
		d.Name = "device_" + d.Token
	}
	if in.ModelProperty != nil {
		d.ModelProperty = *in.ModelProperty
	}

	if asset != nil {
		modelPath, err := r.assets.Save(d.ID, asset.Filename, asset.Body)
		if err != nil {
			return models.Device{}, fmt.Errorf("store model: %w", err)
		}
		d.ModelPath = modelPath
		d.ModelName = filepath.Base(filepath.FromSlash(asset.Filename))
	}

	err := r.col.Update(ctx, func(devices []models.Device) ([]models.Device, error) {
		return append(devices, d), nil
	})
	if err != nil {
		if asset != nil {
			if rmErr := r.assets.RemoveAll(d.ID); rmErr != nil {
				logging.Ctx(ctx).Warn().Err(rmErr).Str("device_id", d.ID).Msg("Failed to remove orphaned model")
			}
		}
		return models.Device{}, err
	}

	logging.Ctx(ctx).Info().Str("device_id", d.ID).Str("name", d.Name).Bool("has_model", asset != nil).Msg("Device created")
	return d, nil
}

// Update merges the non-nil fields of in over the stored device. The id,
// creation time and pins always come from the stored copy. A replacement
// asset deletes the old model file before the new one is written.
func (r *Repository) Update(ctx context.Context, id string, in models.DeviceInput, asset *store.Asset) (models.Device, error) {
	if asset != nil && !validation.IsAllowedAsset(asset.Filename) {
		return models.Device{}, ErrInvalidAsset
	}
	if in.ModelPath != nil && *in.ModelPath != "" && !ownsModelPath(id, *in.ModelPath) {
		return models.Device{}, validation.NewFieldError("model_path", "owned", "model_path must point into the device's own model directory")
	}

	var updated models.Device
	err := r.col.Update(ctx, func(devices []models.Device) ([]models.Device, error) {
		idx := indexOf(devices, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		old := devices[idx]
		next := old

		if in.Name != nil {
			next.Name = *in.Name
		}
		if in.Token != nil {
			next.Token = *in.Token
		}
		if in.Description != nil {
			next.Description = *in.Description
		}
		if in.ModelPath != nil && *in.ModelPath != "" {
			next.ModelPath = *in.ModelPath
		}
		if in.ModelProperty != nil {
			next.ModelProperty = *in.ModelProperty
		}

		if asset != nil {
			if old.ModelPath != "" {
				if err := r.assets.Remove(old.ModelPath); err != nil {
					return nil, fmt.Errorf("remove old model: %w", err)
				}
			}
			modelPath, err := r.assets.Save(old.ID, asset.Filename, asset.Body)
			if err != nil {
				return nil, fmt.Errorf("store model: %w", err)
			}
			next.ModelPath = modelPath
			next.ModelName = filepath.Base(filepath.FromSlash(asset.Filename))
		}

		next.ID = old.ID
		next.CreatedAt = old.CreatedAt
		next.Items = old.Items
		next.UpdatedAt = r.now().UTC()

		devices[idx] = next
		updated = next
		return devices, nil
	})
	if err != nil {
		return models.Device{}, err
	}
	return updated, nil
}

// Delete removes the device and its asset directory. It reports false when
// the id is unknown.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	err := r.col.Update(ctx, func(devices []models.Device) ([]models.Device, error) {
		idx := indexOf(devices, id)
		if idx < 0 {
			return nil, errNoChange
		}
		return append(devices[:idx], devices[idx+1:]...), nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := r.assets.RemoveAll(id); err != nil {
		return true, err
	}
	if r.history != nil {
		if _, err := r.history.DeleteDevice(ctx, id); err != nil {
			return true, fmt.Errorf("delete history: %w", err)
		}
	}

	logging.Ctx(ctx).Info().Str("device_id", id).Msg("Device deleted")
	return true, nil
}

// Mutate applies fn to the stored device with id and persists the result.
// fn's error aborts the write and is returned as is.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(d *models.Device) error) (models.Device, error) {
	var updated models.Device
	err := r.col.Update(ctx, func(devices []models.Device) ([]models.Device, error) {
		idx := indexOf(devices, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := fn(&devices[idx]); err != nil {
			return nil, err
		}
		updated = devices[idx]
		return devices, nil
	})
	if err != nil {
		return models.Device{}, err
	}
	return updated, nil
}

// Assets exposes the asset store for serving model files.
func (r *Repository) Assets() *store.AssetStore { return r.assets }

// ownsModelPath reports whether modelPath, in the "/<id>/<file>" form the
// asset store returns, lies under the directory of device id.
func ownsModelPath(id, modelPath string) bool {
	clean := path.Clean("/" + strings.TrimPrefix(modelPath, "/"))
	dir, file := path.Split(clean)
	return dir == "/"+id+"/" && file != ""
}

func indexOf(devices []models.Device, id string) int {
	for i := range devices {
		if devices[i].ID == id {
			return i
		}
	}
	return -1
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
