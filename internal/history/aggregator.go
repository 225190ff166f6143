// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package history records pin value changes per device, pin and day, and
// keeps each day's summary and value histogram in step with its changes.
package history

import (
	"context"
	"errors"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
)

// CollectionName is the document the history lives in.
const CollectionName = "item_value_histories"

// ErrNotFound is returned when a device, item or date bucket does not exist.
var ErrNotFound = errors.New("history: not found")

// errNoChange aborts an Update without writing.
var errNoChange = errors.New("history: no change")

// Key addresses one day bucket of one pin.
type Key struct {
	DeviceID string
	ItemID   string
	Date     string
}

// Filter narrows queries. Empty fields match everything.
type Filter struct {
	DeviceID string
	ItemID   string
}

// Aggregator owns the history collection.
type Aggregator struct {
	col *store.Collection[models.HistoryDevice]
}

// NewAggregator returns an aggregator persisting through backend.
func NewAggregator(backend store.Backend) *Aggregator {
	return &Aggregator{col: store.NewCollection[models.HistoryDevice](CollectionName, backend)}
}

// AddChangeIf records change in the bucket for key, creating the device,
// item and date nodes on first use. A change with the same time replaces
// the existing one.
func (a *Aggregator) AddChangeIf(ctx context.Context, key Key, change models.Change) (models.DateRecord, error) {
	var (
		result    models.DateRecord
		overwrote bool
	)
	err := a.col.Update(ctx, func(devices []models.HistoryDevice) ([]models.HistoryDevice, error) {
		di := deviceIndex(devices, key.DeviceID)
		if di < 0 {
			devices = append(devices, models.HistoryDevice{DeviceID: key.DeviceID, Items: []models.HistoryItem{}})
			di = len(devices) - 1
		}
		dev := &devices[di]

		ii := itemIndex(dev.Items, key.ItemID)
		if ii < 0 {
			dev.Items = append(dev.Items, models.HistoryItem{ID: key.ItemID, Records: []models.DateRecord{}})
			ii = len(dev.Items) - 1
		}
		item := &dev.Items[ii]

		ri := recordIndex(item.Records, key.Date)
		if ri < 0 {
			item.Records = append(item.Records, models.DateRecord{
				Date:        key.Date,
				Changes:     []models.Change{},
				ValueGroups: []models.ValueGroup{},
			})
			ri = len(item.Records) - 1
		}
		rec := &item.Records[ri]

		overwrote = false
		for i := range rec.Changes {
			if rec.Changes[i].Time == change.Time {
				rec.Changes[i] = change
				overwrote = true
				break
			}
		}
		if !overwrote {
			rec.Changes = append(rec.Changes, change)
		}
		apply(rec)

		result = *rec
		return devices, nil
	})
	if err != nil {
		return models.DateRecord{}, err
	}

	op := "add"
	if overwrote {
		op = "overwrite"
	}
	metrics.HistoryChanges.WithLabelValues(op).Inc()
	logging.Ctx(ctx).Debug().
		Str("device_id", key.DeviceID).
		Str("item_id", key.ItemID).
		Str("date", key.Date).
		Str("time", change.Time).
		Float64("value", change.Value).
		Bool("overwrote", overwrote).
		Msg("History change recorded")

	return result, nil
}

// RemoveChange drops the change at time from the bucket and recomputes it.
// Removing a time that is not present still rewrites the bucket.
func (a *Aggregator) RemoveChange(ctx context.Context, key Key, time string) (models.DateRecord, error) {
	var result models.DateRecord
	err := a.col.Update(ctx, func(devices []models.HistoryDevice) ([]models.HistoryDevice, error) {
		rec := locate(devices, key)
		if rec == nil {
			return nil, ErrNotFound
		}

		kept := make([]models.Change, 0, len(rec.Changes))
		for _, c := range rec.Changes {
			if c.Time != time {
				kept = append(kept, c)
			}
		}
		rec.Changes = kept
		apply(rec)

		result = *rec
		return devices, nil
	})
	if err != nil {
		return models.DateRecord{}, err
	}
	metrics.HistoryChanges.WithLabelValues("remove").Inc()
	return result, nil
}

// Find returns the history devices matching f.DeviceID.
func (a *Aggregator) Find(ctx context.Context, f Filter) []models.HistoryDevice {
	devices := a.col.ReadAll(ctx)
	if f.DeviceID == "" {
		return devices
	}
	out := make([]models.HistoryDevice, 0, 1)
	for _, d := range devices {
		if d.DeviceID == f.DeviceID {
			out = append(out, d)
		}
	}
	return out
}

// FindPin returns every item matching f across all devices.
func (a *Aggregator) FindPin(ctx context.Context, f Filter) []models.HistoryItem {
	out := []models.HistoryItem{}
	for _, d := range a.col.ReadAll(ctx) {
		if f.DeviceID != "" && d.DeviceID != f.DeviceID {
			continue
		}
		for _, it := range d.Items {
			if f.ItemID != "" && it.ID != f.ItemID {
				continue
			}
			out = append(out, it)
		}
	}
	return out
}

// FindDevices returns the device node for deviceID, or every node when
// deviceID is empty.
func (a *Aggregator) FindDevices(ctx context.Context, deviceID string) []models.HistoryDevice {
	devices := a.col.ReadAll(ctx)
	if deviceID == "" {
		return devices
	}
	if i := deviceIndex(devices, deviceID); i >= 0 {
		return []models.HistoryDevice{devices[i]}
	}
	return []models.HistoryDevice{}
}

// FindItems returns the items of deviceID, narrowed to itemID when set.
func (a *Aggregator) FindItems(ctx context.Context, deviceID, itemID string) []models.HistoryItem {
	devices := a.col.ReadAll(ctx)
	di := deviceIndex(devices, deviceID)
	if di < 0 {
		return []models.HistoryItem{}
	}
	items := devices[di].Items
	if itemID == "" {
		if items == nil {
			return []models.HistoryItem{}
		}
		return items
	}
	if ii := itemIndex(items, itemID); ii >= 0 {
		return []models.HistoryItem{items[ii]}
	}
	return []models.HistoryItem{}
}

// DeleteItem removes all history of one pin. The device node goes with its
// last item. It reports false when nothing matched.
func (a *Aggregator) DeleteItem(ctx context.Context, deviceID, itemID string) (bool, error) {
	err := a.col.Update(ctx, func(devices []models.HistoryDevice) ([]models.HistoryDevice, error) {
		di := deviceIndex(devices, deviceID)
		if di < 0 {
			return nil, errNoChange
		}
		ii := itemIndex(devices[di].Items, itemID)
		if ii < 0 {
			return nil, errNoChange
		}

		items := devices[di].Items
		devices[di].Items = append(items[:ii], items[ii+1:]...)
		if len(devices[di].Items) == 0 {
			devices = append(devices[:di], devices[di+1:]...)
		}
		return devices, nil
	})
	return changed(err)
}

// DeleteDevice removes every item recorded for deviceID.
func (a *Aggregator) DeleteDevice(ctx context.Context, deviceID string) (bool, error) {
	err := a.col.Update(ctx, func(devices []models.HistoryDevice) ([]models.HistoryDevice, error) {
		di := deviceIndex(devices, deviceID)
		if di < 0 {
			return nil, errNoChange
		}
		return append(devices[:di], devices[di+1:]...), nil
	})
	return changed(err)
}

func changed(err error) (bool, error) {
	switch {
	case errors.Is(err, errNoChange):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func locate(devices []models.HistoryDevice, key Key) *models.DateRecord {
	di := deviceIndex(devices, key.DeviceID)
	if di < 0 {
		return nil
	}
	ii := itemIndex(devices[di].Items, key.ItemID)
	if ii < 0 {
		return nil
	}
	item := &devices[di].Items[ii]
	ri := recordIndex(item.Records, key.Date)
	if ri < 0 {
		return nil
	}
	return &item.Records[ri]
}

func deviceIndex(devices []models.HistoryDevice, id string) int {
	for i := range devices {
		if devices[i].DeviceID == id {
			return i
		}
	}
	return -1
}

func itemIndex(items []models.HistoryItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func recordIndex(records []models.DateRecord, date string) int {
	for i := range records {
		if records[i].Date == date {
			return i
		}
	}
	return -1
}
