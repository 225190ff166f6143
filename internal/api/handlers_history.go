// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"net/http"

	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/models"
)

// HistoryList returns recorded history, optionally for one device.
//
// @Summary List pin history
// @Tags History
// @Produce json
// @Param device_id query string false "Device ID"
// @Success 200 {object} models.APIResponse{data=[]models.HistoryDevice}
// @Router /history [get]
func (h *Handler) HistoryList(w http.ResponseWriter, r *http.Request) {
	f := history.Filter{DeviceID: r.URL.Query().Get("device_id")}
	respondOK(w, http.StatusOK, h.history.Find(r.Context(), f))
}

// HistoryItems returns the per-pin history of a device.
//
// @Summary List pin history items of a device
// @Tags History
// @Produce json
// @Param deviceID path string true "Device ID"
// @Param item_id query string false "Pin ID"
// @Success 200 {object} models.APIResponse{data=[]models.HistoryItem}
// @Router /history/{deviceID}/items [get]
func (h *Handler) HistoryItems(w http.ResponseWriter, r *http.Request) {
	items := h.history.FindItems(r.Context(), urlParam(r, "deviceID"), r.URL.Query().Get("item_id"))
	respondOK(w, http.StatusOK, items)
}

// HistoryDeleteItem drops all history of one pin.
//
// @Summary Delete the history of a pin
// @Tags History
// @Produce json
// @Param deviceID path string true "Device ID"
// @Param itemID path string true "Pin ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /history/{deviceID}/items/{itemID} [delete]
func (h *Handler) HistoryDeleteItem(w http.ResponseWriter, r *http.Request) {
	deviceID, itemID := urlParam(r, "deviceID"), urlParam(r, "itemID")

	deleted, err := h.history.DeleteItem(r.Context(), deviceID, itemID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !deleted {
		respondError(w, r, http.StatusNotFound, &models.APIError{
			Type:    models.ErrorTypeNotFound,
			Message: "no history for item " + itemID,
		})
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"device_id": deviceID, "item_id": itemID})
}

// HistoryRemoveChange drops one recorded change and returns the
// recomputed day.
//
// @Summary Remove one recorded change
// @Tags History
// @Produce json
// @Param deviceID path string true "Device ID"
// @Param itemID path string true "Pin ID"
// @Param date path string true "Day (YYYY-MM-DD)"
// @Param time path string true "Change time (HH:MM:SS)"
// @Success 200 {object} models.APIResponse{data=models.DateRecord}
// @Failure 404 {object} models.APIResponse
// @Router /history/{deviceID}/items/{itemID}/records/{date}/changes/{time} [delete]
func (h *Handler) HistoryRemoveChange(w http.ResponseWriter, r *http.Request) {
	key := history.Key{
		DeviceID: urlParam(r, "deviceID"),
		ItemID:   urlParam(r, "itemID"),
		Date:     urlParam(r, "date"),
	}
	rec, err := h.history.RemoveChange(r.Context(), key, urlParam(r, "time"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, rec)
}
