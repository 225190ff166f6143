// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/validation"
)

// readPinInput decodes and validates a single pin body.
func readPinInput(w http.ResponseWriter, r *http.Request) (models.PinInput, bool) {
	var in models.PinInput
	if err := decodeJSON(w, r, &in); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return models.PinInput{}, false
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		respondErr(w, r, verr)
		return models.PinInput{}, false
	}
	return in, true
}

// PinCreate adds a pin to a device.
//
// @Summary Create a pin
// @Tags Pins
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param pin body models.PinInput true "Pin"
// @Success 201 {object} models.APIResponse{data=models.Device}
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id}/pins [post]
func (h *Handler) PinCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := readPinInput(w, r)
	if !ok {
		return
	}
	d, err := h.pins.CreatePin(r.Context(), urlParam(r, "id"), in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, d)
}

// PinUpdate merges a pin body (which must carry the pin id) over the
// stored pin.
//
// @Summary Update a pin
// @Tags Pins
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param pin body models.PinInput true "Pin fields, id required"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Router /devices/{id}/pins [patch]
func (h *Handler) PinUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := readPinInput(w, r)
	if !ok {
		return
	}
	if in.ID == "" {
		respondErr(w, r, validation.NewFieldError("id", "required", "id is required"))
		return
	}
	d, err := h.pins.UpdatePin(r.Context(), urlParam(r, "id"), in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}

// PinBulkUpdate applies a list of pin updates, typically a reorder.
//
// @Summary Bulk update pins
// @Tags Pins
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param pins body []models.PinInput true "Pin updates"
// @Success 200 {object} models.APIResponse{data=models.BulkResult}
// @Router /devices/{id}/pins [put]
func (h *Handler) PinBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var updates []models.PinInput
	if err := decodeJSON(w, r, &updates); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return
	}
	for i := range updates {
		if verr := validation.ValidateStruct(&updates[i]); verr != nil {
			respondErr(w, r, verr)
			return
		}
	}

	res, err := h.pins.BulkUpdate(r.Context(), urlParam(r, "id"), updates)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, res)
}

// PinGet returns one pin of a device without its display properties.
//
// @Summary Get a pin
// @Tags Pins
// @Produce json
// @Param id path string true "Device ID"
// @Param pinID path string true "Pin ID"
// @Success 200 {object} models.APIResponse{data=models.PinSummary}
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id}/pins/{pinID} [get]
func (h *Handler) PinGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.pins.FindPin(r.Context(), urlParam(r, "id"), urlParam(r, "pinID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, p.Summary())
}

// PinDelete removes a pin and returns the device.
//
// @Summary Delete a pin
// @Tags Pins
// @Produce json
// @Param id path string true "Device ID"
// @Param pinID path string true "Pin ID"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id}/pins/{pinID} [delete]
func (h *Handler) PinDelete(w http.ResponseWriter, r *http.Request) {
	d, err := h.pins.DeletePin(r.Context(), urlParam(r, "id"), urlParam(r, "pinID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}

// PinOverview joins a device's pins with their full history.
//
// @Summary Device pin overview
// @Tags Pins
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} models.APIResponse{data=models.Overview}
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id}/pins/overview [get]
func (h *Handler) PinOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overview.Build(r.Context(), urlParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, ov)
}

type writeRequest struct {
	Value *float64 `json:"value" validate:"required"`
}

// PinRead fetches the remote value of a pin and stores it.
//
// @Summary Read a pin from the remote API
// @Tags Bridge
// @Produce json
// @Param id path string true "Device ID"
// @Param pinID path string true "Pin ID"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Failure 502 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /devices/{id}/pins/{pinID}/read [post]
func (h *Handler) PinRead(w http.ResponseWriter, r *http.Request) {
	d, err := h.bridge.Read(r.Context(), urlParam(r, "id"), urlParam(r, "pinID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}

// PinWrite pushes a value to the remote pin and stores it once accepted.
// The value may be sent as JSON {"value": n} or as a "value" query
// parameter.
//
// @Summary Write a pin through the remote API
// @Tags Bridge
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param pinID path string true "Pin ID"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Failure 400 {object} models.APIResponse
// @Failure 502 {object} models.APIResponse
// @Router /devices/{id}/pins/{pinID}/write [post]
func (h *Handler) PinWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if q := r.URL.Query().Get("value"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			respondErr(w, r, validation.NewFieldError("value", "numeric", "value must be a finite number"))
			return
		}
		req.Value = &v
	} else if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondErr(w, r, verr)
		return
	}

	d, err := h.bridge.Write(r.Context(), urlParam(r, "id"), urlParam(r, "pinID"), *req.Value)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}
