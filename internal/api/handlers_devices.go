// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/validation"
)

// Multipart field names.
const (
	fieldTitle         = "title"
	fieldName          = "name"
	fieldID            = "id"
	fieldToken         = "token"
	fieldDescription   = "description"
	fieldModel         = "model"
	fieldModelPath     = "model_path"
	fieldModelProperty = "model_property"
)

// memoryUploadBytes is how much of a multipart body is held in memory
// before spilling to temporary files.
const memoryUploadBytes = 8 << 20

// deviceRequest is a parsed device create or update body.
type deviceRequest struct {
	id    *string
	input models.DeviceInput
	asset *store.Asset
	file  multipart.File
}

func (d *deviceRequest) close() {
	if d.file != nil {
		_ = d.file.Close()
	}
}

// parseDeviceRequest reads a device body sent as multipart/form-data,
// a urlencoded form, or JSON (no model file).
func (h *Handler) parseDeviceRequest(w http.ResponseWriter, r *http.Request) (*deviceRequest, error) {
	req := &deviceRequest{}

	switch mediaType(r) {
	case "application/json":
		if err := decodeJSON(w, r, &req.input); err != nil {
			return nil, validation.NewFieldError("body", "json", "invalid JSON body: "+err.Error())
		}
		return req, nil

	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(memoryUploadBytes); err != nil {
			return nil, validation.NewFieldError("body", "multipart", "invalid multipart body: "+err.Error())
		}

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, validation.NewFieldError("body", "form", "invalid form body: "+err.Error())
		}
	}

	req.id = formValue(r, fieldID)
	req.input.Name = formValue(r, fieldName)
	if req.input.Name == nil {
		req.input.Name = formValue(r, fieldTitle)
	}
	req.input.Token = formValue(r, fieldToken)
	req.input.Description = formValue(r, fieldDescription)
	req.input.ModelPath = formValue(r, fieldModelPath)

	if raw := formValue(r, fieldModelProperty); raw != nil && *raw != "" {
		var mp models.ModelProperty
		if err := json.Unmarshal([]byte(*raw), &mp); err != nil {
			return nil, validation.NewFieldError(fieldModelProperty, "json", "model_property must be a JSON object")
		}
		req.input.ModelProperty = &mp
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile(fieldModel)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return nil, validation.NewFieldError(fieldModel, "file", "invalid model upload: "+err.Error())
		case header.Size == 0:
			_ = file.Close()
		default:
			req.file = file
			req.asset = &store.Asset{Filename: header.Filename, Body: file}
		}
	}

	return req, nil
}

// DeviceList returns every device.
//
// @Summary List devices
// @Tags Devices
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.Device}
// @Router /devices [get]
func (h *Handler) DeviceList(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, h.devices.List(r.Context()))
}

// DeviceCreate registers a device and stores its optional model file.
// The name is read from "name" or "title" and defaults to "device_<token>".
//
// @Summary Create a device
// @Tags Devices
// @Accept multipart/form-data
// @Produce json
// @Param title formData string false "Device name"
// @Param token formData string true "Remote API token"
// @Param description formData string false "Description"
// @Param model formData file false "3D model"
// @Success 201 {object} models.APIResponse{data=models.Device}
// @Failure 400 {object} models.APIResponse
// @Router /devices [post]
func (h *Handler) DeviceCreate(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseDeviceRequest(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	defer req.close()

	if verr := validation.ValidateStruct(&req.input); verr != nil {
		respondErr(w, r, verr)
		return
	}

	d, err := h.devices.Create(r.Context(), req.input, req.asset)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, d)
}

// DeviceGet returns one device.
//
// @Summary Get a device
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id} [get]
func (h *Handler) DeviceGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.devices.Find(r.Context(), urlParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}

// DeviceUpdate merges the sent fields over the stored device. A new model
// file replaces the stored one.
//
// @Summary Update a device
// @Tags Devices
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Device ID"
// @Param model formData file false "Replacement 3D model"
// @Param model_property formData string false "Model property JSON"
// @Success 200 {object} models.APIResponse{data=models.Device}
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id} [patch]
func (h *Handler) DeviceUpdate(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	req, err := h.parseDeviceRequest(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	defer req.close()

	if req.id != nil && *req.id != id {
		badRequest(w, r, "id does not match the device in the path")
		return
	}
	if verr := validation.ValidateStruct(&req.input); verr != nil {
		respondErr(w, r, verr)
		return
	}

	d, err := h.devices.Update(r.Context(), id, req.input, req.asset)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, d)
}

// DeviceDelete removes a device with its model files.
//
// @Summary Delete a device
// @Tags Devices
// @Param id path string true "Device ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /devices/{id} [delete]
func (h *Handler) DeviceDelete(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	deleted, err := h.devices.Delete(r.Context(), id)
	if err != nil {
		// The record is gone even when asset or history cleanup failed.
		if deleted {
			logging.Ctx(r.Context()).Warn().Err(err).Str("device_id", id).Msg("Device deleted with cleanup errors")
			respondOK(w, http.StatusOK, map[string]string{"id": id})
			return
		}
		respondErr(w, r, err)
		return
	}
	if !deleted {
		respondError(w, r, http.StatusNotFound, &models.APIError{
			Type:    models.ErrorTypeNotFound,
			Message: "device not found: " + id,
		})
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"id": id})
}
