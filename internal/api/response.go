// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pinboard/internal/bridge"
	"github.com/tomtom215/pinboard/internal/device"
	"github.com/tomtom215/pinboard/internal/history"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/models"
	"github.com/tomtom215/pinboard/internal/overview"
	"github.com/tomtom215/pinboard/internal/pin"
	"github.com/tomtom215/pinboard/internal/store"
	"github.com/tomtom215/pinboard/internal/validation"
)

const messageOK = "ok"

// sanitizeLogValue escapes control characters so user input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes the envelope with status as both the HTTP status and
// the code field.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	response.Code = status

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondOK writes a successful envelope around data.
func respondOK(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{Message: messageOK, Data: data})
}

// respondError writes a failure envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *models.APIError) {
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Str("type", apiErr.Type).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(apiErr.Message)).
			Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{Message: apiErr.Message, Error: apiErr})
}

// respondErr maps err onto a status and error type and writes it.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Request failed")
	}
	respondJSON(w, status, &models.APIResponse{Message: apiErr.Message, Error: apiErr})
}

// badRequest writes a 400 validation envelope.
func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondError(w, r, http.StatusBadRequest, &models.APIError{
		Type:    models.ErrorTypeValidation,
		Message: message,
	})
}

// classify maps domain errors to HTTP statuses.
func classify(err error) (int, *models.APIError) {
	var (
		verr   *validation.RequestValidationError
		remote *bridge.RemoteError
		urlErr *url.Error
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.ToAPIError()

	case errors.Is(err, device.ErrNotFound),
		errors.Is(err, pin.ErrDeviceNotFound),
		errors.Is(err, pin.ErrPinNotFound),
		errors.Is(err, history.ErrNotFound),
		errors.Is(err, overview.ErrNotFound):
		return http.StatusNotFound, &models.APIError{Type: models.ErrorTypeNotFound, Message: err.Error()}

	case errors.Is(err, device.ErrInvalidAsset), errors.Is(err, store.ErrInvalidAssetPath):
		return http.StatusBadRequest, &models.APIError{
			Type:    models.ErrorTypeInvalidAsset,
			Message: "model must be a 3D file (" + strings.Join(validation.AllowedAssetExtensions, ", ") + ")",
		}

	case errors.Is(err, bridge.ErrNoRemotePin):
		return http.StatusBadRequest, &models.APIError{Type: models.ErrorTypeValidation, Message: err.Error()}

	case errors.As(err, &remote):
		return http.StatusBadGateway, &models.APIError{
			Type:    models.ErrorTypeRemoteRejected,
			Message: remote.Error(),
			Details: map[string]interface{}{"status": remote.Status},
		}

	case errors.Is(err, bridge.ErrBadValue):
		return http.StatusBadGateway, &models.APIError{Type: models.ErrorTypeRemoteRejected, Message: err.Error()}

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, &models.APIError{
			Type:    models.ErrorTypeRemoteUnavailable,
			Message: "remote pin api unavailable: " + err.Error(),
		}

	case errors.As(err, &urlErr):
		return http.StatusBadGateway, &models.APIError{Type: models.ErrorTypeRemoteUnavailable, Message: err.Error()}

	default:
		return http.StatusInternalServerError, &models.APIError{Type: models.ErrorTypeInternal, Message: "internal error"}
	}
}
