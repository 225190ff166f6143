// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package models

// APIResponse is the envelope every HTTP endpoint returns.
//
// Code mirrors the HTTP status of the response:
//
//	{"message": "ok", "data": {...}, "code": 200}
//	{"message": "device not found", "error": {"type": "NOT_FOUND", ...}, "code": 404}
type APIResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Code    int         `json:"code"`
}

// Error types carried in APIError.Type.
const (
	ErrorTypeValidation        = "VALIDATION_ERROR"
	ErrorTypeNotFound          = "NOT_FOUND"
	ErrorTypeInvalidAsset      = "INVALID_ASSET"
	ErrorTypeRemoteRejected    = "REMOTE_REJECTED"
	ErrorTypeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrorTypeRateLimited       = "RATE_LIMITED"
	ErrorTypeInternal          = "INTERNAL_ERROR"
)

// APIError is the machine-readable part of a failed response.
type APIError struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
