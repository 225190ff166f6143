// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

// Package validation provides struct validation using go-playground/validator v10.
// It provides a thread-safe singleton validator instance with the custom
// rules Pinboard needs for uploaded model assets.
//
// Field names in errors are taken from the json tag so they match what the
// client sent.
//
//	type DeviceForm struct {
//	    Name  string `json:"name" validate:"omitempty,max=200"`
//	    Model string `json:"model" validate:"omitempty,asset_ext"`
//	}
//
//	if err := validation.ValidateStruct(&form); err != nil {
//	    apiErr := err.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/pinboard/internal/models"
)

// AllowedAssetExtensions lists the 3D model formats a device may carry.
var AllowedAssetExtensions = []string{".gltf", ".glb", ".obj", ".fbx", ".dae", ".ply", ".stl", ".3ds", ".3mf"}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one rejected field. Field is the json name.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

// RequestValidationError collects every rejected field of one request.
type RequestValidationError struct {
	fields []FieldError
}

// NewFieldError builds a single-field validation error for checks that run
// outside struct tags.
func NewFieldError(field, tag, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

// Errors returns the rejected fields in struct order.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.fields
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// ToAPIError converts the error into the response envelope error. A single
// field is described inline; several are listed under details.fields.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	apiErr := &models.APIError{Type: models.ErrorTypeValidation, Message: "validation failed"}

	switch len(ve.fields) {
	case 0:
		return apiErr
	case 1:
		f := ve.fields[0]
		apiErr.Message = f.Message
		apiErr.Details = map[string]interface{}{
			"field": f.Field,
			"tag":   f.Tag,
			"value": f.Value,
		}
		return apiErr
	}

	fields := make([]map[string]interface{}, len(ve.fields))
	messages := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		fields[i] = map[string]interface{}{
			"field":   f.Field,
			"tag":     f.Tag,
			"message": f.Message,
		}
		messages[i] = f.Field + ": " + f.Message
	}
	apiErr.Message = strings.Join(messages, "; ")
	apiErr.Details = map[string]interface{}{"fields": fields}
	return apiErr
}

// GetValidator returns the shared validator with the json tag name function
// and the asset_ext rule registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("asset_ext", func(fl validator.FieldLevel) bool {
			return IsAllowedAsset(fl.Field().String())
		})
	})
	return validate
}

// IsAllowedAsset reports whether filename has one of AllowedAssetExtensions,
// compared case-insensitively.
func IsAllowedAsset(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedAssetExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateStruct validates s against its validate tags. It returns nil when
// every field passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewFieldError("body", "invalid", err.Error())
	}

	fields := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: message(fe),
		}
	}
	return &RequestValidationError{fields: fields}
}

var plainMessages = map[string]string{
	"required":  "%s is required",
	"hexcolor":  "%s must be a hex color such as #16a34a",
	"url":       "%s must be a valid URL",
	"uuid4":     "%s must be a UUID",
	"asset_ext": "%s must be a 3D model file (" + strings.Join(AllowedAssetExtensions, ", ") + ")",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func message(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := plainMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
