// Package apperrors defines the error taxonomy shared by region geometry,
// the compatibility engine and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeNoDetection     Code = "NO_DETECTION"
	CodeRegionNotFound  Code = "REGION_NOT_FOUND"
	CodeUnknownLabel    Code = "UNKNOWN_LABEL"
	CodeUnknownColor    Code = "UNKNOWN_COLOR"
	CodeNotReady        Code = "NOT_READY"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNoDetection     = &Error{Code: CodeNoDetection, Message: "no person detected in image"}
	ErrRegionNotFound  = &Error{Code: CodeRegionNotFound, Message: "region not detected"}
	ErrUnknownLabel    = &Error{Code: CodeUnknownLabel, Message: "label not in catalog"}
	ErrUnknownColor    = &Error{Code: CodeUnknownColor, Message: "color not in catalog"}
	ErrNotReady        = &Error{Code: CodeNotReady, Message: "embeddings not initialized"}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

// Error is the structured error returned by core operations.
type Error struct {
	Code    Code           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// CodeOf extracts the code of err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNoDetection, CodeRegionNotFound, CodeUnknownLabel, CodeUnknownColor:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
