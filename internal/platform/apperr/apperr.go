// Package apperr defines the error taxonomy shared by the domain services and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("concurrent modification")
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("possible duplicate")
)

// NotFound reports a missing entity, e.g. NotFound("visit", id).
func NotFound(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// InvalidState reports a failed precondition.
func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidState)
}

// Validation reports a missing or malformed input field.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Conflict reports a stale write detected by a version check.
func Conflict(entity string, id interface{}) error {
	return fmt.Errorf("%s %v was modified by another request: %w", entity, id, ErrConflict)
}

// StatusCode maps an error onto the HTTP status it should surface as.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError converts a service error into an echo.HTTPError. Internal errors
// keep a generic message so storage details do not leak to clients.
func HTTPError(err error) *echo.HTTPError {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
