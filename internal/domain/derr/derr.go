// Package derr defines the error categories shared by the domain services.
// Handlers map these onto HTTP status codes; the migration engine uses them
// to decide whether a record failure is skippable or fatal.
package derr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation marks rejected input. The state of the system is unchanged.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup of a UUID that resolves to nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation that is inconsistent with current state,
	// such as closing an enrollment that is already closed.
	ErrConflict = errors.New("conflict")

	// ErrInfrastructure marks failures of a backing system (database, broker,
	// legacy store). Callers may retry; the domain state is indeterminate.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// Validationf returns an ErrValidation wrapping a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound wrapping a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf returns an ErrConflict wrapping a formatted detail message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Infraf returns an ErrInfrastructure wrapping err with a formatted prefix.
func Infraf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %v", ErrInfrastructure, fmt.Sprintf(format, args...), err)
}

// ChecklistError reports the full set of reasons a closure checklist rejected
// an enrollment. It unwraps to ErrValidation.
type ChecklistError struct {
	Reasons []string
}

func (e *ChecklistError) Error() string {
	return fmt.Sprintf("closure checklist failed: %d item(s) outstanding", len(e.Reasons))
}

func (e *ChecklistError) Unwrap() error {
	return ErrValidation
}

// HTTPError converts a domain error into an echo HTTP error. Unrecognized
// errors map to 500.
func HTTPError(err error) *echo.HTTPError {
	var checklist *ChecklistError
	if errors.As(err, &checklist) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"message": checklist.Error(),
			"reasons": checklist.Reasons,
		})
	}

	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInfrastructure):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
