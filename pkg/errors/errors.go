package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// InvalidArgument returns a 400 for programming errors such as a missing
// descriptor, an unknown attribute or a mistyped predicate value.
func InvalidArgument(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// PreconditionFailed returns a 412 HTTP error
func PreconditionFailed(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusPreconditionFailed, fmt.Sprintf(format, args...))
}

// Forbidden returns a 403 HTTP error
func Forbidden(message string) error {
	return httperror.NewHTTPError(http.StatusForbidden, message)
}

func IsInvalidArgument(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsPreconditionFailed(err error) bool {
	return hasStatus(err, http.StatusPreconditionFailed)
}

func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// StatusCode returns the HTTP status carried by err, or 500.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var he *httperror.HTTPError
	if errors.As(err, &he) {
		return httperror.GetStatusCode(he)
	}
	return http.StatusInternalServerError
}

func hasStatus(err error, status int) bool {
	if err == nil {
		return false
	}
	return StatusCode(err) == status
}
