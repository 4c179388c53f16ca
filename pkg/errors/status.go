package errors

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// StatusError pairs an HTTP status with an optional message and cause.
type StatusError struct {
	Status  int
	Message string
	Cause   error
}

func NewStatusError(status int, message string) *StatusError {
	return &StatusError{Status: status, Message: message}
}

func WrapStatusError(status int, cause error) *StatusError {
	return &StatusError{Status: status, Cause: cause}
}

// Error returns the response body: the message if set, else the cause's
// message, else the status reason phrase.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil && e.Cause.Error() != "" {
		return e.Cause.Error()
	}
	return http.StatusText(e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

func (e *StatusError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.Status, e.Error())
}
