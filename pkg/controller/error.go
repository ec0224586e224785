package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/resilience"
)

// Codes shared by every resource.
const (
	CodeNotFound    = "not_found"
	CodeDuplicated  = "duplicated_id"
	CodeBadData     = "bad_data"
	CodeInternal    = "internal_error"
	CodeBadRequest  = "bad_request"
	CodeNotAllowed  = "method_not_allowed"
	CodeTimeout     = "request_timeout"
	CodeTooLarge    = "request_too_large"
	CodeUnavailable = "store_unavailable"
	defaultInternal = "an unexpected error occurred"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is an error that already knows how it is answered.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *HTTPError) Error() string {
	if e.Cause == nil {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + ": " + e.Cause.Error()
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// BadRequest creates a 400 error with code.
func BadRequest(code, format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches the error that triggered e.
func (e *HTTPError) WithCause(cause error) *HTTPError {
	e.Cause = cause
	return e
}

// MapError maps an error to its status code and body. Repository kinds map to
// 404 not_found, 409 duplicated_id and 400 with the validation code. An open
// store circuit is a 503; anything else is a 500.
func MapError(err error) (int, ErrorResponse) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, ErrorResponse{Code: httpErr.Code, Message: httpErr.Message}
	}

	var validationErr *repository.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{Code: validationErr.Code, Message: validationErr.Message}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, ErrorResponse{Code: CodeDuplicated, Message: err.Error()}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, ErrorResponse{Code: CodeUnavailable, Message: "the document store is unavailable, retry later"}
	case errors.Is(err, repository.ErrSerialization):
		return http.StatusInternalServerError, ErrorResponse{Code: CodeBadData, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: defaultInternal}
	}
}
