package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine readable category of a StatsError.
type Kind string

const (
	InvalidCredentials Kind = "invalid_credentials"
	Unauthenticated    Kind = "unauthenticated"
	ValidationFailed   Kind = "validation_error"
	InvalidIdentifier  Kind = "invalid_identifier"
	NotModified        Kind = "not_modified"
	NotFound           Kind = "not_found"
	StoreFailure       Kind = "store_error"
)

// StatsError is returned by every component of the statistics service.
// Detail is safe to show to API callers; the wrapped cause is not.
type StatsError struct {
	Kind   Kind   `json:"error"`
	Detail string `json:"detail,omitempty"`
	cause  error
}

func (e *StatsError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause for logging.
func (e *StatsError) Unwrap() error {
	return e.cause
}

// Is matches any StatsError of the same kind, so the sentinels below
// work with errors.Is regardless of detail text.
func (e *StatsError) Is(target error) bool {
	t, ok := target.(*StatsError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCredentials = &StatsError{Kind: InvalidCredentials}
	ErrUnauthenticated    = &StatsError{Kind: Unauthenticated}
	ErrValidation         = &StatsError{Kind: ValidationFailed}
	ErrInvalidIdentifier  = &StatsError{Kind: InvalidIdentifier}
	ErrNotModified        = &StatsError{Kind: NotModified}
	ErrNotFound           = &StatsError{Kind: NotFound}
	ErrStore              = &StatsError{Kind: StoreFailure}
)

func newError(kind Kind, cause error, format string, args ...any) *StatsError {
	return &StatsError{Kind: kind, Detail: fmt.Sprintf(format, args...), cause: cause}
}

func NewInvalidCredentials(detail string) *StatsError {
	return newError(InvalidCredentials, nil, "%s", detail)
}

func NewUnauthenticated(cause error, detail string) *StatsError {
	return newError(Unauthenticated, cause, "%s", detail)
}

// NewValidation reports a schema mismatch; field is the offending path
// (e.g. "metadata.num_results") and may be empty for body-level problems.
func NewValidation(field, reason string) *StatsError {
	if field == "" {
		return newError(ValidationFailed, nil, "%s", reason)
	}
	return newError(ValidationFailed, nil, "%s: %s", field, reason)
}

func NewInvalidIdentifier(id string, cause error) *StatsError {
	return newError(InvalidIdentifier, cause, "invalid id: %s", id)
}

func NewNotModified(id string) *StatsError {
	return newError(NotModified, nil, "no changes were made to %s", id)
}

func NewNotFound(detail string) *StatsError {
	return newError(NotFound, nil, "%s", detail)
}

func NewStoreError(cause error, detail string) *StatsError {
	return newError(StoreFailure, cause, "%s", detail)
}

// HTTPStatus maps an error kind onto the status code of the REST API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidCredentials, Unauthenticated:
		return http.StatusUnauthorized
	case ValidationFailed:
		return http.StatusUnprocessableEntity
	case NotModified:
		return http.StatusNotModified
	case NotFound:
		return http.StatusNotFound
	case InvalidIdentifier, StoreFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts a *StatsError from err. Errors that are not part of the
// taxonomy are reported as store errors so nothing internal leaks out.
func As(err error) *StatsError {
	var se *StatsError
	if stderrors.As(err, &se) {
		return se
	}
	return NewStoreError(err, "internal error")
}
