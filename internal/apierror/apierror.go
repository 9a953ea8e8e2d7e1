// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// ── Domain error taxonomy ─────────────────────────────────────────────────────
// Services return typed rejections so handlers can map them to HTTP statuses
// without string matching. All precondition failures carry a human-readable
// reason naming the current state and, where applicable, the legal remedy.

// Kind classifies a domain rejection.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation"
)

// DomainError is a typed, non-retryable rejection from the service layer.
type DomainError struct {
	Kind   Kind
	Detail string
}

func (e *DomainError) Error() string { return e.Detail }

func NotFound(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

func PermissionDenied(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindPermissionDenied, Detail: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindConflict, Detail: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or "" when err is not a DomainError.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// HTTPStatus maps a domain error to its HTTP status code.
// Non-domain errors map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
