package model

import "errors"

// Error classes shared by every layer. Callers wrap them with context and
// handlers map them to responses with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAuthMismatch = errors.New("identity mismatch")
	ErrStore        = errors.New("store error")
)

// Retryable reports whether err may be retried as-is. Only store failures
// qualify since they are never partially applied.
func Retryable(err error) bool {
	return errors.Is(err, ErrStore)
}
