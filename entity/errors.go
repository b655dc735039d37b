package entity

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	// ErrNotReady marks an agent without complete outbound messaging config.
	ErrNotReady     = errors.New("agent outbound messaging is not configured")
	ErrForbidden    = errors.New("forbidden")
	ErrDisabled     = errors.New("feature is not enabled")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)
