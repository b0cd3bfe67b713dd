// Package apierr defines the typed error kinds shared across wavecast's
// components and the table that maps them to HTTP status codes at the Front
// Door boundary.
package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies an error into one of the policies from the error handling
// design: each kind has a single, fixed HTTP status and logging policy.
type Kind int

const (
	KindUnauthorized Kind = iota
	KindMalformed
	KindExpired
	KindNotFound
	KindConflict
	KindRateLimited
	KindUpstreamUnavailable
	KindTimeout
	KindIOError
)

// Error wraps an underlying cause with a classification and an optional
// message safe to return to the caller. The underlying cause (which may
// carry sensitive detail such as a token) is never serialized.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a classified Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified Error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

var (
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized")
	ErrMalformed           = New(KindMalformed, "malformed")
	ErrExpired             = New(KindExpired, "expired")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrConflict            = New(KindConflict, "conflict")
	ErrRateLimited         = New(KindRateLimited, "rate limited")
	ErrUpstreamUnavailable = New(KindUpstreamUnavailable, "upstream unavailable")
	ErrTimeout             = New(KindTimeout, "timeout")
)

// CodeFor maps a Kind to the stable machine-readable code placed in the
// Front Door's {error, message} response shape, per spec §7.
func CodeFor(kind Kind) string {
	switch kind {
	case KindUnauthorized:
		return "unauthorized"
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindTimeout:
		return "timeout"
	case KindIOError:
		return "internal"
	default:
		return "internal"
	}
}

// StatusFor maps a Kind to the HTTP status the Front Door must return, per
// the error handling design table in spec §7.
func StatusFor(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindMalformed:
		return http.StatusBadRequest
	case KindExpired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindIOError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts a classified *Error from err, following the standard
// errors.As convention.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
