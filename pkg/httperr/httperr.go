// Package httperr maps the domain error taxonomy onto HTTP status codes
// without leaking upstream diagnostic text back to a client.
package httperr

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error into one of the taxonomy buckets a
// redirect request can fail with.
type Kind int

const (
	// KindInternal covers anything uncategorized; maps to 500.
	KindInternal Kind = iota
	// KindInvalidInput is a malformed request (bad region, bad url syntax).
	KindInvalidInput
	// KindDisallowedURL is a URL the validator rejected (scheme, host,
	// hop-chain, or redirect-target violation).
	KindDisallowedURL
	// KindUpstreamUnavailable is a failure reaching or reading the origin.
	KindUpstreamUnavailable
	// KindStorageUnavailable is a failure talking to the status store,
	// queue, or blob store.
	KindStorageUnavailable
	// KindNotReady means the entry is still copying (pending) and the
	// caller should retry.
	KindNotReady
	// KindNotFound is an unregistered resource (an unknown {service,
	// region} pool); maps to 404.
	KindNotFound
)

// Error is a typed error carrying an HTTP status mapping.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.err.Error()
	}
	return e.Op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// StatusCode returns the HTTP status this error should surface as.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDisallowedURL:
		return http.StatusForbidden
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case KindNotReady:
		return http.StatusAccepted
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client: the taxonomy
// label, never the wrapped diagnostic.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindInvalidInput:
		return "invalid request"
	case KindDisallowedURL:
		return "url not allowed"
	case KindUpstreamUnavailable:
		return "origin unavailable"
	case KindStorageUnavailable:
		return "storage unavailable"
	case KindNotReady:
		return "copy in progress"
	case KindNotFound:
		return "resource not found"
	default:
		return "internal error"
	}
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, err: err}
}

// As reports whether err wraps a *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
