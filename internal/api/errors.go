package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies client errors so callers can react without string matching.
type Kind string

const (
	// KindNetwork covers transport-level failures where no response was received.
	KindNetwork Kind = "network"
	// KindHTTP covers non-success responses without a usable business payload.
	KindHTTP Kind = "http"
	// KindBusiness covers rule rejections whose message comes from the server.
	KindBusiness Kind = "business"
	// KindSessionExpired marks an authentication expiry detected via redirect.
	KindSessionExpired Kind = "session_expired"
)

// SessionExpiredMessage is surfaced whenever the backend answers a mutation
// with a redirect instead of a payload.
const SessionExpiredMessage = "Session expired. Please login again."

// Error is the canonical error shape returned by the client. It never wraps
// UI concerns; navigation on RequiresReauth is a caller-side reaction.
type Error struct {
	Kind           Kind
	Message        string
	Status         int
	RequiresReauth bool
	cause          error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("api: %s (%s %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("api: %s (%s)", e.Message, e.Kind)
}

// Unwrap exposes the underlying transport error, when any.
func (e *Error) Unwrap() error { return e.cause }

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "could not reach the store, please try again",
		cause:   err,
	}
}

func sessionExpiredError(status int) *Error {
	return &Error{
		Kind:           KindSessionExpired,
		Message:        SessionExpiredMessage,
		Status:         status,
		RequiresReauth: true,
	}
}

func statusError(status int, serverMessage string) *Error {
	if serverMessage != "" {
		return &Error{Kind: KindBusiness, Message: serverMessage, Status: status}
	}
	return &Error{
		Kind:    KindHTTP,
		Message: fmt.Sprintf("request failed with status %d (%s)", status, http.StatusText(status)),
		Status:  status,
	}
}

// AsError extracts the structured client error from err, when present.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsSessionExpired reports whether err carries the session-expiry signal.
func IsSessionExpired(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindSessionExpired
}
