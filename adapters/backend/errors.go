package backend

import (
	"errors"
	"fmt"
)

// Error codes carried by StatusError and StreamError
const (
	CodeUnauthorized = "unauthorized"
	CodeTransport    = "transport"
	CodeHTTPStatus   = "http_status"
	CodeServer       = "server_error"
	CodeStreamRead   = "stream_read"
	CodeStreamClosed = "stream_closed_without_completion"
	CodeAvatarNoURL  = "avatar_missing_url"
)

// ErrAvatarInFlight is returned when an avatar synthesis is already running
var ErrAvatarInFlight = errors.New("avatar generation already in flight")

// StatusError describes a failed backend request
type StatusError struct {
	Code   string
	Status int
	Body   string
	Err    error
}

func (e *StatusError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Code, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Code, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StreamError is delivered to StreamHandler.OnError. Code distinguishes
// server-declared errors from transport and protocol failures.
type StreamError struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsStreamClosed reports whether err is the implicit error raised when a
// stream ended without a complete or error event
func IsStreamClosed(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr) && streamErr.Code == CodeStreamClosed
}
