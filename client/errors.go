package client

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package is an *Error whose Kind is one of these,
// so callers can match with errors.Is(err, ErrConnection) and so on.
var (
	// ErrAddress means the configured daemon address could not be understood.
	ErrAddress = errors.New("invalid daemon address")

	// ErrConnection means the daemon could not be reached at all.
	ErrConnection = errors.New("connection to daemon failed")

	// ErrTimeout means a request did not complete in time.
	ErrTimeout = errors.New("request to daemon timed out")

	// ErrVersionMismatch means the daemon reported a version outside the supported range.
	ErrVersionMismatch = errors.New("unsupported daemon version")

	// ErrProtocol means the daemon's response could not be decoded.
	ErrProtocol = errors.New("malformed response from daemon")

	// ErrResponse means the daemon answered with an error object; see ErrorResponse.
	ErrResponse = errors.New("daemon returned an error")

	// ErrStatus means the daemon answered with an unexpected HTTP status; see StatusError.
	ErrStatus = errors.New("unexpected HTTP status from daemon")

	// ErrClosed means the client was used after Close.
	ErrClosed = errors.New("client is closed")

	// ErrLocalFile means a local file or directory to be sent to the daemon could not be read.
	ErrLocalFile = errors.New("cannot read local file")
)

// Error is the common error type of this package.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsError reports whether err originated from this package.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// ErrorResponse is the error object the daemon sends with a failed command, for instance
// {"Message":"not pinned or pinned indirectly","Code":0,"Type":"error"}.
type ErrorResponse struct {
	StatusCode int
	Message    string
	Code       int
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s (HTTP %d, code %d)", e.Message, e.StatusCode, e.Code)
}

// StatusError is returned for a non-2xx response that did not carry an error object.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP status %d: %s", e.StatusCode, e.Body)
}
