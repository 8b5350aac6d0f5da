// Package errors defines the error taxonomy shared by the index, the query
// evaluator and the connection workers.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrIO                = errors.New("i/o error")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrConnectionClosed  = errors.New("connection closed by peer")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error attaches the failing operation and a message to a sentinel.
type Error struct {
	Err     error
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *Error {
	return &Error{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *Error {
	return &Error{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind returns a short label for err, suitable for metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
