package domain

import (
	"errors"
	"fmt"
)

// ErrorType categorizes a bridge error so callers can decide between
// failing fast, degrading, and retrying.
type ErrorType string

const (
	// ErrorTypeConfig indicates missing or invalid configuration
	// (credentials, identifiers). Fatal; never retried.
	ErrorTypeConfig ErrorType = "config"

	// ErrorTypeDecode indicates a malformed payload. Queue payloads are
	// acknowledged and dropped; credential blobs are surfaced.
	ErrorTypeDecode ErrorType = "decode"

	// ErrorTypeTransient indicates a retryable external-call failure
	// (deadline exceeded, brief unavailability).
	ErrorTypeTransient ErrorType = "transient"

	// ErrorTypeStore indicates the document store was unreachable or
	// rejected an operation. Callers degrade fail-open toward AI control.
	ErrorTypeStore ErrorType = "store"

	// ErrorTypeSend indicates an outbound chat send failed. Not retried
	// internally; the caller decides.
	ErrorTypeSend ErrorType = "send"
)

// BridgeError is the canonical error for the bridge components.
type BridgeError struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// NewError builds a BridgeError wrapping an optional cause.
func NewError(t ErrorType, op, message string, err error) *BridgeError {
	return &BridgeError{Type: t, Op: op, Message: message, Err: err}
}

// IsType reports whether err is (or wraps) a BridgeError of the given type.
func IsType(err error, t ErrorType) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Type == t
	}
	return false
}
