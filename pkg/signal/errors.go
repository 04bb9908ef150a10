package signal

import (
	"errors"
	"fmt"
	"time"
)

// InvalidTimeoutError is returned when a receive timeout is negative.
// The call fails before any store contact.
type InvalidTimeoutError struct {
	Timeout time.Duration
}

func (e *InvalidTimeoutError) Error() string {
	return fmt.Sprintf("receive timeout cannot be negative (got %s)", e.Timeout)
}

// UnsupportedSourceError is returned when a source handle cannot be
// resolved to a stream identity. It fails the whole send or receive
// call; no partial results are produced.
type UnsupportedSourceError struct {
	Kind   SourceKind
	Reason string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported source kind %q: %s", string(e.Kind), e.Reason)
}

// EncodeError indicates the codec could not serialize a signal.
type EncodeError struct {
	Cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("signal encode failed: %v", e.Cause)
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// DecodeError indicates the codec could not deserialize a payload.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("signal decode failed: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsInvalidTimeout returns true if the error is an InvalidTimeoutError.
func IsInvalidTimeout(err error) bool {
	var te *InvalidTimeoutError
	return errors.As(err, &te)
}

// IsUnsupportedSource returns true if the error is an UnsupportedSourceError.
func IsUnsupportedSource(err error) bool {
	var se *UnsupportedSourceError
	return errors.As(err, &se)
}
