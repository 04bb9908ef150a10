package streambus

import (
	"errors"
	"fmt"
)

// TransportError is returned when the stream store is unreachable or a
// store-side failure prevents the whole call from completing. There is
// no partial-success contract: when ReadBlocking fails this way, no
// stream's data is returned.
type TransportError struct {
	Op    string // "append" or "read"
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream store %s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransportError returns true if the error is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// BusClosedError is returned when an operation is attempted on a closed bus.
type BusClosedError struct{}

func (e *BusClosedError) Error() string {
	return "stream bus is closed"
}
