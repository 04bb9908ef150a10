// Package streambus provides the append/blocking-read client to the
// append-only stream store that carries signals between tasks.
//
// A stream is identified by an opaque string key. Entries within one
// stream carry offsets that are totally ordered within that stream and
// opaque everywhere else: callers hand an offset back as a cursor, they
// never do arithmetic on it.
package streambus

import (
	"context"
	"time"
)

// Entry is a single record appended to one stream.
type Entry struct {
	// Offset is the entry's position token within its stream. It is
	// usable as the cursor for subsequent reads.
	Offset string

	// Payload is the opaque signal payload.
	Payload []byte
}

// StreamEntries is the per-stream slice of a multi-stream read result.
type StreamEntries struct {
	// Stream is the stream identity the entries belong to.
	Stream string

	// Entries are in ascending offset order.
	Entries []Entry
}

// Bus defines the interface to an append-only multi-stream log store.
type Bus interface {
	// Append atomically appends one entry to the stream and returns the
	// new entry's offset.
	Append(ctx context.Context, stream string, payload []byte) (string, error)

	// ReadBlocking returns all entries newer than the supplied cursor on
	// each requested stream. If none are available it blocks until at
	// least one entry arrives on at least one stream or until block
	// elapses, whichever comes first. A block of zero means "return
	// immediately with whatever is already available". A timeout with no
	// data is an empty result, not an error.
	ReadBlocking(ctx context.Context, cursors map[string]string, block time.Duration) ([]StreamEntries, error)

	// Close shuts down the bus client and releases resources.
	Close() error

	// Healthy returns true if the underlying store is reachable.
	Healthy() bool
}
