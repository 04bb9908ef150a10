// Package signal implements signal delivery between distributed tasks
// and actors over append-only streams.
//
// Producers publish typed notifications onto the stream of their own
// identity; consumers retrieve them by source handle with per-consumer
// cursor tracking, so independent consumers replay the same stream
// without coordinating. One reserved signal denotes that the producing
// task or actor terminated abnormally.
package signal

import (
	"bytes"
	"encoding/json"
	"time"
)

// TerminationSentinel is the exact payload published when a producer
// dies. It is written verbatim to the stream, never passed through a
// codec, and detected by exact byte comparison before any decode
// attempt.
const TerminationSentinel = "ACTOR_DIED_SIGNAL"

// TypeTermination is the reserved type of the termination signal.
const TypeTermination = "termination"

// Signal represents a notification published by a task or actor.
type Signal struct {
	// Type is the application-defined signal type. TypeTermination is
	// reserved for the termination variant.
	Type string `json:"type"`

	// Payload is the signal-specific data. Empty for termination.
	Payload json.RawMessage `json:"payload,omitempty"`

	// SentAt is the timestamp when the signal was sent.
	SentAt time.Time `json:"sent_at"`
}

// Termination returns the reserved signal denoting abnormal producer
// termination.
func Termination() *Signal {
	return &Signal{Type: TypeTermination, SentAt: time.Now()}
}

// Terminated reports whether this is the reserved termination signal.
func (s *Signal) Terminated() bool {
	return s.Type == TypeTermination
}

// Delivery pairs a received signal with the original source handle it
// was requested through. When several handles resolve to the same
// stream, each handle gets its own Delivery for every signal on that
// stream.
type Delivery struct {
	Source Source
	Signal *Signal
}

// isTerminationPayload reports whether raw is exactly the reserved
// sentinel bytes.
func isTerminationPayload(raw []byte) bool {
	return bytes.Equal(raw, []byte(TerminationSentinel))
}
