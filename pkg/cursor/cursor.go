// Package cursor provides per-consumer replay-position tracking for
// signal streams. A Store maps stream identities to the last-consumed
// offset; each consumer context owns exactly one Store, so two
// consumers replay the same stream independently.
package cursor

import (
	"strconv"
	"strings"
)

// Sentinel is the cursor value meaning "beginning of stream, nothing
// consumed yet". It precedes every real offset.
const Sentinel = "0"

// Store tracks last-consumed offsets for one consumer context.
//
// Entries are created lazily on first Get, cleared in bulk by Clear,
// and destroyed with the consumer. A Store is not shared across
// consumers.
type Store interface {
	// Get returns the cursor for the stream, or Sentinel if unseen.
	Get(stream string) (string, error)

	// Advance sets the cursor to offset. Offsets only move forward: an
	// offset older than the current cursor is a no-op, not a rewind.
	Advance(stream string, offset string) error

	// Clear removes all entries, returning the store to its initial
	// empty state.
	Clear() error

	// Close releases any resources held by the store.
	Close() error
}

// Compare orders two offsets. It returns -1 if a precedes b, +1 if a
// follows b, and 0 if they are equal. Offsets are either Redis-style
// "ms-seq" entry IDs or plain decimal counters; the Sentinel precedes
// everything.
func Compare(a, b string) int {
	ams, aseq := splitOffset(a)
	bms, bseq := splitOffset(b)
	switch {
	case ams != bms:
		if ams < bms {
			return -1
		}
		return 1
	case aseq != bseq:
		if aseq < bseq {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func splitOffset(offset string) (int64, int64) {
	ms, seq, ok := strings.Cut(offset, "-")
	m, _ := strconv.ParseInt(ms, 10, 64)
	if !ok {
		return m, 0
	}
	s, _ := strconv.ParseInt(seq, 10, 64)
	return m, s
}
