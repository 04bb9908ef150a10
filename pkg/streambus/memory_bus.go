package streambus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryBus is an in-process Bus implementation with the same blocking
// semantics as the Redis-backed one. Intended for tests, examples, and
// single-process deployments.
type MemoryBus struct {
	mu      sync.Mutex
	streams map[string][]Entry
	seq     uint64
	notify  chan struct{}
	closed  bool
}

// NewMemoryBus creates an empty in-memory stream bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		streams: make(map[string][]Entry),
		notify:  make(chan struct{}),
	}
}

// Append appends one entry and wakes all blocked readers.
func (b *MemoryBus) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Op: "append", Cause: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", &BusClosedError{}
	}

	b.seq++
	// Redis-shaped entry IDs so cursors look the same across backends.
	offset := fmt.Sprintf("%d-%d", time.Now().UnixMilli(), b.seq)
	copied := make([]byte, len(payload))
	copy(copied, payload)
	b.streams[stream] = append(b.streams[stream], Entry{Offset: offset, Payload: copied})

	// Broadcast by closing the current notify channel and replacing it.
	close(b.notify)
	b.notify = make(chan struct{})

	return offset, nil
}

// ReadBlocking returns entries newer than each cursor, blocking up to
// block for the first entry to arrive. A block of zero returns
// immediately with whatever is available.
func (b *MemoryBus) ReadBlocking(ctx context.Context, cursors map[string]string, block time.Duration) ([]StreamEntries, error) {
	if len(cursors) == 0 {
		return nil, nil
	}

	var deadline <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, &BusClosedError{}
		}
		res := b.collect(cursors)
		notify := b.notify
		b.mu.Unlock()

		if len(res) > 0 || block <= 0 {
			return res, nil
		}

		select {
		case <-notify:
			// New data somewhere; re-check the requested streams.
		case <-deadline:
			return nil, nil
		case <-ctx.Done():
			return nil, &TransportError{Op: "read", Cause: ctx.Err()}
		}
	}
}

// collect gathers entries newer than each cursor. Caller holds b.mu.
func (b *MemoryBus) collect(cursors map[string]string) []StreamEntries {
	var out []StreamEntries
	for stream, cursor := range cursors {
		entries := b.streams[stream]
		idx := firstNewer(entries, cursor)
		if idx >= len(entries) {
			continue
		}
		fresh := make([]Entry, len(entries)-idx)
		copy(fresh, entries[idx:])
		out = append(out, StreamEntries{Stream: stream, Entries: fresh})
	}
	return out
}

// firstNewer returns the index of the first entry strictly newer than
// the cursor. The sentinel cursor "0" precedes every entry.
func firstNewer(entries []Entry, cursor string) int {
	for i, e := range entries {
		if offsetAfter(e.Offset, cursor) {
			return i
		}
	}
	return len(entries)
}

// offsetAfter reports whether offset a is strictly newer than b. Both
// are "ms-seq" pairs, or the sentinel "0".
func offsetAfter(a, b string) bool {
	ams, aseq := splitOffset(a)
	bms, bseq := splitOffset(b)
	if ams != bms {
		return ams > bms
	}
	return aseq > bseq
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

// Close shuts down the bus and wakes all blocked readers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.notify)
	return nil
}

// Healthy returns true until the bus is closed.
func (b *MemoryBus) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}
