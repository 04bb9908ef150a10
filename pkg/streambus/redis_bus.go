package streambus

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fieldName is the single stream field carrying the signal payload.
const fieldName = "signal"

// RedisBus is a Redis Streams-backed Bus implementation. Appends map to
// XADD and blocking reads map to a single XREAD BLOCK across all
// requested streams.
type RedisBus struct {
	client    redis.UniversalClient
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

// NewRedisBus creates a new Redis-backed stream bus. keyPrefix is
// prepended to every stream identity to namespace the keys.
func NewRedisBus(client redis.UniversalClient, keyPrefix string) *RedisBus {
	return &RedisBus{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (b *RedisBus) key(stream string) string {
	return b.keyPrefix + stream
}

// Append appends one entry via XADD and returns the new entry ID.
func (b *RedisBus) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", &BusClosedError{}
	}
	b.mu.RUnlock()

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.key(stream),
		Values: map[string]interface{}{fieldName: payload},
	}).Result()
	if err != nil {
		return "", &TransportError{Op: "append", Cause: err}
	}
	return id, nil
}

// ReadBlocking issues one XREAD across all requested streams. A block of
// zero is translated to a non-blocking read (Redis treats BLOCK 0 as
// "wait forever", which is never what this bus means by zero).
func (b *RedisBus) ReadBlocking(ctx context.Context, cursors map[string]string, block time.Duration) ([]StreamEntries, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, &BusClosedError{}
	}
	b.mu.RUnlock()

	if len(cursors) == 0 {
		return nil, nil
	}

	// XREAD wants stream keys followed by their cursors, in matching
	// order. Sort for deterministic queries.
	streams := make([]string, 0, len(cursors))
	for stream := range cursors {
		streams = append(streams, stream)
	}
	sort.Strings(streams)

	args := make([]string, 0, 2*len(streams))
	for _, stream := range streams {
		args = append(args, b.key(stream))
	}
	for _, stream := range streams {
		args = append(args, cursors[stream])
	}

	if block <= 0 {
		// Negative disables BLOCK entirely in go-redis.
		block = -1
	}

	res, err := b.client.XRead(ctx, &redis.XReadArgs{
		Streams: args,
		Block:   block,
	}).Result()
	if err == redis.Nil {
		// Timeout with no data.
		return nil, nil
	}
	if err != nil {
		return nil, &TransportError{Op: "read", Cause: err}
	}

	out := make([]StreamEntries, 0, len(res))
	for _, xs := range res {
		entries := make([]Entry, 0, len(xs.Messages))
		for _, msg := range xs.Messages {
			payload, ok := msg.Values[fieldName]
			if !ok {
				continue
			}
			var raw []byte
			switch v := payload.(type) {
			case string:
				raw = []byte(v)
			case []byte:
				raw = v
			default:
				continue
			}
			entries = append(entries, Entry{Offset: msg.ID, Payload: raw})
		}
		if len(entries) == 0 {
			continue
		}
		out = append(out, StreamEntries{
			Stream:  strings.TrimPrefix(xs.Stream, b.keyPrefix),
			Entries: entries,
		})
	}
	return out, nil
}

// Close marks the bus closed. The Redis client is owned by the caller
// and is not closed here.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Healthy checks if the Redis connection is alive.
func (b *RedisBus) Healthy() bool {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return false
	}
	b.mu.RUnlock()

	return b.client.Ping(context.Background()).Err() == nil
}
