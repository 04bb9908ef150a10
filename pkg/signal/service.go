package signal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/sigwire/sigwire/pkg/cursor"
	"github.com/sigwire/sigwire/pkg/logger"
	"github.com/sigwire/sigwire/pkg/streambus"
)

const (
	// NoTimeout is the "effectively infinite" receive timeout. It is a
	// large finite bound rather than a true block-forever, so a caller's
	// own deadline machinery can still cancel the wait.
	NoTimeout = time.Duration(1e12) * time.Millisecond

	// MinBlock is the minimum blocking-read granularity. Positive
	// timeouts below it are clamped up, with a warning.
	MinBlock = time.Millisecond
)

// Service implements the signal operations for one consumer context. It
// owns the context's cursor store, so two Services backed by the same
// stream store replay streams independently.
//
// Concurrent callers are safe: the cursor read, blocking read, and
// cursor advance for each stream are serialized by a per-stream lock.
type Service struct {
	bus      streambus.Bus
	cursors  cursor.Store
	codec    Codec
	identity Source
	log      logger.Logger
	tracer   trace.Tracer
	limiter  *rate.Limiter

	mu          sync.Mutex
	streamLocks map[string]*sync.Mutex
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithCodec sets the payload codec. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithIdentity sets the producing identity used by Send: the current
// task identity, or the actor identity when executing as an actor.
func WithIdentity(identity Source) Option {
	return func(s *Service) {
		s.identity = identity
	}
}

// WithLogger sets the logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSendRateLimit caps outgoing sends at limit per second with the
// given burst.
func WithSendRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Service) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewService creates a signal service for one consumer context.
func NewService(bus streambus.Bus, cursors cursor.Store, opts ...Option) *Service {
	s := &Service{
		bus:         bus,
		cursors:     cursors,
		codec:       JSONCodec{},
		log:         logger.Global(),
		tracer:      otel.Tracer("sigwire/signal"),
		streamLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send publishes a signal onto the stream of this service's own
// identity. The termination variant is written as the reserved sentinel
// bytes, bypassing the codec.
func (s *Service) Send(ctx context.Context, sig *Signal) error {
	ctx, span := s.tracer.Start(ctx, "signal.send")
	defer span.End()

	if sig == nil {
		metricsRecorder().RecordSignalFailed("send", "nil_signal")
		return fmt.Errorf("signal cannot be nil")
	}

	stream, err := Resolve(s.identity)
	if err != nil {
		metricsRecorder().RecordSignalFailed("send", "unresolved_identity")
		return fmt.Errorf("send requires a resolvable identity: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			metricsRecorder().RecordSignalFailed("send", "rate_limited")
			return err
		}
	}

	var payload []byte
	if sig.Terminated() {
		payload = []byte(TerminationSentinel)
	} else {
		payload, err = s.codec.Encode(sig)
		if err != nil {
			metricsRecorder().RecordSignalFailed("send", "encode_failed")
			return err
		}
	}

	offset, err := s.bus.Append(ctx, stream, payload)
	if err != nil {
		metricsRecorder().RecordSignalFailed("send", "append_failed")
		return err
	}

	span.SetAttributes(attribute.String("signal.stream", stream))
	metricsRecorder().RecordSignalSent(sig.Type)
	s.log.DebugContext(ctx, "signal sent",
		"stream", stream,
		"type", sig.Type,
		"offset", offset,
	)
	return nil
}

// Receive returns all signals published on the sources' streams since
// this consumer's last call, blocking up to timeout for the first one.
//
// A negative timeout fails with InvalidTimeoutError before any store
// contact. A zero timeout returns immediately with whatever is already
// available. Positive timeouts below MinBlock are clamped up. Use
// NoTimeout to wait indefinitely (bounded, see NoTimeout).
//
// Entries whose payload cannot be decoded are skipped, logged with
// their stream and offset, and counted in metrics; the stream's cursor
// still advances past them.
func (s *Service) Receive(ctx context.Context, sources []Source, timeout time.Duration) ([]Delivery, error) {
	if timeout < 0 {
		metricsRecorder().RecordSignalFailed("receive", "invalid_timeout")
		return nil, &InvalidTimeoutError{Timeout: timeout}
	}
	if timeout > 0 && timeout < MinBlock {
		s.log.WarnContext(ctx, "receive timeout below minimum granularity, clamping",
			"timeout", timeout,
			"min", MinBlock,
		)
		timeout = MinBlock
	}
	return s.receive(ctx, sources, timeout)
}

// Forget drains all outstanding signals from the sources without
// surfacing them: cursors advance exactly as a Receive would. It never
// waits; the minimum-block clamp applies only to Receive.
func (s *Service) Forget(ctx context.Context, sources []Source) error {
	_, err := s.receive(ctx, sources, 0)
	return err
}

// Reset clears this consumer's cursors. Subsequent Receive calls
// observe every historical entry on every stream again.
func (s *Service) Reset() error {
	return s.cursors.Clear()
}

func (s *Service) receive(ctx context.Context, sources []Source, block time.Duration) ([]Delivery, error) {
	ctx, span := s.tracer.Start(ctx, "signal.receive")
	defer span.End()
	start := time.Now()

	// Map each distinct stream back to the original sources that
	// resolve to it, preserving multiplicity for fan-out.
	bySource := make(map[string][]Source, len(sources))
	streams := make([]string, 0, len(sources))
	for _, src := range sources {
		stream, err := Resolve(src)
		if err != nil {
			metricsRecorder().RecordSignalFailed("receive", "unsupported_source")
			return nil, err
		}
		if _, seen := bySource[stream]; !seen {
			streams = append(streams, stream)
		}
		bySource[stream] = append(bySource[stream], src)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	span.SetAttributes(attribute.Int("signal.streams", len(streams)))

	// Serialize the cursor read-block-advance sequence per stream so
	// concurrent callers on overlapping sources cannot lose updates.
	unlock := s.lockStreams(streams)
	defer unlock()

	cursors := make(map[string]string, len(streams))
	for _, stream := range streams {
		offset, err := s.cursors.Get(stream)
		if err != nil {
			return nil, err
		}
		cursors[stream] = offset
	}

	batches, err := s.bus.ReadBlocking(ctx, cursors, block)
	if err != nil {
		metricsRecorder().RecordSignalFailed("receive", "read_failed")
		metricsRecorder().RecordReceive("error", time.Since(start))
		return nil, err
	}

	var out []Delivery
	for _, batch := range batches {
		targets := bySource[batch.Stream]
		if len(targets) == 0 || len(batch.Entries) == 0 {
			continue
		}

		for _, entry := range batch.Entries {
			sig, derr := s.decodeEntry(entry)
			if derr != nil {
				s.log.WarnContext(ctx, "skipping undecodable signal entry",
					"stream", batch.Stream,
					"offset", entry.Offset,
					"payload_bytes", len(entry.Payload),
					"error", derr,
				)
				metricsRecorder().RecordSignalFailed("receive", "decode_failed")
				continue
			}
			for _, src := range targets {
				out = append(out, Delivery{Source: src, Signal: sig})
				metricsRecorder().RecordSignalDelivered(sig.Type)
			}
		}

		// One advance per stream, to the last returned offset. The
		// cursor moves past skipped entries and the sentinel alike.
		last := batch.Entries[len(batch.Entries)-1].Offset
		if err := s.cursors.Advance(batch.Stream, last); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("signal.delivered", len(out)))
	metricsRecorder().RecordReceive("ok", time.Since(start))
	return out, nil
}

// decodeEntry turns a raw log entry into a signal. The termination
// sentinel is matched by exact byte comparison before the codec runs.
func (s *Service) decodeEntry(entry streambus.Entry) (*Signal, error) {
	if isTerminationPayload(entry.Payload) {
		return &Signal{Type: TypeTermination}, nil
	}
	return s.codec.Decode(entry.Payload)
}

// lockStreams acquires the per-stream locks in sorted order and returns
// the matching unlock. Sorted acquisition keeps concurrent receives on
// overlapping stream sets deadlock-free.
func (s *Service) lockStreams(streams []string) func() {
	sorted := make([]string, len(streams))
	copy(sorted, streams)
	sort.Strings(sorted)

	locks := make([]*sync.Mutex, 0, len(sorted))
	for _, stream := range sorted {
		locks = append(locks, s.streamLock(stream))
	}
	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (s *Service) streamLock(stream string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.streamLocks[stream]
	if !ok {
		l = &sync.Mutex{}
		s.streamLocks[stream] = l
	}
	return l
}
