package signal

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigwire/sigwire/pkg/cursor/memory"
	"github.com/sigwire/sigwire/pkg/streambus"
)

func newProducer(t *testing.T, bus streambus.Bus) (*Service, string) {
	t.Helper()
	taskID := NewTaskID()
	svc := NewService(bus, memory.NewStore(), WithIdentity(TaskIdentity(taskID)))
	return svc, taskID
}

func newConsumer(bus streambus.Bus) *Service {
	return NewService(bus, memory.NewStore())
}

func mustSend(t *testing.T, svc *Service, sigType string, payload string) {
	t.Helper()
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	if err := svc.Send(context.Background(), &Signal{
		Type:    sigType,
		Payload: raw,
		SentAt:  time.Now(),
	}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func TestReceive_OrderWithinStream(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "a", `{"n":1}`)
	mustSend(t, producer, "b", `{"n":2}`)

	consumer := newConsumer(bus)
	got, err := consumer.Receive(context.Background(), []Source{TaskIdentity(taskID)}, 0)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].Signal.Type != "a" || got[1].Signal.Type != "b" {
		t.Errorf("expected order [a b], got [%s %s]", got[0].Signal.Type, got[1].Signal.Type)
	}
}

func TestReceive_NoRedeliveryWithoutReset(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "once", "")

	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	first, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(first))
	}

	second, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("expected no redelivery, got %d", len(second))
	}
}

func TestForget_DrainsWithoutSurfacing(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "drained", "")

	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	if err := consumer.Forget(context.Background(), sources); err != nil {
		t.Fatalf("forget failed: %v", err)
	}

	got, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty receive after forget, got %d deliveries", len(got))
	}
}

func TestReset_ReplaysFullHistory(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "a", "")
	mustSend(t, producer, "b", "")

	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	first, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := consumer.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	replay, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(replay) != len(first) {
		t.Fatalf("expected replay of %d deliveries, got %d", len(first), len(replay))
	}
	for i := range first {
		if first[i].Signal.Type != replay[i].Signal.Type {
			t.Errorf("replay[%d] = %s, want %s", i, replay[i].Signal.Type, first[i].Signal.Type)
		}
	}
}

func TestReceive_FanOutToAllSourcesOfOneStream(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "shared", "")

	// Two distinct result handles produced by the same task resolve to
	// the same stream.
	s1 := ResultHandle("obj-1", taskID)
	s2 := ResultHandle("obj-2", taskID)

	consumer := newConsumer(bus)
	got, err := consumer.Receive(context.Background(), []Source{s1, s2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries (one per handle), got %d", len(got))
	}
	seen := map[string]bool{}
	for _, d := range got {
		if d.Signal.Type != "shared" {
			t.Errorf("unexpected signal type %s", d.Signal.Type)
		}
		seen[d.Source.ID] = true
	}
	if !seen["obj-1"] || !seen["obj-2"] {
		t.Errorf("expected deliveries for both handles, got %v", seen)
	}
}

func TestReceive_SubMillisecondTimeoutClamped(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	consumer := newConsumer(bus)
	start := time.Now()
	got, err := consumer.Receive(context.Background(), []Source{TaskIdentity("idle-task")}, 500*time.Microsecond)
	if err != nil {
		t.Fatalf("sub-millisecond timeout should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no deliveries, got %d", len(got))
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("clamped receive took too long: %s", elapsed)
	}
}

// trackingBus counts store contacts so tests can assert a call never
// reached the store.
type trackingBus struct {
	appends atomic.Int32
	reads   atomic.Int32
}

func (b *trackingBus) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	b.appends.Add(1)
	return "1-1", nil
}

func (b *trackingBus) ReadBlocking(ctx context.Context, cursors map[string]string, block time.Duration) ([]streambus.StreamEntries, error) {
	b.reads.Add(1)
	return nil, nil
}

func (b *trackingBus) Close() error  { return nil }
func (b *trackingBus) Healthy() bool { return true }

func TestReceive_NegativeTimeoutFailsBeforeStoreContact(t *testing.T) {
	bus := &trackingBus{}
	consumer := NewService(bus, memory.NewStore())

	_, err := consumer.Receive(context.Background(), []Source{TaskIdentity("t")}, -1)
	if !IsInvalidTimeout(err) {
		t.Fatalf("expected InvalidTimeoutError, got %v", err)
	}
	if n := bus.reads.Load(); n != 0 {
		t.Errorf("expected no reads, got %d", n)
	}
	if n := bus.appends.Load(); n != 0 {
		t.Errorf("expected no appends, got %d", n)
	}
}

func TestReceive_TerminationSentinel(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	if err := producer.Send(context.Background(), Termination()); err != nil {
		t.Fatal(err)
	}

	s1 := ResultHandle("obj-1", taskID)
	s2 := TaskIdentity(taskID)

	consumer := newConsumer(bus)
	got, err := consumer.Receive(context.Background(), []Source{s1, s2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected termination fan-out to both sources, got %d deliveries", len(got))
	}
	for _, d := range got {
		if !d.Signal.Terminated() {
			t.Errorf("expected termination signal for %s, got type %s", d.Source, d.Signal.Type)
		}
	}
}

func TestReceive_RawSentinelBytesBypassCodec(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	taskID := NewTaskID()
	// Publish the exact sentinel bytes directly, as the framework does
	// when it detects a dead producer.
	if _, err := bus.Append(context.Background(), taskID, []byte(TerminationSentinel)); err != nil {
		t.Fatal(err)
	}

	consumer := newConsumer(bus)
	got, err := consumer.Receive(context.Background(), []Source{TaskIdentity(taskID)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Signal.Terminated() {
		t.Fatalf("expected one termination delivery, got %+v", got)
	}
}

func TestReceive_PerConsumerIndependence(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	mustSend(t, producer, "a", "")
	mustSend(t, producer, "b", "")

	sources := []Source{TaskIdentity(taskID)}
	c1 := newConsumer(bus)
	c2 := newConsumer(bus)

	got1, err := c1.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := c2.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got1) != 2 || len(got2) != 2 {
		t.Fatalf("expected both consumers to see 2 deliveries, got %d and %d", len(got1), len(got2))
	}
}

func TestReceive_BlocksUntilSignalArrives(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	consumer := newConsumer(bus)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = producer.Send(context.Background(), &Signal{Type: "late", SentAt: time.Now()})
	}()

	start := time.Now()
	got, err := consumer.Receive(context.Background(), []Source{TaskIdentity(taskID)}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Signal.Type != "late" {
		t.Fatalf("expected the late signal, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("receive returned before the signal was published: %s", elapsed)
	}
}

func TestReceive_SkipsUndecodableEntries(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	taskID := NewTaskID()
	if _, err := bus.Append(context.Background(), taskID, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	producer := NewService(bus, memory.NewStore(), WithIdentity(TaskIdentity(taskID)))
	mustSend(t, producer, "good", "")

	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	got, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Signal.Type != "good" {
		t.Fatalf("expected only the decodable signal, got %+v", got)
	}

	// The cursor advanced past the bad entry too.
	again, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("expected no redelivery after skip, got %d", len(again))
	}
}

func TestReceive_UnsupportedSourceFailsWholeCall(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	consumer := newConsumer(bus)
	_, err := consumer.Receive(context.Background(), []Source{
		TaskIdentity("ok-task"),
		{Kind: "mystery", ID: "x"},
	}, 0)
	if !IsUnsupportedSource(err) {
		t.Fatalf("expected UnsupportedSourceError, got %v", err)
	}
}

func TestSend_RequiresIdentity(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	svc := NewService(bus, memory.NewStore())
	err := svc.Send(context.Background(), &Signal{Type: "x", SentAt: time.Now()})
	if err == nil {
		t.Fatal("expected error sending without identity")
	}
}
