package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sigwire/sigwire/pkg/streambus"
)

// Concurrent receives on the same consumer must not lose or duplicate
// entries: the per-stream lock serializes each cursor read-block-advance.
func TestReceive_ConcurrentCallersDeliverExactlyOnce(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	const total = 50
	for i := 0; i < total; i++ {
		mustSend(t, producer, "tick", "")
	}

	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := consumer.Receive(context.Background(), sources, 0)
				if err != nil {
					t.Errorf("receive failed: %v", err)
					return
				}
				if len(got) == 0 {
					return
				}
				mu.Lock()
				delivered += len(got)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if delivered != total {
		t.Fatalf("delivered %d signals across concurrent callers, want exactly %d", delivered, total)
	}

	// Everything drained.
	got, err := consumer.Receive(context.Background(), sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected drained stream, got %d more", len(got))
	}
}

func TestForget_ConcurrentWithReceive(t *testing.T) {
	bus := streambus.NewMemoryBus()
	defer bus.Close()

	producer, taskID := newProducer(t, bus)
	consumer := newConsumer(bus)
	sources := []Source{TaskIdentity(taskID)}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = producer.Send(context.Background(), &Signal{Type: "noise", SentAt: time.Now()})
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := consumer.Forget(context.Background(), sources); err != nil {
					t.Errorf("forget failed: %v", err)
					return
				}
				if _, err := consumer.Receive(context.Background(), sources, 0); err != nil {
					t.Errorf("receive failed: %v", err)
					return
				}
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
}
