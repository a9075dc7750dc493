package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			received.Store(true)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		// Allow subscription to be active
		time.Sleep(10 * time.Millisecond)

		err = bus.Publish(ctx, domain.TopicRunCompleted, []byte("run-001"))
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		// Wait for message
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}

		if !received.Load() {
			t.Error("message not received")
		}

		if string(receivedMsg.Payload) != "run-001" {
			t.Errorf("expected payload 'run-001', got '%s'", string(receivedMsg.Payload))
		}
		if receivedMsg.Topic != domain.TopicRunCompleted {
			t.Errorf("expected topic '%s', got '%s'", domain.TopicRunCompleted, receivedMsg.Topic)
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var submitted atomic.Int32
		var reloaded atomic.Int32

		bus.Subscribe(ctx, domain.TopicBatchSubmitted, func(ctx context.Context, msg *domain.Message) error {
			submitted.Add(1)
			return nil
		})

		bus.Subscribe(ctx, domain.TopicRefdataReloaded, func(ctx context.Context, msg *domain.Message) error {
			reloaded.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, domain.TopicBatchSubmitted, []byte("batch"))
		time.Sleep(50 * time.Millisecond)

		if submitted.Load() != 1 {
			t.Errorf("batch subscriber should receive 1 message, got %d", submitted.Load())
		}
		if reloaded.Load() != 0 {
			t.Errorf("refdata subscriber should receive 0 messages, got %d", reloaded.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "unsub.topic", []byte("before"))
		time.Sleep(50 * time.Millisecond)

		sub.Unsubscribe()
		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, "unsub.topic", []byte("after"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32

		for i := 0; i < 3; i++ {
			bus.Subscribe(ctx, "fanout.topic", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				return nil
			})
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "fanout.topic", []byte("fanout"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 3 {
			t.Errorf("expected all 3 subscribers to receive the message, got %d", count.Load())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestChannelBusClosed(t *testing.T) {
	bus := NewChannelBus(10)
	bus.Close()

	ctx := context.Background()

	if err := bus.Publish(ctx, "topic", []byte("data")); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := bus.Subscribe(ctx, "topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	}); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping to fail on closed bus")
	}
}

func TestNewBusFactory(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("expected *ChannelBus, got %T", b)
	}

	if _, err := New(domain.EventBusConfig{Type: "bogus"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
