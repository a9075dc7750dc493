package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openlearn/kestrel/internal/bus"
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/runner"
)

func TestWorkerProcessesBatch(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := runner.NewService(nil, nil, eventBus, nil, 2, "test")

	var completed atomic.Int32
	eventBus.Subscribe(context.Background(), domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed.Add(1)
		return nil
	})

	w := NewWorker(eventBus, service)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	batch := BatchMessage{
		BatchID: "batch-001",
		TraceID: "trace-001",
		Learners: []*domain.Learner{
			{LearnRefNumber: "L001", ULN: 1000000027},
		},
	}
	payload, _ := json.Marshal(batch)

	if err := eventBus.Publish(context.Background(), domain.TopicBatchSubmitted, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for completed.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for run completion")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerIgnoresMalformedMessage(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := runner.NewService(nil, nil, eventBus, nil, 2, "test")

	w := NewWorker(eventBus, service)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	// A malformed payload must not take the worker down.
	eventBus.Publish(context.Background(), domain.TopicBatchSubmitted, []byte("{not json"))
	time.Sleep(50 * time.Millisecond)

	stats := w.GetStats()
	if stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 active subscriptions, got %d", stats.SubscriptionCount)
	}
}

func TestWorkerStartStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := runner.NewService(nil, nil, eventBus, nil, 2, "test")
	w := NewWorker(eventBus, service)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats = w.GetStats()
	if stats.SubscriptionCount != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
	}
}
