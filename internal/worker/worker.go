// Package worker provides async batch processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/runner"
)

// Worker consumes submitted batches from the EventBus and validates them
// asynchronously. Results are persisted and announced by the service; the
// worker's job is only to drain the submission topic.
type Worker struct {
	bus     domain.EventBus
	service *runner.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service *runner.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the batch submission and refdata reload topics.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBatchSubmitted, w.handleBatch)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	reloadSub, err := w.bus.Subscribe(w.ctx, domain.TopicRefdataReloaded, w.handleRefdataReloaded)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, reloadSub)

	slog.Info("worker started",
		"topics", []string{domain.TopicBatchSubmitted, domain.TopicRefdataReloaded},
	)
	return nil
}

// BatchMessage is the payload for an async batch submission.
type BatchMessage struct {
	BatchID  string            `json:"batchId"`
	TraceID  string            `json:"traceId,omitempty"`
	Learners []*domain.Learner `json:"learners"`
}

// handleBatch validates one submitted batch.
func (w *Worker) handleBatch(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var batch BatchMessage
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := batch.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing batch",
		"batch_id", batch.BatchID,
		"learners", len(batch.Learners),
		"trace_id", traceID,
	)

	run, err := w.service.ValidateBatch(ctx, batch.Learners, traceID)
	if err != nil {
		slog.Error("batch validation failed",
			"batch_id", batch.BatchID,
			"error", err,
		)
		return err
	}

	slog.Info("batch processed",
		"batch_id", batch.BatchID,
		"run_id", run.ID,
		"findings", len(run.Findings),
		"faults", len(run.Faults),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// handleRefdataReloaded rebuilds nothing locally; the service swaps indices
// itself. The handler exists so distributed deployments converge when
// another node announces a reload.
func (w *Worker) handleRefdataReloaded(ctx context.Context, msg *domain.Message) error {
	slog.Info("reference data reload announced", "message_id", msg.ID)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
