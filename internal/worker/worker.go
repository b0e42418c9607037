// Package worker consumes ingested transactions from the event bus
// and runs them through the coordinator asynchronously.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Worker subscribes to the transaction-ingested topic and analyzes
// each message. Verdict persistence and result publication happen
// inside the coordinator; the worker only drives the pipeline.
type Worker struct {
	bus         domain.EventBus
	coordinator *coordinator.Coordinator
	logger      *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// New creates an async worker.
func New(bus domain.EventBus, c *coordinator.Coordinator, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		coordinator: c,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to the ingest topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicTransactionIngested, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		w.logger.Error("undecodable transaction message",
			"messageId", msg.ID, "error", err)
		return err
	}

	verdict, err := w.coordinator.Analyze(ctx, &tx)
	if err != nil {
		// Invalid input is a poison message, not a processing failure.
		// Log it and move on; returning the error would only make the
		// bus redeliver something that can never succeed.
		if errors.Is(err, domain.ErrInvalidInput) {
			w.logger.Warn("rejected transaction message",
				"messageId", msg.ID, "txId", tx.ID, "error", err)
			return nil
		}
		w.logger.Error("analysis failed",
			"messageId", msg.ID, "txId", tx.ID, "error", err)
		return err
	}

	w.logger.Debug("transaction analyzed",
		"txId", tx.ID,
		"classification", verdict.Classification,
		"score", verdict.Score)
	return nil
}

// Stop unsubscribes and waits for in-flight messages.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("unsubscribe failed",
				"topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats reports the worker's active subscriptions.
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
