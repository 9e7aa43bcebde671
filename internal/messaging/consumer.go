// Package messaging connects brokers to the email pipeline: it decodes
// inbound requests, drives the handler, decides acknowledgement and
// publishes status changes. Redis Streams and Kafka are supported.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const defaultStopTimeout = 30 * time.Second

// Consumer is a queue subscription. Start returns once consumption is
// running; Stop waits for in-flight deliveries until ctx is done.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Worker supervises a Consumer for the lifetime of a context.
type Worker struct {
	consumer    Consumer
	logger      *slog.Logger
	stopTimeout time.Duration
}

func NewWorker(consumer Consumer, log *slog.Logger, stopTimeout time.Duration) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &Worker{consumer: consumer, logger: log, stopTimeout: stopTimeout}
}

// Run starts the consumer, blocks until ctx is cancelled and then stops it.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("email worker starting")
	if err := w.consumer.Start(ctx); err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	<-ctx.Done()
	w.logger.Info("email worker stopping")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.stopTimeout)
	defer cancel()
	if err := w.consumer.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping consumer: %w", err)
	}
	w.logger.Info("email worker stopped")
	return nil
}
