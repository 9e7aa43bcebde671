package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const (
	defaultReportAttempts = 3
	defaultReportBackoff  = 200 * time.Millisecond
	maxReportBackoff      = 5 * time.Second
)

// RetryingReporter retries failed status publishes with exponential backoff.
// Once attempts are used up the last error is returned, wrapping
// notification.ErrRetryExhausted, so the delivery is re-queued.
type RetryingReporter struct {
	next     notification.StatusReporter
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewRetryingReporter(
	next notification.StatusReporter,
	attempts int,
	backoff time.Duration,
	log *slog.Logger,
	m *metrics.Metrics,
) *RetryingReporter {
	if attempts <= 0 {
		attempts = defaultReportAttempts
	}
	if backoff <= 0 {
		backoff = defaultReportBackoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryingReporter{next: next, attempts: attempts, backoff: backoff, logger: log, metrics: m}
}

func (r *RetryingReporter) PublishStatus(
	ctx context.Context,
	id uuid.UUID,
	status notification.Status,
	errorMessage string,
) error {
	wait := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.next.PublishStatus(ctx, id, status, errorMessage)
		if lastErr == nil {
			r.metrics.StatusReport(status.String(), "ok")
			return nil
		}
		if attempt == r.attempts {
			break
		}

		r.metrics.StatusReport(status.String(), "retry")
		r.logger.Warn("status report failed, retrying",
			"notification_id", id, "status", status.String(),
			"attempt", attempt, "retry_in", wait, "error", lastErr)

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("status report for %s interrupted: %w (last error: %w)", id, err, lastErr)
		}
		wait = min(wait*2, maxReportBackoff)
	}

	r.metrics.StatusReport(status.String(), "exhausted")
	return fmt.Errorf("%w: status %s for %s after %d attempts: %w",
		notification.ErrRetryExhausted, status, id, r.attempts, lastErr)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
