package messaging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/service"
)

// Decision is what a consumer does with a delivery once it was dispatched.
type Decision int

const (
	// Ack removes the delivery from the queue.
	Ack Decision = iota
	// Requeue returns the delivery so another attempt can be made.
	Requeue
)

func (d Decision) String() string {
	if d == Requeue {
		return "requeue"
	}
	return "ack"
}

// EmailHandler is the handler chain a Dispatcher drives.
type EmailHandler = service.Handler[service.ProcessEmailCommand, struct{}]

// Dispatcher turns one raw delivery into a handler call and decides whether
// the delivery is acknowledged. Business failures are acknowledged; decode
// failures, handler errors and panics are re-queued.
type Dispatcher struct {
	handler EmailHandler
	broker  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(handler EmailHandler, broker string, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{handler: handler, broker: broker, logger: log, metrics: m}
}

// Dispatch handles body and never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling delivery", "broker", d.broker, "panic", r)
			decision = Requeue
		}
		d.metrics.Delivery(d.broker, decision.String())
	}()

	msg, err := DecodeSendEmail(body)
	if errors.Is(err, ErrEmptyPayload) {
		d.logger.Warn("skipping empty delivery", "broker", d.broker)
		return Ack
	}
	if err != nil {
		d.logger.Error("failed to decode delivery", "broker", d.broker, "error", err)
		return Requeue
	}

	res, err := d.handler.Handle(ctx, msg.Command())
	if err != nil {
		d.logger.Error("error processing delivery",
			"broker", d.broker, "notification_id", msg.NotificationID, "error", err)
		return Requeue
	}
	if e, failed := res.Err(); failed {
		d.logger.Warn("email processing failed",
			"notification_id", msg.NotificationID, "code", string(e.Code), "error", e.Message)
	}
	return Ack
}
