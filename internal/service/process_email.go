package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const (
	unknownError         = "Unknown error"
	defaultReportTimeout = 10 * time.Second
	tracerName           = "github.com/shaharia-lab/mailworker/internal/service"
)

// ProcessEmailCommand asks for one email to be sent. The validate tags are
// the structural rules applied by ProcessEmailValidator.
type ProcessEmailCommand struct {
	NotificationID   uuid.UUID `validate:"required"`
	RecipientAddress string    `validate:"required,email"`
	RecipientName    string
	Subject          string
	Body             string `validate:"required"`
	IsHTML           bool
	Priority         int `validate:"min=0,max=3"`
	Metadata         map[string]string
}

// ProcessEmailHandler drives a notification from receipt to Sent or Failed,
// reporting each status change before moving on.
type ProcessEmailHandler struct {
	transport     notification.Transport
	reporter      notification.StatusReporter
	logger        *slog.Logger
	seen          IdempotencyStore
	events        EventPublisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	reportTimeout time.Duration
}

// HandlerOption configures a ProcessEmailHandler.
type HandlerOption func(*ProcessEmailHandler)

// WithIdempotency skips commands whose correlation id was already sent.
func WithIdempotency(store IdempotencyStore) HandlerOption {
	return func(h *ProcessEmailHandler) { h.seen = store }
}

// WithEventPublisher forwards lifecycle events after each handling call.
func WithEventPublisher(p EventPublisher) HandlerOption {
	return func(h *ProcessEmailHandler) { h.events = p }
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *ProcessEmailHandler) { h.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) HandlerOption {
	return func(h *ProcessEmailHandler) { h.tracer = tp.Tracer(tracerName) }
}

// WithReportTimeout bounds the Failed report sent after ctx was cancelled.
func WithReportTimeout(d time.Duration) HandlerOption {
	return func(h *ProcessEmailHandler) {
		if d > 0 {
			h.reportTimeout = d
		}
	}
}

func NewProcessEmailHandler(
	transport notification.Transport,
	reporter notification.StatusReporter,
	log *slog.Logger,
	opts ...HandlerOption,
) *ProcessEmailHandler {
	h := &ProcessEmailHandler{
		transport:     transport,
		reporter:      reporter,
		logger:        log,
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
		reportTimeout: defaultReportTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Handle processes cmd. Business failures come back as a failed Result; the
// error return is reserved for status reports that could not be delivered.
func (h *ProcessEmailHandler) Handle(ctx context.Context, cmd ProcessEmailCommand) (res Result[struct{}], err error) {
	ctx, span := h.tracer.Start(ctx, "ProcessEmail", trace.WithAttributes(
		attribute.String("notification.id", cmd.NotificationID.String()),
		attribute.Int("notification.priority", cmd.Priority),
	))
	start := time.Now()
	var events []notification.Event
	defer func() {
		if h.events != nil && len(events) > 0 {
			h.events.Publish(events...)
		}
		code := string(res.Code())
		if err != nil {
			code = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if res.IsFailure() {
			span.SetStatus(codes.Error, code)
		}
		h.metrics.ObserveProcessing(code, time.Since(start))
		span.End()
	}()

	log := h.logger.With("notification_id", cmd.NotificationID)
	log.Info("processing email notification", "recipient", logger.RedactEmail(cmd.RecipientAddress))

	if h.alreadySent(ctx, log, cmd.NotificationID) {
		h.metrics.DuplicateSkipped()
		log.Info("skipping email notification already sent")
		return Failure[struct{}](ErrAlreadyProcessed(cmd.NotificationID)), nil
	}

	n, ev, err := notification.New(notification.Params{
		NotificationID: cmd.NotificationID,
		RecipientEmail: cmd.RecipientAddress,
		RecipientName:  cmd.RecipientName,
		Subject:        cmd.Subject,
		Body:           cmd.Body,
		IsHTML:         cmd.IsHTML,
		Priority:       notification.Priority(cmd.Priority),
		Metadata:       cmd.Metadata,
	})
	if err != nil {
		log.Error("invalid email data", "error", err)
		if rerr := h.report(ctx, cmd.NotificationID, notification.StatusFailed, err.Error()); rerr != nil {
			return Result[struct{}]{}, rerr
		}
		return Failure[struct{}](ErrInvalid("Email", err.Error())), nil
	}
	events = append(events, ev)

	ev, err = n.MarkProcessing()
	if err != nil {
		return Failure[struct{}](ErrInvalidStatus(n.Status().String(), notification.StatusPending.String())), nil
	}
	events = append(events, ev)
	if err := h.report(ctx, n.NotificationID(), notification.StatusProcessing, ""); err != nil {
		return Result[struct{}]{}, err
	}

	sent, sendErr := h.transport.Send(ctx, n)
	if sendErr == nil && sent.Success {
		ev, err = n.MarkSent(sent.MessageID)
		if err != nil {
			return Failure[struct{}](ErrInvalidStatus(n.Status().String(), notification.StatusProcessing.String())), nil
		}
		events = append(events, ev)
		h.metrics.TransportSend(h.transport.Name(), "sent")

		if err := h.report(ctx, n.NotificationID(), notification.StatusSent, ""); err != nil {
			return Result[struct{}]{}, err
		}
		h.rememberSent(ctx, log, n.NotificationID())
		log.Info("email sent", "message_id", sent.MessageID, "transport", h.transport.Name())
		return Ok(), nil
	}

	reason := sent.ErrorMessage
	outcome := "rejected"
	if sendErr != nil {
		reason = sendErr.Error()
		outcome = "error"
	}
	if reason == "" {
		reason = unknownError
	}
	h.metrics.TransportSend(h.transport.Name(), outcome)
	events = append(events, n.MarkFailed(reason))
	log.Warn("email send failed", "error", reason, "retry_count", n.RetryCount())

	if err := h.report(ctx, n.NotificationID(), notification.StatusFailed, reason); err != nil {
		return Result[struct{}]{}, err
	}
	return Failure[struct{}](ErrSendFailed(reason)), nil
}

// report publishes a status change. A cancelled ctx still gets its terminal
// report through a detached context bounded by reportTimeout.
func (h *ProcessEmailHandler) report(ctx context.Context, id uuid.UUID, status notification.Status, msg string) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), h.reportTimeout)
		defer cancel()
	}
	if err := h.reporter.PublishStatus(ctx, id, status, msg); err != nil {
		return fmt.Errorf("reporting status %s for notification %s: %w", status, id, err)
	}
	return nil
}

func (h *ProcessEmailHandler) alreadySent(ctx context.Context, log *slog.Logger, id uuid.UUID) bool {
	if h.seen == nil {
		return false
	}
	sent, err := h.seen.IsSent(ctx, id)
	if err != nil {
		log.Warn("idempotency lookup failed, processing anyway", "error", err)
		return false
	}
	return sent
}

func (h *ProcessEmailHandler) rememberSent(ctx context.Context, log *slog.Logger, id uuid.UUID) {
	if h.seen == nil {
		return
	}
	if err := h.seen.MarkSent(ctx, id); err != nil {
		log.Warn("failed to record sent notification", "error", err)
	}
}
