package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// ConsoleStatusPublisher logs status changes instead of publishing them.
type ConsoleStatusPublisher struct {
	logger *slog.Logger
}

func NewConsoleStatusPublisher(log *slog.Logger) *ConsoleStatusPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &ConsoleStatusPublisher{logger: log}
}

func (p *ConsoleStatusPublisher) PublishStatus(
	_ context.Context,
	id uuid.UUID,
	status notification.Status,
	errorMessage string,
) error {
	attrs := []any{"notification_id", id, "status", status.String()}
	if errorMessage != "" {
		attrs = append(attrs, "error", errorMessage)
	}
	p.logger.Info("status update", attrs...)
	return nil
}
