package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

// Console logs each email instead of sending it and always succeeds.
type Console struct {
	logger *slog.Logger
}

func NewConsole(log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{logger: log.With("transport", NameConsole)}
}

func (c *Console) Name() string { return NameConsole }

func (c *Console) Send(_ context.Context, n *notification.Notification) (notification.SendResult, error) {
	id := uuid.NewString()
	content := n.Content()
	c.logger.Info("email (console transport)",
		"message_id", id,
		"notification_id", n.NotificationID(),
		"recipient", logger.RedactEmail(n.Recipient().Address.String()),
		"subject", content.Subject,
		"html", content.IsHTML,
		"priority", n.Priority().String(),
		"body_length", len(content.Body),
	)
	return notification.SendResult{Success: true, MessageID: id}, nil
}
