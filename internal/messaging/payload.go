package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/service"
)

var (
	// ErrDecode marks an inbound payload that could not be parsed.
	ErrDecode = errors.New("undecodable payload")
	// ErrEmptyPayload marks a payload that parsed to JSON null.
	ErrEmptyPayload = errors.New("empty payload")
)

// SendEmailMessage is the inbound request published to the email queue.
type SendEmailMessage struct {
	NotificationID   uuid.UUID         `json:"notificationId"`
	RecipientAddress string            `json:"recipientAddress"`
	RecipientName    *string           `json:"recipientName"`
	Subject          *string           `json:"subject"`
	Body             string            `json:"body"`
	IsHTML           bool              `json:"isHtml"`
	Priority         int               `json:"priority"`
	Metadata         map[string]string `json:"metadata"`
}

// DecodeSendEmail parses an inbound payload. Field names match case-insensitively.
func DecodeSendEmail(data []byte) (SendEmailMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return SendEmailMessage{}, fmt.Errorf("%w: no content", ErrDecode)
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return SendEmailMessage{}, ErrEmptyPayload
	}
	var m SendEmailMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return SendEmailMessage{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return m, nil
}

// Encode serializes m with camelCase field names.
func (m SendEmailMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding send email message: %w", err)
	}
	return data, nil
}

// Command converts m to the command handled by the service layer.
func (m SendEmailMessage) Command() service.ProcessEmailCommand {
	return service.ProcessEmailCommand{
		NotificationID:   m.NotificationID,
		RecipientAddress: m.RecipientAddress,
		RecipientName:    deref(m.RecipientName),
		Subject:          deref(m.Subject),
		Body:             m.Body,
		IsHTML:           m.IsHTML,
		Priority:         m.Priority,
		Metadata:         m.Metadata,
	}
}

// FromCommand builds the wire message for cmd. Empty optional strings
// become null.
func FromCommand(cmd service.ProcessEmailCommand) SendEmailMessage {
	return SendEmailMessage{
		NotificationID:   cmd.NotificationID,
		RecipientAddress: cmd.RecipientAddress,
		RecipientName:    ref(cmd.RecipientName),
		Subject:          ref(cmd.Subject),
		Body:             cmd.Body,
		IsHTML:           cmd.IsHTML,
		Priority:         cmd.Priority,
		Metadata:         cmd.Metadata,
	}
}

// StatusMessage is the payload published on the status channel.
type StatusMessage struct {
	NotificationID uuid.UUID `json:"notificationId"`
	Status         int       `json:"status"`
	ErrorMessage   *string   `json:"errorMessage"`
	ProcessedAt    time.Time `json:"processedAt"`
}

// NewStatusMessage stamps a status change with the current UTC time.
func NewStatusMessage(id uuid.UUID, status notification.Status, errorMessage string) StatusMessage {
	return StatusMessage{
		NotificationID: id,
		Status:         int(status),
		ErrorMessage:   ref(errorMessage),
		ProcessedAt:    time.Now().UTC(),
	}
}

func (m StatusMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding status message: %w", err)
	}
	return data, nil
}

// DecodeStatus parses a status payload.
func DecodeStatus(data []byte) (StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return StatusMessage{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
