// Package provider holds the outbound email transports: SMTP, Amazon SES
// and a console transport for local runs.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// Transport names accepted by New.
const (
	NameConsole = "console"
	NameSMTP    = "smtp"
	NameSES     = "ses"
)

// Config carries the settings for every transport; only the selected one is read.
type Config struct {
	SMTP SMTPConfig
	SES  SESConfig
}

// New builds the transport registered under name.
func New(name string, cfg Config, log *slog.Logger) (notification.Transport, error) {
	switch name {
	case NameConsole, "":
		return NewConsole(log), nil
	case NameSMTP:
		return NewSMTP(cfg.SMTP, log), nil
	case NameSES:
		return NewSES(cfg.SES, log)
	default:
		return nil, fmt.Errorf("unknown email provider %q", name)
	}
}
