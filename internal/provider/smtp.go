package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const headerNotificationID = "X-Notification-Id"

// SMTPConfig holds the SMTP server and sender settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Encryption is one of "none", "starttls" or "ssl_tls".
	Encryption  string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

// SMTP delivers notifications through an SMTP relay using go-mail. Each
// Send opens its own connection, so the transport is safe for concurrent use.
type SMTP struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTP(cfg SMTPConfig, log *slog.Logger) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &SMTP{cfg: cfg, logger: log.With("transport", NameSMTP)}
}

func (s *SMTP) Name() string { return NameSMTP }

// Send never returns an error: every failure is reported in the result.
func (s *SMTP) Send(ctx context.Context, n *notification.Notification) (notification.SendResult, error) {
	to := n.Recipient()
	m, err := s.message(n)
	if err != nil {
		return s.failed(to, err), nil
	}

	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return s.failed(to, err), nil
	}

	s.logger.Debug("connecting to smtp server", "host", s.cfg.Host, "port", s.cfg.Port)
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return s.failed(to, err), nil
	}

	id := m.GetMessageID()
	s.logger.Info("email sent", "recipient", logger.RedactEmail(to.Address.String()), "message_id", id)
	return notification.SendResult{Success: true, MessageID: id}, nil
}

func (s *SMTP) message(n *notification.Notification) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
		return nil, err
	}
	to := n.Recipient()
	if err := m.AddToFormat(to.Name, to.Address.String()); err != nil {
		return nil, err
	}

	content := n.Content()
	m.Subject(content.Subject)
	if content.IsHTML {
		m.SetBodyString(mail.TypeTextHTML, content.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, content.Body)
	}

	m.SetImportance(importance(n.Priority()))
	m.SetGenHeader(headerNotificationID, n.NotificationID().String())
	m.SetMessageID()
	m.SetDate()
	return m, nil
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(s.cfg.Encryption)),
	}
	if s.cfg.Encryption == "ssl_tls" {
		opts = append(opts, mail.WithSSL())
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTP) failed(to notification.Recipient, err error) notification.SendResult {
	s.logger.Error("failed to send email",
		"recipient", logger.RedactEmail(to.Address.String()), "error", err)
	return notification.SendResult{Success: false, ErrorMessage: err.Error()}
}

// importance maps a notification priority onto the message importance headers.
func importance(p notification.Priority) mail.Importance {
	switch p {
	case notification.PriorityLow:
		return mail.ImportanceNonUrgent
	case notification.PriorityHigh, notification.PriorityCritical:
		return mail.ImportanceUrgent
	default:
		return mail.ImportanceNormal
	}
}

// tlsPolicyFromEncryption converts the encryption setting to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
