package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/mailworker/internal/config"
	"github.com/shaharia-lab/mailworker/internal/messaging"
	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/service"
)

const (
	sendSource       = "mailworker-cli"
	defaultSubject   = "Test Email"
	sendTimeout      = 10 * time.Second
	metadataSource   = "source"
	metadataSentTime = "timestamp"
)

// sendRequest is the file form of a send request. JSON files parse too, as
// JSON is valid YAML.
type sendRequest struct {
	NotificationID   string            `yaml:"notificationId"`
	RecipientAddress string            `yaml:"recipientAddress"`
	RecipientName    string            `yaml:"recipientName"`
	Subject          string            `yaml:"subject"`
	Body             string            `yaml:"body"`
	IsHTML           bool              `yaml:"isHtml"`
	Priority         int               `yaml:"priority"`
	Metadata         map[string]string `yaml:"metadata"`
}

// NewSendCmd returns the "send" subcommand that publishes one email request
// to the inbound queue.
func NewSendCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		file string
		req  = sendRequest{Subject: defaultSubject, Priority: int(notification.PriorityNormal)}
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a test email request to the queue",
		Long: `Publish one email request to the configured broker. The request is built
from a YAML or JSON file, from flags, or both; flags win over file values.
"source" and "timestamp" metadata are added to every request.`,
		Example: `  mailworker send --to dev@example.com --body "hello"
  mailworker send --file request.yaml --priority 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			merged := req
			if file != "" {
				fromFile, err := readSendRequest(file)
				if err != nil {
					return err
				}
				merged = overrideFromFlags(cmd, fromFile, req)
			}

			msg, err := buildSendMessage(merged, time.Now().UTC())
			if err != nil {
				return err
			}

			pub := newEmailPublisher(cfg)
			defer pub.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
			defer cancel()
			entryID, err := pub.PublishEmail(ctx, msg)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderSendSummary(cfg, msg, entryID))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML or JSON file with the request")
	f.StringVar(&req.NotificationID, "id", "", "notification id (random when empty)")
	f.StringVar(&req.RecipientAddress, "to", "", "recipient email address")
	f.StringVar(&req.RecipientName, "name", "", "recipient display name")
	f.StringVar(&req.Subject, "subject", req.Subject, "email subject")
	f.StringVar(&req.Body, "body", "", "email body")
	f.BoolVar(&req.IsHTML, "html", false, "treat the body as HTML")
	f.IntVar(&req.Priority, "priority", req.Priority, "priority: 0=Low 1=Normal 2=High 3=Critical")
	f.StringToStringVar(&req.Metadata, "meta", nil, "extra metadata as key=value pairs")

	return cmd
}

func readSendRequest(path string) (sendRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sendRequest{}, fmt.Errorf("reading request file: %w", err)
	}
	req := sendRequest{Subject: defaultSubject, Priority: int(notification.PriorityNormal)}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return sendRequest{}, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	return req, nil
}

// overrideFromFlags copies the flags the user set explicitly onto base.
func overrideFromFlags(cmd *cobra.Command, base, flags sendRequest) sendRequest {
	changed := cmd.Flags().Changed
	if changed("id") {
		base.NotificationID = flags.NotificationID
	}
	if changed("to") {
		base.RecipientAddress = flags.RecipientAddress
	}
	if changed("name") {
		base.RecipientName = flags.RecipientName
	}
	if changed("subject") {
		base.Subject = flags.Subject
	}
	if changed("body") {
		base.Body = flags.Body
	}
	if changed("html") {
		base.IsHTML = flags.IsHTML
	}
	if changed("priority") {
		base.Priority = flags.Priority
	}
	if changed("meta") {
		if base.Metadata == nil {
			base.Metadata = map[string]string{}
		}
		for k, v := range flags.Metadata {
			base.Metadata[k] = v
		}
	}
	return base
}

// buildSendMessage validates req with the worker's own rules and stamps the
// source and timestamp metadata.
func buildSendMessage(req sendRequest, now time.Time) (messaging.SendEmailMessage, error) {
	id := uuid.New()
	if req.NotificationID != "" {
		parsed, err := uuid.Parse(req.NotificationID)
		if err != nil {
			return messaging.SendEmailMessage{}, fmt.Errorf("invalid notification id %q: %w", req.NotificationID, err)
		}
		id = parsed
	}

	meta := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta[metadataSource] = sendSource
	meta[metadataSentTime] = now.Format(time.RFC3339Nano)

	cmd := service.ProcessEmailCommand{
		NotificationID:   id,
		RecipientAddress: strings.TrimSpace(req.RecipientAddress),
		RecipientName:    req.RecipientName,
		Subject:          req.Subject,
		Body:             req.Body,
		IsHTML:           req.IsHTML,
		Priority:         req.Priority,
		Metadata:         meta,
	}
	if msgs := service.NewProcessEmailValidator().Validate(context.Background(), cmd); len(msgs) > 0 {
		return messaging.SendEmailMessage{}, fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}
	return messaging.FromCommand(cmd), nil
}

func newEmailPublisher(cfg *config.AppConfig) messaging.EmailPublisher {
	if cfg.MessagingProvider == config.MessagingKafka {
		return messaging.NewKafkaEmailPublisher(cfg.KafkaConfig())
	}
	return messaging.NewRedisEmailPublisher(redis.NewClient(cfg.RedisOptions()), cfg.Redis.Stream)
}

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	summaryBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// renderSendSummary formats what was published as a bordered box.
func renderSendSummary(cfg *config.AppConfig, msg messaging.SendEmailMessage, entryID string) string {
	destination := cfg.Redis.Stream
	if cfg.MessagingProvider == config.MessagingKafka {
		destination = cfg.Kafka.Topic
	}
	subject := ""
	if msg.Subject != nil {
		subject = *msg.Subject
	}

	rows := [][2]string{
		{"Notification", msg.NotificationID.String()},
		{"Recipient", msg.RecipientAddress},
		{"Subject", subject},
		{"Priority", priorityLabel(msg.Priority)},
		{"HTML", strconv.FormatBool(msg.IsHTML)},
		{"Broker", cfg.MessagingProvider + " " + destination},
		{"Entry", entryID},
	}
	lines := []string{summaryTitle.Render("Email request published")}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, summaryLabel.Render(r[0]), r[1]))
	}
	return summaryBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func priorityLabel(p int) string {
	return fmt.Sprintf("%d (%s)", p, notification.Priority(p).String())
}
