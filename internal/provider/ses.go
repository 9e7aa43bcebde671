package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const charsetUTF8 = "UTF-8"

// SESConfig holds the Amazon SES settings. Without static keys the default
// AWS credential chain is used.
type SESConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	FromAddress      string
	FromName         string
	ConfigurationSet string
}

// sesAPI is the part of *sesv2.Client the transport calls.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES delivers notifications through the Amazon SES v2 API.
type SES struct {
	client sesAPI
	cfg    SESConfig
	logger *slog.Logger
}

// NewSES loads the AWS configuration for cfg.Region and builds the client.
func NewSES(cfg SESConfig, log *slog.Logger) (*SES, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newSES(sesv2.NewFromConfig(awsCfg), cfg, log), nil
}

func newSES(client sesAPI, cfg SESConfig, log *slog.Logger) *SES {
	if log == nil {
		log = slog.Default()
	}
	return &SES{client: client, cfg: cfg, logger: log.With("transport", NameSES)}
}

func (s *SES) Name() string { return NameSES }

// Send reports API failures in the result rather than as an error.
func (s *SES) Send(ctx context.Context, n *notification.Notification) (notification.SendResult, error) {
	to := n.Recipient()
	out, err := s.client.SendEmail(ctx, s.input(n))
	if err != nil {
		s.logger.Error("failed to send email",
			"recipient", logger.RedactEmail(to.Address.String()), "error", err)
		return notification.SendResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	id := aws.ToString(out.MessageId)
	s.logger.Info("email sent", "recipient", logger.RedactEmail(to.Address.String()), "message_id", id)
	return notification.SendResult{Success: true, MessageID: id}, nil
}

func (s *SES) input(n *notification.Notification) *sesv2.SendEmailInput {
	content := n.Content()
	body := &types.Body{}
	part := &types.Content{Data: aws.String(content.Body), Charset: aws.String(charsetUTF8)}
	if content.IsHTML {
		body.Html = part
	} else {
		body.Text = part
	}

	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{n.Recipient().Formatted()}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(content.Subject), Charset: aws.String(charsetUTF8)},
				Body:    body,
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("notification_id"), Value: aws.String(n.NotificationID().String())},
			{Name: aws.String("priority"), Value: aws.String(n.Priority().String())},
		},
	}
	if s.cfg.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(s.cfg.ConfigurationSet)
	}
	return in
}
