package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppConfig{LogLevel: tt.logLevel}
			assert.Equal(t, tt.want, c.SlogLevel())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_CONSUMER", "worker-7")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, MessagingRedis, c.MessagingProvider)
	assert.Equal(t, StatusPublisherBroker, c.StatusPublisher)
	assert.Equal(t, 10, c.Prefetch)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, "notifications.email", c.Redis.Stream)
	assert.Equal(t, "notifications.status", c.Redis.StatusStream)
	assert.Equal(t, "email-worker", c.Redis.Group)
	assert.Equal(t, "worker-7", c.Redis.Consumer)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "console", c.EmailProvider)
	assert.Equal(t, "localhost", c.SMTP.Host)
	assert.Equal(t, 1025, c.SMTP.Port)
	assert.Equal(t, "none", c.SMTP.Encryption)
	assert.Equal(t, "noreply@notification.local", c.SMTP.FromAddress)
	assert.Equal(t, "Notification System", c.SMTP.FromName)
	assert.Equal(t, 30*time.Second, c.SMTP.Timeout)
	assert.Equal(t, "us-east-1", c.SES.Region)
	assert.Equal(t, "./data/mailworker.db", c.DatabasePath)
	assert.Equal(t, 168*time.Hour, c.DeliveryLogRetention)
	assert.True(t, c.IdempotencyEnabled)
	assert.Equal(t, 24*time.Hour, c.IdempotencyTTL)
	assert.Equal(t, 3, c.StatusReportAttempts)
	assert.Equal(t, 200*time.Millisecond, c.StatusReportBackoff)
	assert.Equal(t, 8080, c.HTTPPort)
	assert.Empty(t, c.OTLPEndpoint)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MESSAGING_PROVIDER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_GROUP_ID", "mail")
	t.Setenv("EMAIL_PROVIDER", "smtp")
	t.Setenv("SMTP_HOST", "mail.internal")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_ENCRYPTION", "starttls")
	t.Setenv("SMTP_TIMEOUT", "5s")
	t.Setenv("SES_CONFIGURATION_SET", "tracking")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("IDEMPOTENCY_ENABLED", "false")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, MessagingKafka, c.MessagingProvider)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "mail", c.KafkaConfig().GroupID)
	assert.Equal(t, 10, c.KafkaConfig().Prefetch)
	assert.Equal(t, 0, c.HTTPPort)
	assert.False(t, c.IdempotencyEnabled)
	assert.NotEmpty(t, c.Redis.Consumer, "consumer falls back to the host name")

	p := c.ProviderConfig()
	assert.Equal(t, "mail.internal", p.SMTP.Host)
	assert.Equal(t, 587, p.SMTP.Port)
	assert.Equal(t, "starttls", p.SMTP.Encryption)
	assert.Equal(t, 5*time.Second, p.SMTP.Timeout)
	assert.Equal(t, "tracking", p.SES.ConfigurationSet)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"MESSAGING_PROVIDER", "rabbitmq", "MESSAGING_PROVIDER"},
		{"STATUS_PUBLISHER", "webhook", "STATUS_PUBLISHER"},
		{"EMAIL_PROVIDER", "pigeon", "EMAIL_PROVIDER"},
		{"SMTP_ENCRYPTION", "tls", "SMTP_ENCRYPTION"},
		{"LOG_FORMAT", "xml", "LOG_FORMAT"},
		{"PREFETCH", "0", "PREFETCH"},
		{"HTTP_PORT", "70000", "HTTP_PORT"},
		{"SMTP_PORT", "not-a-number", "SMTP_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAppConfig_RedisSettings(t *testing.T) {
	c := &AppConfig{
		Prefetch: 4,
		Redis:    RedisConfig{Addr: "r:6379", Password: "pw", DB: 2, Stream: "s", Group: "g", Consumer: "c"},
	}
	opts := c.RedisOptions()
	assert.Equal(t, "r:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	rc := c.RedisConsumerConfig()
	assert.Equal(t, "s", rc.Stream)
	assert.Equal(t, "g", rc.Group)
	assert.Equal(t, "c", rc.Consumer)
	assert.Equal(t, 4, rc.Prefetch)
}
