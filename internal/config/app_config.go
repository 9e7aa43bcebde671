package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/shaharia-lab/mailworker/internal/logger"
	"github.com/shaharia-lab/mailworker/internal/messaging"
	"github.com/shaharia-lab/mailworker/internal/provider"
)

// Accepted values for the enum settings.
const (
	MessagingRedis = "redis"
	MessagingKafka = "kafka"

	StatusPublisherBroker  = "broker"
	StatusPublisherConsole = "console"
)

// AppConfig holds all worker configuration loaded from environment variables.
type AppConfig struct {
	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	// LogFile enables rotated file logging when set.
	LogFile string `envconfig:"LOG_FILE"`

	// MessagingProvider selects the broker: redis or kafka.
	MessagingProvider string `envconfig:"MESSAGING_PROVIDER" default:"redis"`
	// StatusPublisher is "broker" to publish status on the broker, or
	// "console" to log it.
	StatusPublisher string `envconfig:"STATUS_PUBLISHER" default:"broker"`
	// Prefetch bounds in-flight deliveries per consumer.
	Prefetch int `envconfig:"PREFETCH" default:"10"`

	Redis RedisConfig `envconfig:"REDIS"`
	Kafka KafkaConfig `envconfig:"KAFKA"`

	// EmailProvider selects the transport: console, smtp or ses.
	EmailProvider string    `envconfig:"EMAIL_PROVIDER" default:"console"`
	SMTP          SMTPConfig `envconfig:"SMTP"`
	SES           SESConfig  `envconfig:"SES"`

	DatabasePath         string        `envconfig:"DATABASE_PATH" default:"./data/mailworker.db"`
	DeliveryLogRetention time.Duration `envconfig:"DELIVERY_LOG_RETENTION" default:"168h"`

	IdempotencyEnabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	StatusReportAttempts int           `envconfig:"STATUS_REPORT_ATTEMPTS" default:"3"`
	StatusReportBackoff  time.Duration `envconfig:"STATUS_REPORT_BACKOFF" default:"200ms"`

	// HTTPPort serves health, metrics and the delivery log. 0 disables it.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type RedisConfig struct {
	Addr         string `envconfig:"ADDR" default:"localhost:6379"`
	Password     string `envconfig:"PASSWORD"`
	DB           int    `envconfig:"DB" default:"0"`
	Stream       string `envconfig:"STREAM" default:"notifications.email"`
	StatusStream string `envconfig:"STATUS_STREAM" default:"notifications.status"`
	Group        string `envconfig:"GROUP" default:"email-worker"`
	// Consumer defaults to the host name.
	Consumer string `envconfig:"CONSUMER"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"BROKERS" default:"localhost:9092"`
	Topic       string   `envconfig:"TOPIC" default:"notifications.email"`
	StatusTopic string   `envconfig:"STATUS_TOPIC" default:"notifications.status"`
	GroupID     string   `envconfig:"GROUP_ID" default:"email-worker"`
}

type SMTPConfig struct {
	Host        string        `envconfig:"HOST" default:"localhost"`
	Port        int           `envconfig:"PORT" default:"1025"`
	Username    string        `envconfig:"USERNAME"`
	Password    string        `envconfig:"PASSWORD"`
	Encryption  string        `envconfig:"ENCRYPTION" default:"none"`
	FromAddress string        `envconfig:"FROM_ADDRESS" default:"noreply@notification.local"`
	FromName    string        `envconfig:"FROM_NAME" default:"Notification System"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

type SESConfig struct {
	Region           string `envconfig:"REGION" default:"us-east-1"`
	AccessKeyID      string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey  string `envconfig:"SECRET_ACCESS_KEY"`
	FromAddress      string `envconfig:"FROM_ADDRESS"`
	FromName         string `envconfig:"FROM_NAME"`
	ConfigurationSet string `envconfig:"CONFIGURATION_SET"`
}

// Load reads AppConfig from environment variables using envconfig and
// validates it.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.Redis.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "mailworker"
		}
		c.Redis.Consumer = host
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the enum settings and numeric bounds.
func (c *AppConfig) Validate() error {
	checks := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"}},
		{"LOG_FORMAT", c.LogFormat, []string{"json", "text"}},
		{"MESSAGING_PROVIDER", c.MessagingProvider, []string{MessagingRedis, MessagingKafka}},
		{"STATUS_PUBLISHER", c.StatusPublisher, []string{StatusPublisherBroker, StatusPublisherConsole}},
		{"EMAIL_PROVIDER", c.EmailProvider, []string{provider.NameConsole, provider.NameSMTP, provider.NameSES}},
		{"SMTP_ENCRYPTION", c.SMTP.Encryption, []string{"none", "starttls", "ssl_tls"}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return fmt.Errorf("invalid %s %q: must be one of %v", chk.name, chk.value, chk.allowed)
		}
	}
	if c.Prefetch <= 0 {
		return fmt.Errorf("invalid PREFETCH %d: must be positive", c.Prefetch)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.MessagingProvider == MessagingKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required for the kafka provider")
	}
	return nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	lvl, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// LoggerOptions returns the logging settings.
func (c *AppConfig) LoggerOptions() logger.Options {
	return logger.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}

// ProviderConfig returns the transport settings.
func (c *AppConfig) ProviderConfig() provider.Config {
	return provider.Config{
		SMTP: provider.SMTPConfig(c.SMTP),
		SES:  provider.SESConfig(c.SES),
	}
}

// RedisOptions returns go-redis client options.
func (c *AppConfig) RedisOptions() *redis.Options {
	return &redis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB}
}

// RedisConsumerConfig returns the stream consumer settings.
func (c *AppConfig) RedisConsumerConfig() messaging.RedisConsumerConfig {
	return messaging.RedisConsumerConfig{
		Stream:   c.Redis.Stream,
		Group:    c.Redis.Group,
		Consumer: c.Redis.Consumer,
		Prefetch: c.Prefetch,
	}
}

// KafkaConfig returns the Kafka consumer and publisher settings.
func (c *AppConfig) KafkaConfig() messaging.KafkaConfig {
	return messaging.KafkaConfig{
		Brokers:     c.Kafka.Brokers,
		Topic:       c.Kafka.Topic,
		StatusTopic: c.Kafka.StatusTopic,
		GroupID:     c.Kafka.GroupID,
		Prefetch:    c.Prefetch,
	}
}
