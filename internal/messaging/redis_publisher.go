package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const (
	contentTypeJSON     = "application/json"
	defaultStatusMaxLen = 100000
)

// RedisStatusPublisher appends status messages to a Redis stream. The
// connection is established on first use; concurrent first calls share a
// single attempt.
type RedisStatusPublisher struct {
	connect func(ctx context.Context) (redis.UniversalClient, error)
	stream  string
	maxLen  int64
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	client redis.UniversalClient
}

// NewRedisStatusPublisher dials opts lazily.
func NewRedisStatusPublisher(opts *redis.Options, stream string, log *slog.Logger, m *metrics.Metrics) *RedisStatusPublisher {
	return newRedisStatusPublisher(func(ctx context.Context) (redis.UniversalClient, error) {
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			return nil, errors.Join(err, c.Close())
		}
		return c, nil
	}, stream, log, m)
}

// NewRedisStatusPublisherWithClient publishes through an existing client.
func NewRedisStatusPublisherWithClient(client redis.UniversalClient, stream string, log *slog.Logger, m *metrics.Metrics) *RedisStatusPublisher {
	p := newRedisStatusPublisher(nil, stream, log, m)
	p.client = client
	return p
}

func newRedisStatusPublisher(
	connect func(ctx context.Context) (redis.UniversalClient, error),
	stream string,
	log *slog.Logger,
	m *metrics.Metrics,
) *RedisStatusPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStatusPublisher{
		connect: connect,
		stream:  stream,
		maxLen:  defaultStatusMaxLen,
		logger:  log,
		metrics: m,
	}
}

func (p *RedisStatusPublisher) PublishStatus(
	ctx context.Context,
	id uuid.UUID,
	status notification.Status,
	errorMessage string,
) error {
	client, err := p.conn(ctx)
	if err != nil {
		return err
	}

	body, err := NewStatusMessage(id, status, errorMessage).Encode()
	if err != nil {
		return err
	}
	err = client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"messageId":   uuid.NewString(),
			"contentType": contentTypeJSON,
			payloadField:  string(body),
		},
	}).Err()
	if err != nil {
		p.metrics.BrokerError(brokerRedis, "publish", classifyError(err))
		return fmt.Errorf("publishing status to %q: %w", p.stream, err)
	}

	p.logger.Debug("published status update", "notification_id", id, "status", status.String())
	return nil
}

// conn returns the shared client, connecting under the mutex if needed.
func (p *RedisStatusPublisher) conn(ctx context.Context) (redis.UniversalClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.connect(ctx)
	if err != nil {
		p.metrics.BrokerError(brokerRedis, "connect", classifyError(err))
		return nil, fmt.Errorf("connecting status publisher: %w", err)
	}
	p.client = c
	p.logger.Info("redis status publisher connected", "stream", p.stream)
	return c, nil
}

// Close releases a connection the publisher opened itself.
func (p *RedisStatusPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil || p.connect == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
