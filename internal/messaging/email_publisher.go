package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// EmailPublisher puts send requests on the inbound queue. The worker never
// uses it; it backs the send command and integration tooling.
type EmailPublisher interface {
	// PublishEmail enqueues msg and returns the broker's id for the entry.
	PublishEmail(ctx context.Context, msg SendEmailMessage) (string, error)
	Close() error
}

// RedisEmailPublisher appends requests to the inbound stream.
type RedisEmailPublisher struct {
	client redis.UniversalClient
	stream string
}

func NewRedisEmailPublisher(client redis.UniversalClient, stream string) *RedisEmailPublisher {
	return &RedisEmailPublisher{client: client, stream: stream}
}

func (p *RedisEmailPublisher) PublishEmail(ctx context.Context, msg SendEmailMessage) (string, error) {
	body, err := msg.Encode()
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"messageId":   uuid.NewString(),
			"contentType": contentTypeJSON,
			payloadField:  string(body),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publishing email to %q: %w", p.stream, err)
	}
	return id, nil
}

func (p *RedisEmailPublisher) Close() error {
	return p.client.Close()
}

// KafkaEmailPublisher produces requests to the inbound topic, keyed by
// notification id.
type KafkaEmailPublisher struct {
	writer kafkaWriter
	topic  string
}

func NewKafkaEmailPublisher(cfg KafkaConfig) *KafkaEmailPublisher {
	return newKafkaEmailPublisher(newKafkaWriter(cfg.Brokers, cfg.Topic, cfg.WriteTimeout), cfg.Topic)
}

func newKafkaEmailPublisher(w kafkaWriter, topic string) *KafkaEmailPublisher {
	return &KafkaEmailPublisher{writer: w, topic: topic}
}

func (p *KafkaEmailPublisher) PublishEmail(ctx context.Context, msg SendEmailMessage) (string, error) {
	body, err := msg.Encode()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.NotificationID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: headerMessageID, Value: []byte(id)},
			{Key: headerContentType, Value: []byte(contentTypeJSON)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publishing email to %q (%s): %w", p.topic, classifyError(err), err)
	}
	return id, nil
}

func (p *KafkaEmailPublisher) Close() error {
	return p.writer.Close()
}
