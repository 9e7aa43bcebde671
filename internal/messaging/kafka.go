package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/notification"
)

const (
	brokerKafka = "kafka"

	headerMessageID   = "message-id"
	headerContentType = "content-type"
	headerRedelivery  = "redelivery-count"

	maxRequeueBackoff = 30 * time.Second
)

// kafkaReader is the subset of *kafka.Reader the consumer needs.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaWriter is the subset of *kafka.Writer the adapters need.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka consumer and status publisher.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	StatusTopic string
	GroupID     string
	// Prefetch is the reader's internal queue capacity. Default 10.
	Prefetch     int
	WriteTimeout time.Duration
}

// KafkaConsumer reads the email topic through a consumer group. Deliveries
// within a partition are handled one at a time so offsets commit in order.
// A re-queued delivery is produced to the topic again before its offset is
// committed; until that write succeeds the partition does not advance.
type KafkaConsumer struct {
	reader     kafkaReader
	writer     kafkaWriter
	topic      string
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// requeueBackoff is the first delay between failed re-queue writes.
	requeueBackoff time.Duration

	mu           sync.Mutex
	running      bool
	stopRead     context.CancelFunc
	cancelHandle context.CancelFunc
	done         chan struct{}
}

// NewKafkaConsumer builds a consumer on a group reader and a writer used
// for re-queues.
func NewKafkaConsumer(cfg KafkaConfig, dispatcher *Dispatcher, log *slog.Logger, m *metrics.Metrics) *KafkaConsumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:       cfg.Brokers,
		GroupID:       cfg.GroupID,
		Topic:         cfg.Topic,
		QueueCapacity: prefetch,
		MinBytes:      1,
		MaxBytes:      10e6,
		MaxWait:       time.Second,
	})
	writer := newKafkaWriter(cfg.Brokers, cfg.Topic, cfg.WriteTimeout)
	return newKafkaConsumer(reader, writer, cfg.Topic, dispatcher, log, m)
}

func newKafkaConsumer(
	reader kafkaReader,
	writer kafkaWriter,
	topic string,
	dispatcher *Dispatcher,
	log *slog.Logger,
	m *metrics.Metrics,
) *KafkaConsumer {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaConsumer{
		reader:         reader,
		writer:         writer,
		topic:          topic,
		dispatcher:     dispatcher,
		logger:         log.With("topic", topic),
		metrics:        m,
		requeueBackoff: readErrorBackoff,
	}
}

func newKafkaWriter(brokers []string, topic string, timeout time.Duration) *kafka.Writer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           timeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("kafka consumer already started")
	}

	base := context.WithoutCancel(ctx)
	readCtx, stopRead := context.WithCancel(base)
	handleCtx, cancelHandle := context.WithCancel(base)
	c.stopRead, c.cancelHandle = stopRead, cancelHandle
	c.done = make(chan struct{})
	c.running = true

	go c.loop(readCtx, handleCtx)
	c.logger.Info("kafka consumer started")
	return nil
}

// Stop halts fetching, lets the current delivery finish while ctx allows,
// then closes the reader and writer.
func (c *KafkaConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stopRead, cancelHandle, done := c.stopRead, c.cancelHandle, c.done
	c.mu.Unlock()

	stopRead()
	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		cancelHandle()
		<-done
		waitErr = fmt.Errorf("waiting for in-flight delivery: %w", ctx.Err())
	}
	cancelHandle()

	err := errors.Join(waitErr, c.reader.Close(), c.writer.Close())
	c.logger.Info("kafka consumer stopped")
	return err
}

func (c *KafkaConsumer) loop(readCtx, handleCtx context.Context) {
	defer close(c.done)
	for {
		msg, err := c.reader.FetchMessage(readCtx)
		if err != nil {
			if readCtx.Err() != nil {
				return
			}
			c.metrics.BrokerError(brokerKafka, "fetch", classifyError(err))
			c.logger.Warn("fetching message failed", "error", err)
			if sleep(readCtx, readErrorBackoff) != nil {
				return
			}
			continue
		}
		if !c.handle(readCtx, handleCtx, msg) {
			return
		}
	}
}

// handle dispatches msg and settles it. It reports false when msg could not
// be re-queued before shutdown; the loop then stops without committing
// anything further, since a later commit on the partition would skip msg.
func (c *KafkaConsumer) handle(readCtx, handleCtx context.Context, msg kafka.Message) bool {
	decision := c.dispatcher.Dispatch(handleCtx, msg.Value)

	if decision == Requeue && !c.requeue(readCtx, msg) {
		return false
	}

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(handleCtx), 10*time.Second)
	defer cancel()
	if err := c.reader.CommitMessages(settleCtx, msg); err != nil {
		c.metrics.BrokerError(brokerKafka, "commit", classifyError(err))
		c.logger.Error("committing offset failed",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
	return true
}

// requeue produces msg to the topic again, retrying with exponential backoff
// until it succeeds or readCtx is cancelled.
func (c *KafkaConsumer) requeue(readCtx context.Context, msg kafka.Message) bool {
	again := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: withRedeliveryCount(msg.Headers),
	}
	backoff := c.requeueBackoff
	for {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(readCtx), 10*time.Second)
		err := c.writer.WriteMessages(writeCtx, again)
		cancel()
		if err == nil {
			return true
		}
		c.metrics.BrokerError(brokerKafka, "requeue", classifyError(err))
		c.logger.Error("re-queueing message failed, retrying",
			"partition", msg.Partition, "offset", msg.Offset, "backoff", backoff, "error", err)
		if sleep(readCtx, backoff) != nil {
			c.logger.Warn("consumer stopping with unsettled message",
				"partition", msg.Partition, "offset", msg.Offset)
			return false
		}
		backoff = min(backoff*2, maxRequeueBackoff)
	}
}

// withRedeliveryCount copies headers and bumps the redelivery counter.
func withRedeliveryCount(headers []kafka.Header) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	count := 0
	for _, h := range headers {
		if h.Key == headerRedelivery {
			count, _ = strconv.Atoi(string(h.Value))
			continue
		}
		out = append(out, h)
	}
	return append(out, kafka.Header{Key: headerRedelivery, Value: []byte(strconv.Itoa(count + 1))})
}

// KafkaStatusPublisher produces status messages keyed by correlation id so
// every update for one notification lands on the same partition.
type KafkaStatusPublisher struct {
	writer  kafkaWriter
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewKafkaStatusPublisher(cfg KafkaConfig, log *slog.Logger, m *metrics.Metrics) *KafkaStatusPublisher {
	return newKafkaStatusPublisher(newKafkaWriter(cfg.Brokers, cfg.StatusTopic, cfg.WriteTimeout), cfg.StatusTopic, log, m)
}

func newKafkaStatusPublisher(w kafkaWriter, topic string, log *slog.Logger, m *metrics.Metrics) *KafkaStatusPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaStatusPublisher{writer: w, topic: topic, logger: log, metrics: m}
}

func (p *KafkaStatusPublisher) PublishStatus(
	ctx context.Context,
	id uuid.UUID,
	status notification.Status,
	errorMessage string,
) error {
	body, err := NewStatusMessage(id, status, errorMessage).Encode()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(id.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: headerMessageID, Value: []byte(uuid.NewString())},
			{Key: headerContentType, Value: []byte(contentTypeJSON)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		kind := classifyError(err)
		p.metrics.BrokerError(brokerKafka, "publish", kind)
		return fmt.Errorf("publishing status to %q (%s): %w", p.topic, kind, err)
	}
	p.logger.Debug("published status update", "notification_id", id, "status", status.String())
	return nil
}

func (p *KafkaStatusPublisher) Close() error {
	return p.writer.Close()
}
