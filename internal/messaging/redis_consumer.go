package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaharia-lab/mailworker/internal/metrics"
)

const (
	brokerRedis = "redis"

	// payloadField is the stream entry field that carries the JSON body.
	payloadField = "payload"

	defaultPrefetch     = 10
	defaultReadBlock    = 2 * time.Second
	defaultClaimMinIdle = time.Minute
	defaultClaimEvery   = 30 * time.Second
	readErrorBackoff    = time.Second
)

// RedisConsumerConfig configures a RedisConsumer.
type RedisConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Prefetch bounds the deliveries handled concurrently. Default 10.
	Prefetch int
	// Block is how long one XREADGROUP waits for new entries.
	Block time.Duration
	// ClaimMinIdle is how long an entry must sit unacknowledged before it is
	// taken over. Entries this consumer is still handling are never claimed.
	ClaimMinIdle time.Duration
	// ClaimEvery is how often pending entries are checked. Zero uses the
	// default; a negative value disables reclaiming.
	ClaimEvery time.Duration
}

func (c *RedisConsumerConfig) withDefaults() {
	if c.Prefetch <= 0 {
		c.Prefetch = defaultPrefetch
	}
	if c.Block <= 0 {
		c.Block = defaultReadBlock
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = defaultClaimMinIdle
	}
	if c.ClaimEvery == 0 {
		c.ClaimEvery = defaultClaimEvery
	}
}

// RedisConsumer reads a Redis stream through a consumer group. Entries are
// acknowledged with XACK; a re-queued entry is appended again with XADD and
// the original acknowledged in the same transaction.
type RedisConsumer struct {
	client     redis.UniversalClient
	cfg        RedisConsumerConfig
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu           sync.Mutex
	running      bool
	stopRead     context.CancelFunc
	cancelHandle context.CancelFunc
	loopDone     chan struct{}
	inflight     sync.WaitGroup

	// active holds the ids of entries being handled by this process, so
	// reclaiming never dispatches one of them a second time.
	activeMu sync.Mutex
	active   map[string]struct{}
}

func NewRedisConsumer(
	client redis.UniversalClient,
	cfg RedisConsumerConfig,
	dispatcher *Dispatcher,
	log *slog.Logger,
	m *metrics.Metrics,
) *RedisConsumer {
	cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &RedisConsumer{
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     log.With("stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer),
		metrics:    m,
		active:     make(map[string]struct{}),
	}
}

// Start creates the stream and group if missing and launches the read loop.
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("redis consumer already started")
	}

	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	base := context.WithoutCancel(ctx)
	readCtx, stopRead := context.WithCancel(base)
	handleCtx, cancelHandle := context.WithCancel(base)
	c.stopRead, c.cancelHandle = stopRead, cancelHandle
	c.loopDone = make(chan struct{})
	c.running = true

	go c.loop(readCtx, handleCtx)

	c.logger.Info("redis consumer started", "prefetch", c.cfg.Prefetch)
	return nil
}

// Stop halts reading and waits for in-flight deliveries. If ctx ends first,
// in-flight handlers are cancelled and Stop returns ctx's error.
func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stopRead, cancelHandle, loopDone := c.stopRead, c.cancelHandle, c.loopDone
	c.mu.Unlock()

	stopRead()
	drained := make(chan struct{})
	go func() {
		<-loopDone
		c.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		cancelHandle()
		c.logger.Info("redis consumer stopped")
		return nil
	case <-ctx.Done():
		cancelHandle()
		<-drained
		return fmt.Errorf("waiting for in-flight deliveries: %w", ctx.Err())
	}
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		c.metrics.BrokerError(brokerRedis, "group_create", classifyError(err))
		return fmt.Errorf("creating consumer group %q on %q: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

func (c *RedisConsumer) loop(readCtx, handleCtx context.Context) {
	defer close(c.loopDone)

	slots := make(chan struct{}, c.cfg.Prefetch)
	var lastClaim time.Time

	for readCtx.Err() == nil {
		if c.cfg.ClaimEvery > 0 && time.Since(lastClaim) >= c.cfg.ClaimEvery {
			lastClaim = time.Now()
			c.reclaim(readCtx, handleCtx, slots)
		}

		// Wait for a free slot before asking for more work.
		select {
		case slots <- struct{}{}:
		case <-readCtx.Done():
			return
		}
		free := 1 + (cap(slots) - len(slots))

		streams, err := c.client.XReadGroup(readCtx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    int64(free),
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			<-slots
			if errors.Is(err, redis.Nil) || readCtx.Err() != nil {
				continue
			}
			c.metrics.BrokerError(brokerRedis, "read", classifyError(err))
			c.logger.Warn("reading stream failed", "error", err)
			if strings.Contains(err.Error(), "NOGROUP") {
				_ = c.ensureGroup(readCtx)
			}
			_ = sleep(readCtx, readErrorBackoff)
			continue
		}

		first := true
		for _, s := range streams {
			for _, msg := range s.Messages {
				if !first {
					select {
					case slots <- struct{}{}:
					case <-readCtx.Done():
						// Unhandled entries stay pending and are reclaimed later.
						return
					}
				}
				first = false
				c.handleAsync(handleCtx, msg, slots)
			}
		}
		if first {
			<-slots
		}
	}
}

// reclaim takes over entries another consumer left unacknowledged.
func (c *RedisConsumer) reclaim(readCtx, handleCtx context.Context, slots chan struct{}) {
	start := "0-0"
	for readCtx.Err() == nil {
		msgs, next, err := c.client.XAutoClaim(readCtx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimMinIdle,
			Start:    start,
			Count:    int64(c.cfg.Prefetch),
		}).Result()
		if err != nil {
			if readCtx.Err() == nil {
				c.metrics.BrokerError(brokerRedis, "claim", classifyError(err))
				c.logger.Warn("reclaiming pending entries failed", "error", err)
			}
			return
		}
		for _, msg := range msgs {
			if c.isActive(msg.ID) {
				continue
			}
			select {
			case slots <- struct{}{}:
			case <-readCtx.Done():
				return
			}
			c.logger.Info("reclaimed pending entry", "entry_id", msg.ID)
			c.handleAsync(handleCtx, msg, slots)
		}
		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

// handleAsync processes msg on its own goroutine. The caller holds a slot,
// which is released when the delivery is settled.
func (c *RedisConsumer) handleAsync(ctx context.Context, msg redis.XMessage, slots chan struct{}) {
	if !c.track(msg.ID) {
		<-slots
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer func() { <-slots }()
		defer c.untrack(msg.ID)
		c.handle(ctx, msg)
	}()
}

// track marks id as in flight. It reports false if it already was.
func (c *RedisConsumer) track(id string) bool {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if _, ok := c.active[id]; ok {
		return false
	}
	c.active[id] = struct{}{}
	return true
}

func (c *RedisConsumer) untrack(id string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	delete(c.active, id)
}

func (c *RedisConsumer) isActive(id string) bool {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	_, ok := c.active[id]
	return ok
}

func (c *RedisConsumer) handle(ctx context.Context, msg redis.XMessage) {
	body, _ := msg.Values[payloadField].(string)
	decision := c.dispatcher.Dispatch(ctx, []byte(body))

	// Settling must not be skipped because shutdown cancelled ctx.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var err error
	if decision == Ack {
		err = c.client.XAck(settleCtx, c.cfg.Stream, c.cfg.Group, msg.ID).Err()
	} else {
		_, err = c.client.TxPipelined(settleCtx, func(pipe redis.Pipeliner) error {
			pipe.XAdd(settleCtx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: msg.Values})
			pipe.XAck(settleCtx, c.cfg.Stream, c.cfg.Group, msg.ID)
			return nil
		})
	}
	if err != nil {
		c.metrics.BrokerError(brokerRedis, decision.String(), classifyError(err))
		c.logger.Error("settling stream entry failed",
			"entry_id", msg.ID, "decision", decision.String(), "error", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
