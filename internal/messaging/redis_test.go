package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/service"
)

const testStream = "emails"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testConsumerConfig() RedisConsumerConfig {
	return RedisConsumerConfig{
		Stream:     testStream,
		Group:      "mailworker",
		Consumer:   "worker-1",
		Prefetch:   4,
		Block:      50 * time.Millisecond,
		ClaimEvery: -1,
	}
}

func startConsumer(t *testing.T, client redis.UniversalClient, h handlerFunc) *RedisConsumer {
	t.Helper()
	c := NewRedisConsumer(client, testConsumerConfig(), NewDispatcher(h, brokerRedis, nil, nil), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func publish(t *testing.T, client redis.UniversalClient, body []byte) {
	t.Helper()
	err := client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{payloadField: string(body)},
	}).Err()
	require.NoError(t, err)
}

func pendingCount(t *testing.T, client redis.UniversalClient) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), testStream, "mailworker").Result()
	require.NoError(t, err)
	return p.Count
}

func TestRedisConsumer_AcksHandledEntry(t *testing.T) {
	_, client := newRedis(t)

	got := make(chan service.ProcessEmailCommand, 1)
	startConsumer(t, client, func(_ context.Context, cmd service.ProcessEmailCommand) (service.Result[struct{}], error) {
		got <- cmd
		return service.Ok(), nil
	})

	publish(t, client, validBody(t))

	select {
	case cmd := <-got:
		assert.Equal(t, "a@b.com", cmd.RecipientAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("entry was not handled")
	}
	require.Eventually(t, func() bool { return pendingCount(t, client) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, client.XLen(context.Background(), testStream).Val())
}

func TestRedisConsumer_RequeueAppendsEntry(t *testing.T) {
	_, client := newRedis(t)

	var calls atomic.Int32
	startConsumer(t, client, func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
		if calls.Add(1) == 1 {
			return service.Result[struct{}]{}, errors.New("status channel down")
		}
		return service.Ok(), nil
	})

	publish(t, client, validBody(t))

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return pendingCount(t, client) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, client.XLen(context.Background(), testStream).Val())
}

func TestRedisConsumer_ExistingGroup(t *testing.T) {
	_, client := newRedis(t)
	require.NoError(t, client.XGroupCreateMkStream(context.Background(), testStream, "mailworker", "0").Err())

	c := NewRedisConsumer(client, testConsumerConfig(), NewDispatcher(okHandler(), brokerRedis, nil, nil), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	require.Error(t, c.Start(context.Background()), "second start must fail")
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()), "stop is idempotent")
}

func TestRedisConsumer_StopWaitsForInFlight(t *testing.T) {
	_, client := newRedis(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	c := startConsumer(t, client, func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
		close(entered)
		<-release
		return service.Ok(), nil
	})
	publish(t, client, validBody(t))
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while a delivery was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-stopped)
	assert.Zero(t, pendingCount(t, client))
}

func TestRedisConsumer_StopTimeoutCancelsHandlers(t *testing.T) {
	_, client := newRedis(t)

	entered := make(chan struct{})
	cancelled := make(chan struct{})
	c := startConsumer(t, client, func(ctx context.Context, _ service.ProcessEmailCommand) (service.Result[struct{}], error) {
		close(entered)
		<-ctx.Done()
		close(cancelled)
		return service.Ok(), nil
	})
	publish(t, client, validBody(t))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	default:
		t.Fatal("handler context was not cancelled")
	}
}

func TestRedisConsumer_ReclaimSkipsOwnInFlightEntries(t *testing.T) {
	_, client := newRedis(t)

	cfg := testConsumerConfig()
	cfg.ClaimMinIdle = time.Millisecond
	cfg.ClaimEvery = 5 * time.Millisecond

	var calls atomic.Int32
	release := make(chan struct{})
	h := handlerFunc(func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
		calls.Add(1)
		<-release
		return service.Ok(), nil
	})
	c := NewRedisConsumer(client, cfg, NewDispatcher(h, brokerRedis, nil, nil), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	publish(t, client, validBody(t))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	// Several reclaim passes run while the entry is idle in the pending list.
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load(), "an entry being handled must not be dispatched again")

	close(release)
	require.Eventually(t, func() bool { return pendingCount(t, client) == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRedisConsumer_TrackRejectsDuplicate(t *testing.T) {
	_, client := newRedis(t)
	c := NewRedisConsumer(client, testConsumerConfig(), NewDispatcher(okHandler(), brokerRedis, nil, nil), nil, nil)

	require.True(t, c.track("1-0"))
	assert.False(t, c.track("1-0"))
	assert.True(t, c.isActive("1-0"))

	c.untrack("1-0")
	assert.False(t, c.isActive("1-0"))
	assert.True(t, c.track("1-0"))
}

func TestRedisStatusPublisher_Publish(t *testing.T) {
	_, client := newRedis(t)
	p := NewRedisStatusPublisherWithClient(client, "status", nil, nil)

	id := uuid.New()
	require.NoError(t, p.PublishStatus(context.Background(), id, notification.StatusFailed, "smtp down"))

	entries, err := client.XRange(context.Background(), "status", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, contentTypeJSON, entries[0].Values["contentType"])
	assert.NotEmpty(t, entries[0].Values["messageId"])

	msg, err := DecodeStatus([]byte(entries[0].Values[payloadField].(string)))
	require.NoError(t, err)
	assert.Equal(t, id, msg.NotificationID)
	assert.Equal(t, int(notification.StatusFailed), msg.Status)
	require.NotNil(t, msg.ErrorMessage)
	assert.Equal(t, "smtp down", *msg.ErrorMessage)

	require.NoError(t, p.Close(), "close leaves a caller's client alone")
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestRedisStatusPublisher_ConnectsOnce(t *testing.T) {
	mr, client := newRedis(t)

	var dials atomic.Int32
	p := newRedisStatusPublisher(func(ctx context.Context) (redis.UniversalClient, error) {
		dials.Add(1)
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
	}, "status", nil, nil)
	t.Cleanup(func() { _ = p.Close() })

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			assert.NoError(t, p.PublishStatus(context.Background(), uuid.New(), notification.StatusProcessing, ""))
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, dials.Load())
	assert.EqualValues(t, 10, client.XLen(context.Background(), "status").Val())
}

func TestRedisStatusPublisher_RetriesFailedConnect(t *testing.T) {
	mr, _ := newRedis(t)

	var dials atomic.Int32
	p := newRedisStatusPublisher(func(ctx context.Context) (redis.UniversalClient, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
	}, "status", nil, nil)
	t.Cleanup(func() { _ = p.Close() })

	err := p.PublishStatus(context.Background(), uuid.New(), notification.StatusSent, "")
	require.ErrorContains(t, err, "connection refused")

	require.NoError(t, p.PublishStatus(context.Background(), uuid.New(), notification.StatusSent, ""))
	assert.EqualValues(t, 2, dials.Load())
}

func TestNewRedisStatusPublisher_Dials(t *testing.T) {
	mr, _ := newRedis(t)
	p := NewRedisStatusPublisher(&redis.Options{Addr: mr.Addr()}, "status", nil, nil)

	require.NoError(t, p.PublishStatus(context.Background(), uuid.New(), notification.StatusSent, ""))
	require.NoError(t, p.Close())
}
