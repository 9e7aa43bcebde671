// Package eventbus provides an in-memory, asynchronous bus that fans email
// lifecycle events out to listeners. Events are dispatched through a buffered
// channel and processed by a worker pool.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 256
)

// Listener handles one lifecycle event.
type Listener func(notification.Event)

// EventBus is the interface for publishing lifecycle events and managing subscribers.
type EventBus interface {
	// Publish enqueues events in order. It never blocks: if the buffer is
	// full the event is dropped and counted.
	Publish(events ...notification.Event)

	// Subscribe registers a listener that is called for every published event.
	// Subscribe must be called before the first Publish.
	Subscribe(listener Listener)

	// Dropped returns how many events were discarded because the buffer was
	// full or the bus was closed.
	Dropped() uint64

	// Close stops accepting new events and waits for pending ones to be processed.
	Close()
}

type inMemoryBus struct {
	ch        chan notification.Event
	listeners []Listener
	mu        sync.RWMutex
	wg        sync.WaitGroup
	workers   int
	logger    *slog.Logger

	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// New creates an in-memory EventBus with the given number of worker goroutines.
// If workers is <= 0, defaultWorkers (3) is used.
func New(workers int, logger *slog.Logger) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &inMemoryBus{
		ch:      make(chan notification.Event, defaultBufferSize),
		workers: workers,
		logger:  logger,
	}
	b.startWorkers()
	return b
}

func (b *inMemoryBus) startWorkers() {
	for range b.workers {
		b.wg.Go(func() {
			for e := range b.ch {
				b.dispatch(e)
			}
		})
	}
}

// dispatch calls every listener with panic recovery so one bad listener
// cannot affect the others.
func (b *inMemoryBus) dispatch(e notification.Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus listener panicked",
						"event", string(e.Kind), "notification_id", e.NotificationID, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

func (b *inMemoryBus) Publish(events ...notification.Event) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	for _, e := range events {
		if b.closed {
			b.dropped.Add(1)
			continue
		}
		select {
		case b.ch <- e:
		default:
			b.dropped.Add(1)
			b.logger.Warn("eventbus buffer full, dropping event",
				"event", string(e.Kind), "notification_id", e.NotificationID)
		}
	}
}

func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *inMemoryBus) Dropped() uint64 { return b.dropped.Load() }

// Close drains the channel and waits for all workers. It is safe to call more than once.
func (b *inMemoryBus) Close() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.closeMu.Unlock()

	b.wg.Wait()
}
