package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 64

// Filter selects the events a subscription receives.
type Filter[T any] func(Event[T]) bool

type subscription[T any] struct {
	ch     chan Event[T]
	filter Filter[T]
}

// Broker fans events out to subscribers without ever blocking the publisher.
// An event that does not fit in a subscriber's buffer is dropped for that
// subscriber and counted.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[*subscription[T]]struct{}
	closed     bool
	bufferSize int
	dropped    atomic.Uint64
}

// Option configures a Broker.
type Option func(*config)

type config struct {
	bufferSize int
}

// WithBuffer sets the per-subscriber buffer size. Values below 1 are ignored.
func WithBuffer(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// NewBroker creates a broker. The default buffer holds 64 events per
// subscriber.
func NewBroker[T any](opts ...Option) *Broker[T] {
	c := config{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&c)
	}
	return &Broker[T]{
		subs:       make(map[*subscription[T]]struct{}),
		bufferSize: c.bufferSize,
	}
}

// Subscribe streams every event until ctx is cancelled or the broker closes,
// then closes the channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	return b.SubscribeFunc(ctx, nil)
}

// SubscribeFunc is like Subscribe but only delivers events accepted by
// filter. Rejected events do not count as dropped. A nil filter accepts all.
func (b *Broker[T]) SubscribeFunc(ctx context.Context, filter Filter[T]) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := &subscription[T]{ch: make(chan Event[T], b.bufferSize), filter: filter}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; !ok {
			return
		}
		delete(b.subs, sub)
		close(sub.ch)
	}()

	return sub.ch
}

// Publish delivers an event to every matching subscriber and returns how
// many received it. Publishing on a closed broker delivers nothing.
func (b *Broker[T]) Publish(eventType EventType, payload T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	delivered := 0
	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Dropped returns the number of deliveries skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel. Close is idempotent.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
