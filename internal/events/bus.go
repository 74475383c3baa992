package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Bus broadcasts events to subscribers through buffered channels.
//
// Thread safety: all methods may be called concurrently. A full
// subscriber buffer causes drops for that subscriber only; the producer
// and other subscribers are unaffected.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscriber
	nextID      atomic.Uint64
	closed      bool

	bufferSize int
	logger     *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the per-subscriber channel capacity. Default 100.
func WithBufferSize(size int) BusOption {
	return func(b *Bus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithBusLogger sets the logger used for drop reporting.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subscribers: make(map[uint64]*Subscriber),
		bufferSize:  100,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscriber is one receiver of the broadcast. Events arrive in emit
// order; events emitted while the buffer is full are counted in Dropped
// and never delivered.
type Subscriber struct {
	id     uint64
	ch     chan Event
	filter Filter
	bus    *Bus

	received atomic.Int64
	dropped  atomic.Int64
	once     sync.Once
}

// Emit broadcasts the event to every matching subscriber without ever
// blocking. Returns an error only when the bus is closed.
func (b *Bus) Emit(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return types.NewError(types.PRECONDITION_FAILED, "event bus is closed")
	}

	for _, sub := range b.subscribers {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
			sub.received.Add(1)
		default:
			sub.dropped.Add(1)
			b.logger.Debug("event dropped for lagging subscriber",
				"subscriber_id", sub.id,
				"event", event.Type,
				"execution_id", event.ExecutionID)
		}
	}
	return nil
}

// Subscribe registers a subscriber. The caller must Close it to release
// the slot.
func (b *Bus) Subscribe(filter Filter) *Subscriber {
	sub := &Subscriber{
		id:     b.nextID.Add(1),
		ch:     make(chan Event, b.bufferSize),
		filter: filter,
		bus:    b,
	}

	b.mu.Lock()
	if b.closed {
		close(sub.ch)
	} else {
		b.subscribers[sub.id] = sub
	}
	b.mu.Unlock()
	return sub
}

// SubscriberCount reports active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the bus down, closing every subscriber channel. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// Recv blocks for the next event. Returns false when the subscription is
// closed or the context is done.
func (s *Subscriber) Recv(ctx context.Context) (Event, bool) {
	select {
	case event, ok := <-s.ch:
		return event, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// TryRecv returns the next buffered event without blocking.
func (s *Subscriber) TryRecv() (Event, bool) {
	select {
	case event, ok := <-s.ch:
		return event, ok
	default:
		return Event{}, false
	}
}

// Events exposes the raw channel for range loops.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber missed to overflow.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Received reports how many events were delivered to the buffer.
func (s *Subscriber) Received() int64 { return s.received.Load() }

// Close unsubscribes and closes the channel. Idempotent.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subscribers[s.id]; ok {
			delete(s.bus.subscribers, s.id)
			close(s.ch)
		}
	})
}

// Consume drains the subscription, invoking fn per event until the
// context ends or the subscription closes. A panicking fn is recovered
// and logged so one bad consumer cannot take down the producer or its
// peers.
func (s *Subscriber) Consume(ctx context.Context, fn func(Event)) {
	for {
		event, ok := s.Recv(ctx)
		if !ok {
			return
		}
		s.invoke(event, fn)
	}
}

func (s *Subscriber) invoke(event Event, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			s.bus.logger.Error("event subscriber panicked",
				"subscriber_id", s.id,
				"event", event.Type,
				"panic", fmt.Sprint(r))
		}
	}()
	fn(event)
}
