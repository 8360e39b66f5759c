package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ReviewRelay/internal/ports"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 100 * time.Millisecond
	mailboxSize        = 256
)

// Option adjusts bus behavior.
type Option func(*Bus)

// WithMaxAttempts bounds redelivery attempts per event.
func WithMaxAttempts(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithBaseBackoff sets the first redelivery delay; it doubles per attempt.
func WithBaseBackoff(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.baseBackoff = d
		}
	}
}

// Bus is an in-process event bus with at-least-once delivery. Every
// subscriber owns a buffered mailbox drained by its own goroutine; a
// handler error triggers redelivery with exponential backoff, and an event
// that exhausts its attempts is logged and dropped, never crashing the
// worker. Close drains: every accepted event, including events published by
// handlers while the drain runs, is delivered or dropped before Close
// returns, so a one-shot process can tear down right after publishing.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]*subscriber
	logger      *slog.Logger
	maxAttempts int
	baseBackoff time.Duration
	closed      bool
	closeOnce   sync.Once
	pending     sync.WaitGroup
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriber struct {
	handler ports.EventHandler
	mailbox chan any
}

var _ ports.EventBus = (*Bus)(nil)

// New builds a bus ready for subscriptions.
func New(logger *slog.Logger, opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subs:        map[string][]*subscriber{},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for one topic and starts its worker.
func (b *Bus) Subscribe(topic string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	sub := &subscriber{
		handler: handler,
		mailbox: make(chan any, mailboxSize),
	}
	b.subs[topic] = append(b.subs[topic], sub)

	b.wg.Add(1)
	go b.run(topic, sub)
}

// Publish enqueues the event for every subscriber of the topic. A full
// mailbox applies backpressure to the publisher. Handlers may publish
// follow-up events while Close is draining; only after the drain completes
// does Publish reject.
func (b *Bus) Publish(ctx context.Context, topic string, event any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	for _, sub := range b.subs[topic] {
		b.pending.Add(1)
		select {
		case sub.mailbox <- event:
		case <-ctx.Done():
			b.pending.Done()
			return ctx.Err()
		}
	}
	return nil
}

// Close drains and stops the bus: it waits until every accepted event has
// been delivered or dropped, then rejects further publishes, stops the
// workers, and cancels the handler context.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.pending.Wait()

		b.mu.Lock()
		b.closed = true
		var mailboxes []chan any
		for _, subs := range b.subs {
			for _, sub := range subs {
				mailboxes = append(mailboxes, sub.mailbox)
			}
		}
		b.mu.Unlock()

		for _, mailbox := range mailboxes {
			close(mailbox)
		}
		b.wg.Wait()
		b.cancel()
	})
}

func (b *Bus) run(topic string, sub *subscriber) {
	defer b.wg.Done()
	for event := range sub.mailbox {
		b.deliver(topic, sub, event)
	}
}

func (b *Bus) deliver(topic string, sub *subscriber, event any) {
	defer b.pending.Done()

	backoff := b.baseBackoff
	for attempt := 1; ; attempt++ {
		err := sub.handler(b.ctx, event)
		if err == nil {
			return
		}

		if attempt >= b.maxAttempts {
			b.logger.Error("event dropped after retries",
				"topic", topic, "attempts", attempt, "error", err)
			return
		}

		b.logger.Warn("event handler failed, redelivering",
			"topic", topic, "attempt", attempt, "error", err)

		select {
		case <-b.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
