package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())
	defer b.Close()

	received := make(chan any, 1)
	b.Subscribe("topic", func(_ context.Context, event any) error {
		received <- event
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "topic", "hello"))

	select {
	case event := <-received:
		assert.Equal(t, "hello", event)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())
	defer b.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		b.Subscribe("topic", func(context.Context, any) error {
			wg.Done()
			return nil
		})
	}

	require.NoError(t, b.Publish(context.Background(), "topic", struct{}{}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestPublishWithoutSubscribersIsSilent(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())
	defer b.Close()

	assert.NoError(t, b.Publish(context.Background(), "empty-topic", "dropped"))
}

func TestHandlerErrorTriggersRedelivery(t *testing.T) {
	t.Parallel()

	b := New(discardLogger(), WithBaseBackoff(time.Millisecond))
	defer b.Close()

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	b.Subscribe("topic", func(context.Context, any) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "topic", struct{}{}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never succeeded")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestEventDroppedAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	b := New(discardLogger(), WithMaxAttempts(2), WithBaseBackoff(time.Millisecond))
	defer b.Close()

	var mu sync.Mutex
	attempts := 0
	b.Subscribe("topic", func(context.Context, any) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("permanent")
	})

	// The second event proves the worker survived dropping the first.
	released := make(chan struct{})
	b.Subscribe("release", func(context.Context, any) error {
		close(released)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "topic", struct{}{}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), "release", struct{}{}))
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("bus stopped delivering after a dropped event")
	}

	// No further redelivery of the dropped event.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestPublishAfterCloseFails(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())
	b.Subscribe("topic", func(context.Context, any) error { return nil })
	b.Close()

	err := b.Publish(context.Background(), "topic", struct{}{})
	assert.Error(t, err)
}

func TestCloseDrainsQueuedEvents(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())

	var mu sync.Mutex
	var got []any
	b.Subscribe("topic", func(_ context.Context, event any) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		return nil
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", i))
	}

	// Close must not return until every accepted event was handled.
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 20)
}

func TestCloseDrainsChainedPublishes(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())

	var mu sync.Mutex
	var second []any
	b.Subscribe("second", func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, event)
		return nil
	})

	// A handler publishing a follow-up event mid-drain must not be rejected.
	b.Subscribe("first", func(ctx context.Context, event any) error {
		return b.Publish(ctx, "second", event)
	})

	require.NoError(t, b.Publish(context.Background(), "first", "payload"))
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, second, 1)
	assert.Equal(t, "payload", second[0])
}

func TestCloseDrainsThroughRetries(t *testing.T) {
	t.Parallel()

	b := New(discardLogger(), WithBaseBackoff(time.Millisecond))

	var mu sync.Mutex
	attempts := 0
	b.Subscribe("topic", func(context.Context, any) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "topic", struct{}{}))
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestHandlerContextCanceledAfterClose(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())

	var handlerCtx context.Context
	done := make(chan struct{})
	b.Subscribe("topic", func(ctx context.Context, _ any) error {
		handlerCtx = ctx
		close(done)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "topic", struct{}{}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	b.Close()
	require.NotNil(t, handlerCtx)
	assert.Error(t, handlerCtx.Err())
}

func TestPublishHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	b := New(discardLogger())
	defer b.Close()

	block := make(chan struct{})
	b.Subscribe("topic", func(context.Context, any) error {
		<-block
		return nil
	})
	defer close(block)

	// Saturate the mailbox plus the in-flight event.
	ctx := context.Background()
	for i := 0; i < mailboxSize+1; i++ {
		require.NoError(t, b.Publish(ctx, "topic", i))
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := b.Publish(cancelled, "topic", "overflow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
