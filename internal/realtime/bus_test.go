package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue/internal/queue"
)

type sink struct {
	mu     sync.Mutex
	events []queue.Event
}

func (s *sink) Publish(_ context.Context, ev queue.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRedisBusForwardsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := NewRedisBus(client, "", zerolog.Nop())
	out := &sink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, out, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not ready")
	}

	bus.Publish(ctx, queue.Event{Type: queue.EventNewQueue, QueueNumber: 12})
	require.Eventually(t, func() bool { return out.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	out.mu.Lock()
	assert.Equal(t, queue.EventNewQueue, out.events[0].Type)
	assert.Equal(t, int64(12), out.events[0].QueueNumber)
	out.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not stop")
	}
}

func TestRedisBusPublishSwallowsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	bus := NewRedisBus(client, "x", zerolog.Nop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), queue.Event{Type: queue.EventQueueUpdated})
	})
}
