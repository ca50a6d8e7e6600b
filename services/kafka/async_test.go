package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedPublisher blocks every publish until release is closed or ctx ends.
type gatedPublisher struct {
	release chan struct{}
	started chan string

	mu   sync.Mutex
	keys []string
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{release: make(chan struct{}), started: make(chan string, 16)}
}

func (g *gatedPublisher) Publish(ctx context.Context, _, key string, _ interface{}) error {
	g.started <- key
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = append(g.keys, key)
	return nil
}

func (g *gatedPublisher) published() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.keys...)
}

func TestAsyncPublisher_DoesNotWaitForBroker(t *testing.T) {
	g := newGatedPublisher()
	a := NewAsyncPublisher(g, 4, quietLogger())

	start := time.Now()
	require.NoError(t, a.Publish(context.Background(), "t", "k1", Event{}))
	require.NoError(t, a.Publish(context.Background(), "t", "k2", Event{}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.Equal(t, "k1", <-g.started)
	close(g.release)
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{"k1", "k2"}, g.published())

	assert.ErrorIs(t, a.Publish(context.Background(), "t", "k3", Event{}), ErrPublisherClosed)
}

func TestAsyncPublisher_FullBufferDeadLetters(t *testing.T) {
	g := newGatedPublisher()
	a := NewAsyncPublisher(g, 1, quietLogger())
	var dead []string
	a.DeadLetter = func(topic, key string, _ []byte, err error) {
		assert.ErrorIs(t, err, ErrPublishQueueFull)
		dead = append(dead, key)
	}

	require.NoError(t, a.Publish(context.Background(), "t", "in-flight", Event{}))
	<-g.started // worker holds the first message
	require.NoError(t, a.Publish(context.Background(), "t", "buffered", Event{}))
	assert.ErrorIs(t, a.Publish(context.Background(), "t", "dropped", Event{}), ErrPublishQueueFull)
	assert.Equal(t, []string{"dropped"}, dead)

	close(g.release)
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{"in-flight", "buffered"}, g.published())
}

func TestAsyncPublisher_CloseGivesUpAtDeadline(t *testing.T) {
	g := newGatedPublisher()
	a := NewAsyncPublisher(g, 4, quietLogger())
	require.NoError(t, a.Publish(context.Background(), "t", "stuck", Event{}))
	<-g.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)
	assert.Empty(t, g.published())
}
