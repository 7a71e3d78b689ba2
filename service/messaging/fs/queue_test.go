package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newQueue(t *testing.T, maxRetries int) *Queue[payload] {
	config := DefaultConfig(t.TempDir())
	config.MaxRetries = maxRetries
	config.PollInterval = 5 * time.Millisecond
	queue, err := NewQueue[payload](afs.New(), config)
	require.NoError(t, err)
	return queue
}

func TestQueue_Order(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t, 1)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Publish(ctx, &payload{ID: id, Count: i}))
	}
	for _, expect := range []string{"a", "b", "c"} {
		msg, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, expect, msg.T().ID)
		require.NoError(t, msg.Ack())
		assert.Error(t, msg.Ack())
	}
	pending, done, dead, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 0}, []int{pending, done, dead})
}

func TestQueue_NackToDLQ(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t, 1)
	require.NoError(t, queue.Publish(ctx, &payload{ID: "x"}))

	for attempt := 0; attempt < 2; attempt++ {
		msg, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NoError(t, msg.Nack(errors.New("fail")))
	}
	pending, _, dead, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, dead)
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := newQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewQueue_RequiresBasePath(t *testing.T) {
	_, err := NewQueue[payload](afs.New(), Config{})
	assert.Error(t, err)
}
