package spool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
)

func TestMemoryQueuePushPop(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, chatlog.Draft{RequestID: "a"}))
	require.NoError(t, q.Push(ctx, chatlog.Draft{RequestID: "b"}))
	require.ErrorIs(t, q.Push(ctx, chatlog.Draft{RequestID: "c"}), ErrFull)
	backlog, err := q.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), backlog)

	draft, ok, err := q.Pop(ctx, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", draft.RequestID)
}

func TestMemoryQueuePopTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)

	_, ok, err := q.Pop(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryQueuePopHonoursCancellation(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Pop(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)
}
