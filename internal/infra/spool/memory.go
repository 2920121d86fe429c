package spool

import (
	"context"
	"errors"
	"time"

	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
)

// ErrFull is returned when the memory spool has no free slot.
var ErrFull = errors.New("spool is full")

const defaultMemoryCapacity = 1024

// MemoryQueue buffers drafts in a bounded channel. Push never blocks.
type MemoryQueue struct {
	items chan chatlog.Draft
}

// NewMemoryQueue constructs a queue holding at most capacity drafts.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryQueue{items: make(chan chatlog.Draft, capacity)}
}

// Push implements chat.Spool.
func (q *MemoryQueue) Push(_ context.Context, draft chatlog.Draft) error {
	select {
	case q.items <- draft:
		return nil
	default:
		return ErrFull
	}
}

// Pop implements chat.Spool.
func (q *MemoryQueue) Pop(ctx context.Context, wait time.Duration) (chatlog.Draft, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case draft := <-q.items:
		return draft, true, nil
	case <-timer.C:
		return chatlog.Draft{}, false, nil
	case <-ctx.Done():
		return chatlog.Draft{}, false, ctx.Err()
	}
}

// Len implements chat.Spool.
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.items)), nil
}

var _ chat.Spool = (*MemoryQueue)(nil)
