package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
)

const defaultValkeyKey = "faqbot:chatlog:spool"

// ValkeyQueue keeps spooled drafts in a Valkey list so they survive restarts.
type ValkeyQueue struct {
	client valkey.Client
	key    string
}

// NewValkeyQueue constructs a Valkey-backed spool.
func NewValkeyQueue(client valkey.Client, key string) *ValkeyQueue {
	if key == "" {
		key = defaultValkeyKey
	}
	return &ValkeyQueue{client: client, key: key}
}

// Push implements chat.Spool.
func (q *ValkeyQueue) Push(ctx context.Context, draft chatlog.Draft) error {
	encoded, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	cmd := q.client.B().Lpush().Key(q.key).Element(string(encoded)).Build()
	return q.client.Do(ctx, cmd).Error()
}

// Pop implements chat.Spool with BRPOP; waits are rounded up to whole seconds.
func (q *ValkeyQueue) Pop(ctx context.Context, wait time.Duration) (chatlog.Draft, bool, error) {
	timeout := wait.Seconds()
	if timeout < 1 {
		timeout = 1
	}
	resp := q.client.Do(ctx, q.client.B().Brpop().Key(q.key).Timeout(timeout).Build())
	values, err := resp.ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return chatlog.Draft{}, false, nil
		}
		return chatlog.Draft{}, false, err
	}
	if len(values) < 2 {
		return chatlog.Draft{}, false, nil
	}
	raw, err := values[1].ToString()
	if err != nil {
		return chatlog.Draft{}, false, fmt.Errorf("valkey spool payload decode failed: %w", err)
	}
	var draft chatlog.Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return chatlog.Draft{}, false, fmt.Errorf("valkey spool unmarshal failed: %w", err)
	}
	return draft, true, nil
}

// Len reports the number of spooled drafts.
func (q *ValkeyQueue) Len(ctx context.Context) (int64, error) {
	return q.client.Do(ctx, q.client.B().Llen().Key(q.key).Build()).AsInt64()
}

var _ chat.Spool = (*ValkeyQueue)(nil)
