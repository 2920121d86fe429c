package chat

import (
	"context"
	"time"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/pkg/metrics"
)

// Matcher picks the answer for a message.
type Matcher interface {
	Match(ctx context.Context, message string) (faq.MatchResult, error)
	Threshold() float64
}

// ChatLog records exchanges.
type ChatLog interface {
	Append(ctx context.Context, draft chatlog.Draft) (chatlog.Entry, error)
	Recent(ctx context.Context, query chatlog.Query) ([]chatlog.Entry, error)
	Page(ctx context.Context, query chatlog.Query) (chatlog.Page, error)
	Stats(ctx context.Context) (chatlog.Stats, error)
}

// Spool buffers drafts whose append failed. Pop waits at most wait for an
// item and reports false when none arrived. Push must honour ctx.
type Spool interface {
	Push(ctx context.Context, draft chatlog.Draft) error
	Pop(ctx context.Context, wait time.Duration) (chatlog.Draft, bool, error)
	Len(ctx context.Context) (int64, error)
}

// TokenCounter estimates token usage for an exchange.
type TokenCounter interface {
	Usage(prompt, completion string) metrics.TokenUsage
}

// Reporter forwards failures to the error tracker.
type Reporter interface {
	CaptureError(ctx context.Context, err error)
	Breadcrumb(ctx context.Context, category, message string)
}

// ObjectStorage stores exported archives.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}
