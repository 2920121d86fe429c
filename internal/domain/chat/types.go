package chat

import (
	"time"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/pkg/metrics"
)

// Request is a single chat message from a client.
type Request struct {
	Message   string `json:"message"`
	Debug     bool   `json:"debug"`
	RequestID string `json:"-"`
}

// Response carries the answer returned to the client.
type Response struct {
	Answer       string     `json:"answer"`
	Confidence   float64    `json:"confidence"`
	MatchedFAQID *int64     `json:"matchedFaqId,omitempty"`
	LogID        *int64     `json:"logId,omitempty"`
	DebugInfo    *DebugInfo `json:"debugInfo,omitempty"`
}

// DebugInfo exposes how an answer was chosen.
type DebugInfo struct {
	Normalized     string             `json:"normalized"`
	Source         faq.Source         `json:"source"`
	Reason         string             `json:"reason,omitempty"`
	Threshold      float64            `json:"threshold"`
	CatalogVersion int64              `json:"catalogVersion"`
	LatencyMs      int64              `json:"latencyMs"`
	Usage          metrics.TokenUsage `json:"usage"`
	Logged         bool               `json:"logged"`
}

// ExportResult describes an archived CSV export.
type ExportResult struct {
	Key   string `json:"key"`
	Size  int64  `json:"size"`
	Count int    `json:"count"`
}

// Config tunes the session handler.
type Config struct {
	LogTimeout       time.Duration
	ReplayPollWait   time.Duration
	ReplayBackoff    time.Duration
	ReplayMaxBackoff time.Duration
	ExportPrefix     string
}

const (
	defaultLogTimeout       = 2 * time.Second
	defaultReplayPollWait   = 5 * time.Second
	defaultReplayBackoff    = time.Second
	defaultReplayMaxBackoff = 30 * time.Second
	defaultExportPrefix     = "exports/chat-logs/"
)

func (c Config) withDefaults() Config {
	if c.LogTimeout <= 0 {
		c.LogTimeout = defaultLogTimeout
	}
	if c.ReplayPollWait <= 0 {
		c.ReplayPollWait = defaultReplayPollWait
	}
	if c.ReplayBackoff <= 0 {
		c.ReplayBackoff = defaultReplayBackoff
	}
	if c.ReplayMaxBackoff < c.ReplayBackoff {
		c.ReplayMaxBackoff = defaultReplayMaxBackoff
		if c.ReplayMaxBackoff < c.ReplayBackoff {
			c.ReplayMaxBackoff = c.ReplayBackoff
		}
	}
	if c.ExportPrefix == "" {
		c.ExportPrefix = defaultExportPrefix
	}
	return c
}
