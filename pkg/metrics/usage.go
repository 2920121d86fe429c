package metrics

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenUsage captures token counts for a single chat exchange.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// TokenCounter counts tokens with a tiktoken encoding. The encoding is loaded
// lazily; when it cannot be loaded the counter falls back to a rune estimate.
type TokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter constructs a counter for the named encoding.
func NewTokenCounter(encoding string) *TokenCounter {
	encoding = strings.TrimSpace(encoding)
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &TokenCounter{encoding: encoding}
}

// Count returns the number of tokens in text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Usage builds a TokenUsage for a prompt/completion pair.
func (c *TokenCounter) Usage(prompt, completion string) TokenUsage {
	in := c.Count(prompt)
	out := c.Count(completion)
	return TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

// EstimateTokens provides a rough, upper-biased token count without an encoding table.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
