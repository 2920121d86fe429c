package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 2, EstimateTokens("abcd"))
	// never below the word count
	require.Equal(t, 3, EstimateTokens("a b c"))
}

func TestUsageFallsBackToEstimate(t *testing.T) {
	// unknown encodings never load, so counts come from EstimateTokens
	counter := NewTokenCounter("no-such-encoding")
	usage := counter.Usage("سلام دوست", "")
	require.Equal(t, EstimateTokens("سلام دوست"), usage.PromptTokens)
	require.Zero(t, usage.CompletionTokens)
	require.Equal(t, usage.PromptTokens, usage.TotalTokens)

	usage = counter.Usage("abcd", "abcdef")
	require.Equal(t, TokenUsage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, usage)
}
