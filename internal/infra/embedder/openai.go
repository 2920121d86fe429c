package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

// DefaultOpenAIModel is used when no embedding model is configured.
const DefaultOpenAIModel = openai.SmallEmbedding3

// maxBatchTokens stays well below the provider's per-request cap.
const maxBatchTokens = 200_000

// tokenCounter estimates request size before batching.
type tokenCounter interface {
	Count(text string) int
}

type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client embeddingsAPI
	model  openai.EmbeddingModel
	tokens tokenCounter
	logger *slog.Logger
}

// NewOpenAIEmbedder builds the embedder from an API key and optional base URL.
func NewOpenAIEmbedder(cfg OpenAIConfig, tokens tokenCounter, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai embedder requires an api key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return newOpenAIEmbedder(openai.NewClientWithConfig(clientCfg), cfg.Model, tokens, logger), nil
}

func newOpenAIEmbedder(client embeddingsAPI, model string, tokens tokenCounter, logger *slog.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	m := openai.EmbeddingModel(strings.TrimSpace(model))
	if m == "" {
		m = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		client: client,
		model:  m,
		tokens: tokens,
		logger: logger.With("component", "embedder.openai"),
	}
}

// Embed requests embeddings, splitting the input into token-bounded batches.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([][]float32, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: batch,
			Model: e.model,
		})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d got %d", len(batch), len(resp.Data))
		}
		vectors := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return fmt.Errorf("embedding index %d out of range", item.Index)
			}
			vectors[item.Index] = append([]float32(nil), item.Embedding...)
		}
		out = append(out, vectors...)
		e.logger.Debug("embedding batch complete", "texts", len(batch), "promptTokens", resp.Usage.PromptTokens)
		batch = nil
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := e.tokens.Count(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", tokens)
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ faq.Embedder = (*OpenAIEmbedder)(nil)
