package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

// DefaultGeminiModel is used when no embedding model is configured.
const DefaultGeminiModel = "text-embedding-004"

// geminiBatchLimit is the API's maximum number of requests per batch call.
const geminiBatchLimit = 100

// GeminiEmbedder calls the Gemini batch embeddings API.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

// NewGeminiEmbedder opens a Gemini client. Close releases it.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini embedder requires an api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	em := client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeSemanticSimilarity
	return &GeminiEmbedder{
		client: client,
		model:  em,
		logger: logger.With("component", "embedder.gemini"),
	}, nil
}

// Embed requests embeddings in batches of at most geminiBatchLimit texts.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))
		batch := e.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}
		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, embedding := range resp.Embeddings {
			if embedding == nil || len(embedding.Values) == 0 {
				return nil, errors.New("no embedding data received from gemini")
			}
			out = append(out, append([]float32(nil), embedding.Values...))
		}
	}
	return out, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

var _ faq.Embedder = (*GeminiEmbedder)(nil)
