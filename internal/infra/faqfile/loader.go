package faqfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

// File is the on-disk seed format.
type File struct {
	FAQs []Item `yaml:"faqs"`
}

// Item is a single seeded question/answer pair.
type Item struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Active   *bool  `yaml:"active"`
}

// Result summarises a seed run.
type Result struct {
	Applied int
	Failed  int
}

// Load parses a YAML seed file.
func Load(path string) ([]faq.UpsertRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	requests := make([]faq.UpsertRequest, 0, len(file.FAQs))
	for i, item := range file.FAQs {
		if strings.TrimSpace(item.Question) == "" || strings.TrimSpace(item.Answer) == "" {
			return nil, fmt.Errorf("seed entry %d: question and answer are required", i+1)
		}
		requests = append(requests, faq.UpsertRequest{
			Question: item.Question,
			Answer:   item.Answer,
			Active:   item.Active,
		})
	}
	return requests, nil
}

// Seeder upserts seed files into the FAQ store.
type Seeder struct {
	store  faq.Store
	logger *slog.Logger
}

// NewSeeder constructs a seeder.
func NewSeeder(store faq.Store, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, logger: logger.With("component", "faqfile.seeder")}
}

// Apply upserts every entry of the file. Individual failures are logged and
// counted; the run continues with the next entry.
func (s *Seeder) Apply(ctx context.Context, path string) (Result, error) {
	requests, err := Load(path)
	if err != nil {
		return Result{}, err
	}
	var result Result
	for _, req := range requests {
		if _, err := s.store.Upsert(ctx, req); err != nil {
			result.Failed++
			s.logger.Error("seed entry failed", "question", req.Question, "error", err)
			continue
		}
		result.Applied++
	}
	s.logger.Info("faq seed applied", "path", path, "applied", result.Applied, "failed", result.Failed)
	return result, nil
}
