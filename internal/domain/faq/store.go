package faq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

const reindexBatchSize = 64

// Store manages the lifecycle of FAQ entries and their fingerprints.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	Upsert(ctx context.Context, req UpsertRequest) (Entry, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (Entry, error)
	Delete(ctx context.Context, id int64) error
	Reindex(ctx context.Context) (int, error)
	Version(ctx context.Context) (int64, error)

	ListByCategory(ctx context.Context, categoryID int64) ([]Entry, error)
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, req CategoryRequest) (Category, error)
	UpdateCategory(ctx context.Context, id int64, req CategoryRequest) (Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type store struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

// NewStore wires the FAQ store on top of a repository and embedder.
func NewStore(repo Repository, embedder Embedder, logger *slog.Logger) Store {
	return &store{
		repo:     repo,
		embedder: embedder,
		logger:   logger.With("component", "faq.store"),
	}
}

func (s *store) List(ctx context.Context) ([]Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "list faq entries failed", err)
	}
	return entries, nil
}

func (s *store) Get(ctx context.Context, id int64) (Entry, error) {
	entry, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodePersistence, "load faq entry failed", err)
	}
	if !found {
		return Entry{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq entry %d not found", id), nil)
	}
	return entry, nil
}

func (s *store) Upsert(ctx context.Context, req UpsertRequest) (Entry, error) {
	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	if question == "" || answer == "" {
		return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question and answer are required", nil)
	}
	normalized := Normalize(question)
	if normalized == "" {
		return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question has no searchable text", nil)
	}

	categoryID, err := s.resolveCategory(ctx, req.CategoryID)
	if err != nil {
		return Entry{}, err
	}
	fingerprint, err := s.fingerprint(ctx, normalized)
	if err != nil {
		return Entry{}, err
	}

	existing, found, err := s.repo.FindByNormalized(ctx, normalized)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodePersistence, "lookup faq entry failed", err)
	}
	if found {
		existing.Question = question
		existing.Answer = answer
		existing.Fingerprint = fingerprint
		if req.Active != nil {
			existing.Active = *req.Active
		}
		if req.CategoryID != nil {
			existing.CategoryID = categoryID
		}
		updated, ok, err := s.repo.Update(ctx, existing)
		if err != nil {
			return Entry{}, s.writeError("update faq entry failed", err)
		}
		if !ok {
			return Entry{}, apperrors.Wrap(apperrors.CodeConflict, "faq entry was removed concurrently", nil)
		}
		s.logger.Info("faq entry updated", "id", updated.ID)
		return updated, nil
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := s.repo.Insert(ctx, Entry{
		Question:    question,
		Normalized:  normalized,
		Answer:      answer,
		CategoryID:  categoryID,
		Fingerprint: fingerprint,
		Active:      active,
	})
	if err != nil {
		return Entry{}, s.writeError("insert faq entry failed", err)
	}
	s.logger.Info("faq entry created", "id", created.ID)
	return created, nil
}

func (s *store) Update(ctx context.Context, id int64, req UpdateRequest) (Entry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}

	if req.Answer != nil {
		answer := strings.TrimSpace(*req.Answer)
		if answer == "" {
			return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "answer cannot be empty", nil)
		}
		entry.Answer = answer
	}
	if req.Active != nil {
		entry.Active = *req.Active
	}
	if req.CategoryID != nil {
		categoryID, err := s.resolveCategory(ctx, req.CategoryID)
		if err != nil {
			return Entry{}, err
		}
		entry.CategoryID = categoryID
	}
	if req.Question != nil {
		question := strings.TrimSpace(*req.Question)
		normalized := Normalize(question)
		if normalized == "" {
			return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question has no searchable text", nil)
		}
		entry.Question = question
		if normalized != entry.Normalized {
			other, found, err := s.repo.FindByNormalized(ctx, normalized)
			if err != nil {
				return Entry{}, apperrors.Wrap(apperrors.CodePersistence, "lookup faq entry failed", err)
			}
			if found && other.ID != id {
				return Entry{}, apperrors.Wrap(apperrors.CodeConflict, fmt.Sprintf("question already used by faq entry %d", other.ID), nil)
			}
			fingerprint, err := s.fingerprint(ctx, normalized)
			if err != nil {
				return Entry{}, err
			}
			entry.Normalized = normalized
			entry.Fingerprint = fingerprint
		}
	}

	updated, ok, err := s.repo.Update(ctx, entry)
	if err != nil {
		return Entry{}, s.writeError("update faq entry failed", err)
	}
	if !ok {
		return Entry{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq entry %d not found", id), nil)
	}
	s.logger.Info("faq entry updated", "id", id)
	return updated, nil
}

func (s *store) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistence, "delete faq entry failed", err)
	}
	if !deleted {
		return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq entry %d not found", id), nil)
	}
	s.logger.Info("faq entry deleted", "id", id)
	return nil
}

// Reindex recomputes every fingerprint with the current embedder. Entries are
// embedded in batches before any of the batch is written.
func (s *store) Reindex(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for start := 0; start < len(entries); start += reindexBatchSize {
		end := min(start+reindexBatchSize, len(entries))
		batch := entries[start:end]
		texts := make([]string, len(batch))
		for i, entry := range batch {
			// refresh normalized form in case the normalizer changed
			batch[i].Normalized = Normalize(entry.Question)
			texts[i] = batch[i].Normalized
		}
		vectors, err := s.embed(ctx, texts)
		if err != nil {
			return count, err
		}
		for i := range batch {
			batch[i].Fingerprint = vectors[i]
			if _, _, err := s.repo.Update(ctx, batch[i]); err != nil {
				return count, s.writeError("reindex faq entry failed", err)
			}
			count++
		}
	}
	s.logger.Info("faq catalog reindexed", "entries", count)
	return count, nil
}

func (s *store) Version(ctx context.Context) (int64, error) {
	version, err := s.repo.Version(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodePersistence, "read faq catalog version failed", err)
	}
	return version, nil
}

func (s *store) fingerprint(ctx context.Context, normalized string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{normalized})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		s.logger.Error("embedding failed", "count", len(texts), "error", err)
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, "compute fingerprint failed", err)
	}
	if len(vectors) != len(texts) {
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	for _, vector := range vectors {
		if len(vector) == 0 {
			return nil, apperrors.Wrap(apperrors.CodeEmbedding, "embedder returned an empty vector", nil)
		}
	}
	return vectors, nil
}

func (s *store) writeError(message string, err error) error {
	if errors.Is(err, ErrDuplicateQuestion) {
		return apperrors.Wrap(apperrors.CodeConflict, "question already exists", err)
	}
	if errors.Is(err, ErrUnknownCategory) {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "category does not exist", err)
	}
	return apperrors.Wrap(apperrors.CodePersistence, message, err)
}
