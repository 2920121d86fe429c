package chatlog

import (
	"context"
	"log/slog"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

// Log is the append-only record of chat exchanges.
type Log struct {
	repo   Repository
	logger *slog.Logger
}

// NewLog wraps a repository with validation and error classification.
func NewLog(repo Repository, logger *slog.Logger) *Log {
	return &Log{repo: repo, logger: logger.With("component", "chatlog")}
}

// Append persists a draft and returns the stored record.
func (l *Log) Append(ctx context.Context, draft Draft) (Entry, error) {
	entry, err := l.repo.Append(ctx, draft)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodePersistence, "append chat log failed", err)
	}
	return entry, nil
}

// Recent returns entries newest first.
func (l *Log) Recent(ctx context.Context, query Query) ([]Entry, error) {
	query = NormalizeQuery(query)
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	entries, err := l.repo.Recent(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "list chat logs failed", err)
	}
	return entries, nil
}

// Page returns one page of matching entries with the total match count.
func (l *Log) Page(ctx context.Context, query Query) (Page, error) {
	query = NormalizeQuery(query)
	if err := validateQuery(query); err != nil {
		return Page{}, err
	}
	total, err := l.repo.Count(ctx, query)
	if err != nil {
		return Page{}, apperrors.Wrap(apperrors.CodePersistence, "count chat logs failed", err)
	}
	var entries []Entry
	if int64(query.Offset) < total {
		entries, err = l.repo.Recent(ctx, query)
		if err != nil {
			return Page{}, apperrors.Wrap(apperrors.CodePersistence, "list chat logs failed", err)
		}
	}
	return newPage(entries, total, query), nil
}

func validateQuery(query Query) error {
	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "from must be before to", nil)
	}
	switch query.Source {
	case "", SourceFAQ, SourceFallback:
	default:
		return apperrors.Wrap(apperrors.CodeInvalidInput, "source must be faq or fallback", nil)
	}
	return nil
}

// Stats aggregates the full log.
func (l *Log) Stats(ctx context.Context) (Stats, error) {
	stats, err := l.repo.Stats(ctx)
	if err != nil {
		return Stats{}, apperrors.Wrap(apperrors.CodePersistence, "chat log stats failed", err)
	}
	return stats.ComputeRates(), nil
}

// NormalizeQuery applies the default and maximum page size and clears a
// negative offset.
func NormalizeQuery(query Query) Query {
	if query.Offset < 0 {
		query.Offset = 0
	}
	switch {
	case query.Limit <= 0:
		query.Limit = DefaultLimit
	case query.Limit > MaxLimit:
		query.Limit = MaxLimit
	}
	return query
}
