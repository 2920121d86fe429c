package faq

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

// Catalog is the read side of the FAQ store the Matcher depends on.
type Catalog interface {
	List(ctx context.Context) ([]Entry, error)
	Version(ctx context.Context) (int64, error)
}

// Matcher finds the FAQ entry closest to a message.
type Matcher struct {
	cfg      MatcherConfig
	catalog  Catalog
	embedder Embedder
	logger   *slog.Logger

	snapshot atomic.Pointer[snapshot]
	refresh  sync.Mutex
}

type snapshot struct {
	version int64
	entries []indexedEntry
}

type indexedEntry struct {
	id          int64
	answer      string
	fingerprint []float32
	norm        float64
}

// NewMatcher builds a Matcher; the snapshot is loaded on first use.
func NewMatcher(cfg MatcherConfig, catalog Catalog, embedder Embedder, logger *slog.Logger) *Matcher {
	return &Matcher{
		cfg:      cfg.withDefaults(),
		catalog:  catalog,
		embedder: embedder,
		logger:   logger.With("component", "faq.matcher"),
	}
}

// Threshold returns the effective confidence threshold.
func (m *Matcher) Threshold() float64 {
	return m.cfg.Threshold
}

// Warm loads the snapshot ahead of the first request.
func (m *Matcher) Warm(ctx context.Context) error {
	_, err := m.current(ctx)
	return err
}

// Match scores message against every active entry. Only catalog read
// failures are returned as errors; everything else degrades to the fallback.
func (m *Matcher) Match(ctx context.Context, message string) (MatchResult, error) {
	normalized := Normalize(message)
	snap, err := m.current(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	if normalized == "" {
		return m.fallback(normalized, snap.version, 0, ReasonEmptyMessage), nil
	}
	if len(snap.entries) == 0 {
		return m.fallback(normalized, snap.version, 0, ReasonEmptyCatalog), nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{normalized})
	if err != nil || len(vectors) != 1 || len(vectors[0]) == 0 {
		m.logger.Warn("message embedding failed", "error", err, "vectors", len(vectors))
		return m.fallback(normalized, snap.version, 0, ReasonEmbeddingFailed), nil
	}
	query := vectors[0]
	queryNorm := magnitude(query)

	best := -1
	bestSim := math.Inf(-1)
	skipped := 0
	for i, entry := range snap.entries {
		if len(entry.fingerprint) != len(query) {
			skipped++
			continue
		}
		sim := cosineWithNorms(query, queryNorm, entry.fingerprint, entry.norm)
		// entries are sorted by id, so strict > keeps the lowest id on ties
		if sim > bestSim {
			best = i
			bestSim = sim
		}
	}
	if skipped > 0 {
		m.logger.Warn("skipped entries with mismatched fingerprint dimensions",
			"skipped", skipped, "queryDims", len(query), "catalogVersion", snap.version)
	}
	if best < 0 {
		return m.fallback(normalized, snap.version, 0, ReasonNoComparable), nil
	}

	confidence := clampConfidence(bestSim)
	if confidence < m.cfg.Threshold {
		return m.fallback(normalized, snap.version, confidence, ReasonBelowThreshold), nil
	}
	winner := snap.entries[best]
	id := winner.id
	return MatchResult{
		FAQID:          &id,
		Answer:         winner.answer,
		Confidence:     confidence,
		Source:         SourceFAQ,
		Normalized:     normalized,
		CatalogVersion: snap.version,
	}, nil
}

func (m *Matcher) fallback(normalized string, version int64, confidence float64, reason string) MatchResult {
	return MatchResult{
		Answer:         m.cfg.FallbackAnswer,
		Confidence:     confidence,
		Source:         SourceFallback,
		Reason:         reason,
		Normalized:     normalized,
		CatalogVersion: version,
	}
}

func (m *Matcher) current(ctx context.Context) (*snapshot, error) {
	version, err := m.catalog.Version(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "read faq catalog version failed", err)
	}
	if snap := m.snapshot.Load(); snap != nil && snap.version == version {
		return snap, nil
	}

	m.refresh.Lock()
	defer m.refresh.Unlock()
	if snap := m.snapshot.Load(); snap != nil && snap.version == version {
		return snap, nil
	}

	entries, err := m.catalog.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "load faq catalog failed", err)
	}
	snap := buildSnapshot(version, entries)
	m.snapshot.Store(snap)
	m.logger.Info("faq snapshot refreshed", "catalogVersion", version, "entries", len(snap.entries))
	return snap, nil
}

func buildSnapshot(version int64, entries []Entry) *snapshot {
	indexed := make([]indexedEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Active || len(entry.Fingerprint) == 0 {
			continue
		}
		fingerprint := append([]float32(nil), entry.Fingerprint...)
		indexed = append(indexed, indexedEntry{
			id:          entry.ID,
			answer:      entry.Answer,
			fingerprint: fingerprint,
			norm:        magnitude(fingerprint),
		})
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].id < indexed[j].id })
	return &snapshot{version: version, entries: indexed}
}
