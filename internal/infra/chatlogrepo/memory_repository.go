package chatlogrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// MemoryRepository keeps chat logs in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []chatlog.Entry
	now     util.Clock
}

// NewMemoryRepository constructs an empty log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, now: util.NowUTC}
}

// Append implements chatlog.Repository.
func (r *MemoryRepository) Append(_ context.Context, draft chatlog.Draft) (chatlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := chatlog.NewEntry(r.nextID, draft, timestampFor(draft, r.now))
	r.nextID++
	r.entries = append(r.entries, entry)
	return entry, nil
}

// Recent implements chatlog.Repository.
func (r *MemoryRepository) Recent(_ context.Context, query chatlog.Query) ([]chatlog.Entry, error) {
	r.mu.RLock()
	matched := make([]chatlog.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if query.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	query = chatlog.NormalizeQuery(query)
	if query.Offset >= len(matched) {
		return []chatlog.Entry{}, nil
	}
	matched = matched[query.Offset:]
	if len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

// Count implements chatlog.Repository.
func (r *MemoryRepository) Count(_ context.Context, query chatlog.Query) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, entry := range r.entries {
		if query.Matches(entry) {
			total++
		}
	}
	return total, nil
}

// Stats implements chatlog.Repository.
func (r *MemoryRepository) Stats(_ context.Context) (chatlog.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		stats chatlog.Stats
		sum   float64
	)
	for _, entry := range r.entries {
		stats.Total++
		if entry.Answered() {
			stats.Answered++
		} else {
			stats.Unanswered++
		}
		sum += entry.Confidence
	}
	if stats.Total > 0 {
		stats.AvgConfidence = sum / float64(stats.Total)
	}
	return stats.ComputeRates(), nil
}

var _ chatlog.Repository = (*MemoryRepository)(nil)
