package faqrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// MemoryRepository is an in-memory faq.Repository used for tests/dev.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	version int64
	now     util.Clock

	records      map[int64]faq.Entry
	byNormalized map[string]int64
	categories   map[int64]faq.Category
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return newMemoryRepository(util.NowUTC)
}

func newMemoryRepository(now util.Clock) *MemoryRepository {
	return &MemoryRepository{
		nextID:       1,
		now:          now.OrNow(),
		records:      make(map[int64]faq.Entry),
		byNormalized: make(map[string]int64),
		categories:   make(map[int64]faq.Category),
	}
}

// List implements faq.Repository.
func (r *MemoryRepository) List(_ context.Context) ([]faq.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]faq.Entry, 0, len(r.records))
	for _, entry := range r.records {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get implements faq.Repository.
func (r *MemoryRepository) Get(_ context.Context, id int64) (faq.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.records[id]
	if !ok {
		return faq.Entry{}, false, nil
	}
	return entry.Clone(), true, nil
}

// FindByNormalized implements faq.Repository.
func (r *MemoryRepository) FindByNormalized(_ context.Context, normalized string) (faq.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNormalized[normalized]
	if !ok {
		return faq.Entry{}, false, nil
	}
	return r.records[id].Clone(), true, nil
}

// Insert implements faq.Repository.
func (r *MemoryRepository) Insert(_ context.Context, entry faq.Entry) (faq.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNormalized[entry.Normalized]; taken {
		return faq.Entry{}, faq.ErrDuplicateQuestion
	}
	if !r.categoryExists(entry.CategoryID) {
		return faq.Entry{}, faq.ErrUnknownCategory
	}
	now := r.now()
	entry.ID = r.nextID
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.nextID++

	stored := entry.Clone()
	r.records[entry.ID] = stored
	r.byNormalized[entry.Normalized] = entry.ID
	r.version++
	return stored.Clone(), nil
}

// Update swaps the whole entry in one step.
func (r *MemoryRepository) Update(_ context.Context, entry faq.Entry) (faq.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[entry.ID]
	if !ok {
		return faq.Entry{}, false, nil
	}
	if owner, taken := r.byNormalized[entry.Normalized]; taken && owner != entry.ID {
		return faq.Entry{}, false, faq.ErrDuplicateQuestion
	}
	if !r.categoryExists(entry.CategoryID) {
		return faq.Entry{}, false, faq.ErrUnknownCategory
	}
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = r.now()

	delete(r.byNormalized, current.Normalized)
	stored := entry.Clone()
	r.records[entry.ID] = stored
	r.byNormalized[entry.Normalized] = entry.ID
	r.version++
	return stored.Clone(), true, nil
}

// Delete implements faq.Repository.
func (r *MemoryRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[id]
	if !ok {
		return false, nil
	}
	delete(r.records, id)
	delete(r.byNormalized, current.Normalized)
	r.version++
	return true, nil
}

// Version implements faq.Repository.
func (r *MemoryRepository) Version(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version, nil
}

// ListCategories implements faq.Repository.
func (r *MemoryRepository) ListCategories(_ context.Context) ([]faq.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]faq.Category, 0, len(r.categories))
	for _, category := range r.categories {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCategory implements faq.Repository.
func (r *MemoryRepository) GetCategory(_ context.Context, id int64) (faq.Category, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	category, ok := r.categories[id]
	return category, ok, nil
}

// InsertCategory implements faq.Repository.
func (r *MemoryRepository) InsertCategory(_ context.Context, category faq.Category) (faq.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(category.Slug, 0) {
		return faq.Category{}, faq.ErrDuplicateSlug
	}
	category.ID = r.nextID
	category.CreatedAt = r.now()
	r.nextID++
	r.categories[category.ID] = category
	return category, nil
}

// UpdateCategory implements faq.Repository.
func (r *MemoryRepository) UpdateCategory(_ context.Context, category faq.Category) (faq.Category, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.categories[category.ID]
	if !ok {
		return faq.Category{}, false, nil
	}
	if r.slugTaken(category.Slug, category.ID) {
		return faq.Category{}, false, faq.ErrDuplicateSlug
	}
	category.CreatedAt = current.CreatedAt
	r.categories[category.ID] = category
	return category, true, nil
}

// DeleteCategory implements faq.Repository.
func (r *MemoryRepository) DeleteCategory(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return false, nil
	}
	delete(r.categories, id)
	detached := false
	for entryID, entry := range r.records {
		if entry.CategoryID != nil && *entry.CategoryID == id {
			entry.CategoryID = nil
			entry.UpdatedAt = r.now()
			r.records[entryID] = entry
			detached = true
		}
	}
	if detached {
		r.version++
	}
	return true, nil
}

func (r *MemoryRepository) categoryExists(id *int64) bool {
	if id == nil {
		return true
	}
	_, ok := r.categories[*id]
	return ok
}

func (r *MemoryRepository) slugTaken(slug string, except int64) bool {
	for id, category := range r.categories {
		if id != except && category.Slug == slug {
			return true
		}
	}
	return false
}

var _ faq.Repository = (*MemoryRepository)(nil)
