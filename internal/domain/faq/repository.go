package faq

import (
	"context"
	"errors"
)

// ErrDuplicateQuestion is returned by repositories when a write would give two
// entries the same normalized question.
var ErrDuplicateQuestion = errors.New("faq: normalized question already exists")

// Repository persists FAQ entries. Every mutation bumps the catalog version
// atomically with the write, and entries are replaced whole.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, bool, error)
	FindByNormalized(ctx context.Context, normalized string) (Entry, bool, error)
	Insert(ctx context.Context, entry Entry) (Entry, error)
	Update(ctx context.Context, entry Entry) (Entry, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Version(ctx context.Context) (int64, error)

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, bool, error)
	InsertCategory(ctx context.Context, category Category) (Category, error)
	UpdateCategory(ctx context.Context, category Category) (Category, bool, error)
	// DeleteCategory detaches the category from its entries before removing it.
	DeleteCategory(ctx context.Context, id int64) (bool, error)
}

// Embedder produces fixed-length fingerprints for free form text. Entries and
// incoming messages must go through the same Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
