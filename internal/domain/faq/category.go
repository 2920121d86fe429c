package faq

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

var (
	// ErrDuplicateSlug is returned by repositories when two categories would share a slug.
	ErrDuplicateSlug = errors.New("faq: category slug already exists")
	// ErrUnknownCategory is returned by repositories when an entry references a missing category.
	ErrUnknownCategory = errors.New("faq: category does not exist")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Category groups FAQ entries for administration. It has no effect on matching.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryRequest creates or renames a category.
type CategoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (r CategoryRequest) validate() (Category, error) {
	name := strings.TrimSpace(r.Name)
	slug := strings.ToLower(strings.TrimSpace(r.Slug))
	if name == "" {
		return Category{}, apperrors.Wrap(apperrors.CodeInvalidInput, "category name is required", nil)
	}
	if !slugPattern.MatchString(slug) {
		return Category{}, apperrors.Wrap(apperrors.CodeInvalidInput, "slug must be lowercase latin letters, digits and single dashes", nil)
	}
	return Category{Name: name, Slug: slug}, nil
}

func (s *store) ListByCategory(ctx context.Context, categoryID int64) ([]Entry, error) {
	if _, err := s.category(ctx, categoryID); err != nil {
		return nil, err
	}
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, entry := range entries {
		if entry.CategoryID != nil && *entry.CategoryID == categoryID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *store) Categories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "list categories failed", err)
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func (s *store) CreateCategory(ctx context.Context, req CategoryRequest) (Category, error) {
	category, err := req.validate()
	if err != nil {
		return Category{}, err
	}
	created, err := s.repo.InsertCategory(ctx, category)
	if err != nil {
		return Category{}, s.categoryWriteError("insert category failed", err)
	}
	s.logger.Info("faq category created", "id", created.ID, "slug", created.Slug)
	return created, nil
}

func (s *store) UpdateCategory(ctx context.Context, id int64, req CategoryRequest) (Category, error) {
	category, err := req.validate()
	if err != nil {
		return Category{}, err
	}
	category.ID = id
	updated, found, err := s.repo.UpdateCategory(ctx, category)
	if err != nil {
		return Category{}, s.categoryWriteError("update category failed", err)
	}
	if !found {
		return Category{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("category %d not found", id), nil)
	}
	s.logger.Info("faq category updated", "id", id)
	return updated, nil
}

// DeleteCategory removes a category; its entries stay in the catalog uncategorised.
func (s *store) DeleteCategory(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteCategory(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistence, "delete category failed", err)
	}
	if !deleted {
		return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("category %d not found", id), nil)
	}
	s.logger.Info("faq category deleted", "id", id)
	return nil
}

func (s *store) category(ctx context.Context, id int64) (Category, error) {
	category, found, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, apperrors.Wrap(apperrors.CodePersistence, "load category failed", err)
	}
	if !found {
		return Category{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("category %d not found", id), nil)
	}
	return category, nil
}

// resolveCategory checks that a requested category exists. Zero clears it.
func (s *store) resolveCategory(ctx context.Context, requested *int64) (*int64, error) {
	if requested == nil || *requested == 0 {
		return nil, nil
	}
	if _, err := s.category(ctx, *requested); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("category %d does not exist", *requested), nil)
		}
		return nil, err
	}
	id := *requested
	return &id, nil
}

func (s *store) categoryWriteError(message string, err error) error {
	if errors.Is(err, ErrDuplicateSlug) {
		return apperrors.Wrap(apperrors.CodeConflict, "category slug already exists", err)
	}
	return apperrors.Wrap(apperrors.CodePersistence, message, err)
}
