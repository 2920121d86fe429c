package faqrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const (
	entryColumns    = `id, question, normalized, answer, category_id, fingerprint, active, created_at, updated_at`
	categoryColumns = `id, name, slug, created_at`
)

// PostgresRepository implements faq.Repository using pgx and pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List returns every entry ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]faq.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM faq_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []faq.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get fetches an entry by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (faq.Entry, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM faq_entries WHERE id = $1`, id)
	return scanOptional(row)
}

// FindByNormalized fetches by canonical question text.
func (r *PostgresRepository) FindByNormalized(ctx context.Context, normalized string) (faq.Entry, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM faq_entries WHERE normalized = $1`, normalized)
	return scanOptional(row)
}

// Insert adds a row and bumps the catalog version in one transaction.
func (r *PostgresRepository) Insert(ctx context.Context, entry faq.Entry) (faq.Entry, error) {
	var stored faq.Entry
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO faq_entries (question, normalized, answer, category_id, fingerprint, active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+entryColumns,
			entry.Question, entry.Normalized, entry.Answer, entry.CategoryID, pgvector.NewVector(entry.Fingerprint), entry.Active)
		var err error
		if stored, err = scanEntry(row); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return faq.Entry{}, translateError(err)
	}
	return stored, nil
}

// Update replaces the mutable columns of an entry.
func (r *PostgresRepository) Update(ctx context.Context, entry faq.Entry) (faq.Entry, bool, error) {
	var (
		stored faq.Entry
		found  bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE faq_entries
			SET question = $2, normalized = $3, answer = $4, category_id = $5, fingerprint = $6, active = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING `+entryColumns,
			entry.ID, entry.Question, entry.Normalized, entry.Answer, entry.CategoryID, pgvector.NewVector(entry.Fingerprint), entry.Active)
		var err error
		stored, found, err = scanOptional(row)
		if err != nil || !found {
			return err
		}
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return faq.Entry{}, false, translateError(err)
	}
	return stored, found, nil
}

// Delete removes an entry by id.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM faq_entries WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		if !deleted {
			return nil
		}
		return bumpVersion(ctx, tx)
	})
	return deleted, err
}

// Version reads the catalog version counter.
func (r *PostgresRepository) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM faq_catalog_state WHERE id = 1`).Scan(&version)
	return version, err
}

func bumpVersion(ctx context.Context, tx pgx.Tx) error {
	tag, err := tx.Exec(ctx, `UPDATE faq_catalog_state SET version = version + 1 WHERE id = 1`)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("faq_catalog_state row missing")
	}
	return nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		if pgErr.ConstraintName == "faq_categories_slug_key" {
			return fmt.Errorf("%w: %s", faq.ErrDuplicateSlug, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: %s", faq.ErrDuplicateQuestion, pgErr.ConstraintName)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", faq.ErrUnknownCategory, pgErr.ConstraintName)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptional(row rowScanner) (faq.Entry, bool, error) {
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return faq.Entry{}, false, nil
	}
	if err != nil {
		return faq.Entry{}, false, err
	}
	return entry, true, nil
}

func scanEntry(row rowScanner) (faq.Entry, error) {
	var (
		entry       faq.Entry
		fingerprint pgvector.Vector
	)
	if err := row.Scan(&entry.ID, &entry.Question, &entry.Normalized, &entry.Answer, &entry.CategoryID, &fingerprint,
		&entry.Active, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return faq.Entry{}, err
	}
	entry.Fingerprint = append([]float32(nil), fingerprint.Slice()...)
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

// ListCategories returns every category ordered by id.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]faq.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM faq_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []faq.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// GetCategory fetches a category by id.
func (r *PostgresRepository) GetCategory(ctx context.Context, id int64) (faq.Category, bool, error) {
	category, err := scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM faq_categories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return faq.Category{}, false, nil
	}
	if err != nil {
		return faq.Category{}, false, err
	}
	return category, true, nil
}

// InsertCategory adds a category.
func (r *PostgresRepository) InsertCategory(ctx context.Context, category faq.Category) (faq.Category, error) {
	stored, err := scanCategory(r.pool.QueryRow(ctx, `
		INSERT INTO faq_categories (name, slug) VALUES ($1, $2)
		RETURNING `+categoryColumns, category.Name, category.Slug))
	if err != nil {
		return faq.Category{}, translateError(err)
	}
	return stored, nil
}

// UpdateCategory renames a category.
func (r *PostgresRepository) UpdateCategory(ctx context.Context, category faq.Category) (faq.Category, bool, error) {
	stored, err := scanCategory(r.pool.QueryRow(ctx, `
		UPDATE faq_categories SET name = $2, slug = $3 WHERE id = $1
		RETURNING `+categoryColumns, category.ID, category.Name, category.Slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return faq.Category{}, false, nil
	}
	if err != nil {
		return faq.Category{}, false, translateError(err)
	}
	return stored, true, nil
}

// DeleteCategory detaches the category's entries and removes it.
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		detached, err := tx.Exec(ctx, `UPDATE faq_entries SET category_id = NULL, updated_at = NOW() WHERE category_id = $1`, id)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM faq_categories WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		if detached.RowsAffected() == 0 {
			return nil
		}
		return bumpVersion(ctx, tx)
	})
	return deleted, err
}

func scanCategory(row rowScanner) (faq.Category, error) {
	var category faq.Category
	if err := row.Scan(&category.ID, &category.Name, &category.Slug, &category.CreatedAt); err != nil {
		return faq.Category{}, err
	}
	category.CreatedAt = category.CreatedAt.UTC()
	return category, nil
}

var _ faq.Repository = (*PostgresRepository)(nil)
