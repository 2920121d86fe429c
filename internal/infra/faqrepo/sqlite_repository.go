package faqrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// SQLiteRepository implements faq.Repository on a single-file database.
// Fingerprints are stored as JSON arrays.
type SQLiteRepository struct {
	db  *sql.DB
	now util.Clock
}

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: util.NowUTC}
}

// List implements faq.Repository.
func (r *SQLiteRepository) List(ctx context.Context) ([]faq.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM faq_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []faq.Entry
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get implements faq.Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (faq.Entry, bool, error) {
	return r.queryOne(ctx, r.db, `SELECT `+entryColumns+` FROM faq_entries WHERE id = ?`, id)
}

// FindByNormalized implements faq.Repository.
func (r *SQLiteRepository) FindByNormalized(ctx context.Context, normalized string) (faq.Entry, bool, error) {
	return r.queryOne(ctx, r.db, `SELECT `+entryColumns+` FROM faq_entries WHERE normalized = ?`, normalized)
}

// Insert implements faq.Repository.
func (r *SQLiteRepository) Insert(ctx context.Context, entry faq.Entry) (faq.Entry, error) {
	fingerprint, err := json.Marshal(entry.Fingerprint)
	if err != nil {
		return faq.Entry{}, fmt.Errorf("encode fingerprint: %w", err)
	}
	now := r.now()
	var stored faq.Entry
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO faq_entries (question, normalized, answer, category_id, fingerprint, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.Question, entry.Normalized, entry.Answer, entry.CategoryID, string(fingerprint), entry.Active, now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := bumpSQLiteVersion(ctx, tx); err != nil {
			return err
		}
		var found bool
		stored, found, err = r.queryOne(ctx, tx, `SELECT `+entryColumns+` FROM faq_entries WHERE id = ?`, id)
		if err == nil && !found {
			err = fmt.Errorf("inserted faq entry %d vanished", id)
		}
		return err
	})
	if err != nil {
		return faq.Entry{}, translateSQLiteError(err)
	}
	return stored, nil
}

// Update implements faq.Repository.
func (r *SQLiteRepository) Update(ctx context.Context, entry faq.Entry) (faq.Entry, bool, error) {
	fingerprint, err := json.Marshal(entry.Fingerprint)
	if err != nil {
		return faq.Entry{}, false, fmt.Errorf("encode fingerprint: %w", err)
	}
	var (
		stored faq.Entry
		found  bool
	)
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE faq_entries
			SET question = ?, normalized = ?, answer = ?, category_id = ?, fingerprint = ?, active = ?, updated_at = ?
			WHERE id = ?`,
			entry.Question, entry.Normalized, entry.Answer, entry.CategoryID, string(fingerprint), entry.Active, r.now(), entry.ID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil || affected == 0 {
			return err
		}
		if err := bumpSQLiteVersion(ctx, tx); err != nil {
			return err
		}
		stored, found, err = r.queryOne(ctx, tx, `SELECT `+entryColumns+` FROM faq_entries WHERE id = ?`, entry.ID)
		return err
	})
	if err != nil {
		return faq.Entry{}, false, translateSQLiteError(err)
	}
	return stored, found, nil
}

// Delete implements faq.Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM faq_entries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = affected > 0
		if !deleted {
			return nil
		}
		return bumpSQLiteVersion(ctx, tx)
	})
	return deleted, err
}

// Version implements faq.Repository.
func (r *SQLiteRepository) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM faq_catalog_state WHERE id = 1`).Scan(&version)
	return version, err
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) queryOne(ctx context.Context, q sqlQuerier, query string, args ...any) (faq.Entry, bool, error) {
	entry, err := scanSQLiteEntry(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return faq.Entry{}, false, nil
	}
	if err != nil {
		return faq.Entry{}, false, err
	}
	return entry, true, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func bumpSQLiteVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE faq_catalog_state SET version = version + 1 WHERE id = 1`)
	return err
}

func translateSQLiteError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		if strings.Contains(sqliteErr.Error(), "faq_categories.slug") {
			return fmt.Errorf("%w: %s", faq.ErrDuplicateSlug, sqliteErr.Error())
		}
		return fmt.Errorf("%w: %s", faq.ErrDuplicateQuestion, sqliteErr.Error())
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %s", faq.ErrUnknownCategory, sqliteErr.Error())
	}
	return err
}

func scanSQLiteEntry(row rowScanner) (faq.Entry, error) {
	var (
		entry       faq.Entry
		fingerprint string
	)
	if err := row.Scan(&entry.ID, &entry.Question, &entry.Normalized, &entry.Answer, &entry.CategoryID, &fingerprint,
		&entry.Active, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return faq.Entry{}, err
	}
	if fingerprint != "" {
		if err := json.Unmarshal([]byte(fingerprint), &entry.Fingerprint); err != nil {
			return faq.Entry{}, fmt.Errorf("decode fingerprint for faq entry %d: %w", entry.ID, err)
		}
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

// ListCategories implements faq.Repository.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]faq.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM faq_categories ORDER BY id`)
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

// GetCategory implements faq.Repository.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (faq.Category, bool, error) {
	return r.queryCategory(ctx, r.db, id)
}

// InsertCategory implements faq.Repository.
func (r *SQLiteRepository) InsertCategory(ctx context.Context, category faq.Category) (faq.Category, error) {
	category.CreatedAt = r.now()
	res, err := r.db.ExecContext(ctx, `INSERT INTO faq_categories (name, slug, created_at) VALUES (?, ?, ?)`,
		category.Name, category.Slug, category.CreatedAt)
	if err != nil {
		return faq.Category{}, translateSQLiteError(err)
	}
	if category.ID, err = res.LastInsertId(); err != nil {
		return faq.Category{}, err
	}
	return category, nil
}

// UpdateCategory implements faq.Repository.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, category faq.Category) (faq.Category, bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE faq_categories SET name = ?, slug = ? WHERE id = ?`,
		category.Name, category.Slug, category.ID)
	if err != nil {
		return faq.Category{}, false, translateSQLiteError(err)
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		return faq.Category{}, false, err
	}
	return r.queryCategory(ctx, r.db, category.ID)
}

// DeleteCategory implements faq.Repository.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE faq_entries SET category_id = NULL, updated_at = ? WHERE category_id = ?`, r.now(), id)
		if err != nil {
			return err
		}
		detached, err := res.RowsAffected()
		if err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM faq_categories WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = affected > 0
		if detached == 0 {
			return nil
		}
		return bumpSQLiteVersion(ctx, tx)
	})
	return deleted, err
}

func (r *SQLiteRepository) queryCategory(ctx context.Context, q sqlQuerier, id int64) (faq.Category, bool, error) {
	category, err := scanCategory(q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM faq_categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return faq.Category{}, false, nil
	}
	if err != nil {
		return faq.Category{}, false, err
	}
	return category, true, nil
}

var _ faq.Repository = (*SQLiteRepository)(nil)
