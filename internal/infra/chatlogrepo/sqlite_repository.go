package chatlogrepo

import (
	"context"
	"database/sql"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// SQLiteRepository stores chat logs in SQLite; ids come from AUTOINCREMENT.
type SQLiteRepository struct {
	db  *sql.DB
	now util.Clock
}

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: util.NowUTC}
}

// Append implements chatlog.Repository.
func (r *SQLiteRepository) Append(ctx context.Context, draft chatlog.Draft) (chatlog.Entry, error) {
	timestamp := timestampFor(draft, r.now)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_logs (user_text, answer, matched_faq_id, confidence, source, latency_ms, tokens_in, tokens_out, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.UserText, draft.Answer, draft.MatchedFAQID, draft.Confidence, draft.Source,
		draft.LatencyMs, draft.TokensIn, draft.TokensOut, draft.RequestID, timestamp)
	if err != nil {
		return chatlog.Entry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return chatlog.Entry{}, err
	}
	return chatlog.NewEntry(id, draft, timestamp), nil
}

// Recent implements chatlog.Repository.
func (r *SQLiteRepository) Recent(ctx context.Context, query chatlog.Query) ([]chatlog.Entry, error) {
	query = chatlog.NormalizeQuery(query)
	where, args := buildFilter(query, sqlitePlaceholder)
	args = append(args, query.Limit, query.Offset)
	rows, err := r.db.QueryContext(ctx, `SELECT `+logColumns+` FROM chat_logs`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []chatlog.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count implements chatlog.Repository.
func (r *SQLiteRepository) Count(ctx context.Context, query chatlog.Query) (int64, error) {
	where, args := buildFilter(query, sqlitePlaceholder)
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_logs`+where, args...).Scan(&total)
	return total, err
}

// Stats implements chatlog.Repository.
func (r *SQLiteRepository) Stats(ctx context.Context) (chatlog.Stats, error) {
	var stats chatlog.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(matched_faq_id), COALESCE(AVG(confidence), 0)
		FROM chat_logs
	`).Scan(&stats.Total, &stats.Answered, &stats.AvgConfidence)
	if err != nil {
		return chatlog.Stats{}, err
	}
	stats.Unanswered = stats.Total - stats.Answered
	return stats.ComputeRates(), nil
}

func sqlitePlaceholder(int) string { return "?" }

var _ chatlog.Repository = (*SQLiteRepository)(nil)
