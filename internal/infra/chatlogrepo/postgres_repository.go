package chatlogrepo

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

const logColumns = `id, user_text, answer, matched_faq_id, confidence, source, latency_ms, tokens_in, tokens_out, request_id, created_at`

// PostgresRepository stores chat logs in Postgres; ids come from BIGSERIAL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	now  util.Clock
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: util.NowUTC}
}

// Append implements chatlog.Repository.
func (r *PostgresRepository) Append(ctx context.Context, draft chatlog.Draft) (chatlog.Entry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat_logs (user_text, answer, matched_faq_id, confidence, source, latency_ms, tokens_in, tokens_out, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+logColumns,
		draft.UserText, draft.Answer, draft.MatchedFAQID, draft.Confidence, draft.Source,
		draft.LatencyMs, draft.TokensIn, draft.TokensOut, draft.RequestID, timestampFor(draft, r.now))
	return scanEntry(row)
}

// Recent implements chatlog.Repository.
func (r *PostgresRepository) Recent(ctx context.Context, query chatlog.Query) ([]chatlog.Entry, error) {
	query = chatlog.NormalizeQuery(query)
	where, args := buildFilter(query, postgresPlaceholder)
	args = append(args, query.Limit, query.Offset)
	sql := `SELECT ` + logColumns + ` FROM chat_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + postgresPlaceholder(len(args)-1) +
		` OFFSET ` + postgresPlaceholder(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
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
func (r *PostgresRepository) Count(ctx context.Context, query chatlog.Query) (int64, error) {
	where, args := buildFilter(query, postgresPlaceholder)
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_logs`+where, args...).Scan(&total)
	return total, err
}

// Stats implements chatlog.Repository.
func (r *PostgresRepository) Stats(ctx context.Context) (chatlog.Stats, error) {
	var stats chatlog.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(matched_faq_id),
		       COALESCE(AVG(confidence), 0)
		FROM chat_logs
	`).Scan(&stats.Total, &stats.Answered, &stats.AvgConfidence)
	if err != nil {
		return chatlog.Stats{}, err
	}
	stats.Unanswered = stats.Total - stats.Answered
	return stats.ComputeRates(), nil
}

func postgresPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (chatlog.Entry, error) {
	var entry chatlog.Entry
	if err := row.Scan(&entry.ID, &entry.UserText, &entry.Answer, &entry.MatchedFAQID, &entry.Confidence,
		&entry.Source, &entry.LatencyMs, &entry.TokensIn, &entry.TokensOut, &entry.RequestID, &entry.Timestamp); err != nil {
		return chatlog.Entry{}, err
	}
	entry.Timestamp = entry.Timestamp.UTC()
	return entry, nil
}

// buildFilter renders the WHERE clause shared by the SQL backends.
func buildFilter(query chatlog.Query, placeholder func(n int) string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if query.From != nil {
		args = append(args, query.From.UTC())
		clauses = append(clauses, "created_at >= "+placeholder(len(args)))
	}
	if query.To != nil {
		args = append(args, query.To.UTC())
		clauses = append(clauses, "created_at < "+placeholder(len(args)))
	}
	if query.UnansweredOnly {
		clauses = append(clauses, "matched_faq_id IS NULL")
	}
	if query.Source != "" {
		args = append(args, query.Source)
		clauses = append(clauses, "source = "+placeholder(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var _ chatlog.Repository = (*PostgresRepository)(nil)
