package chatlog

import "context"

// Repository persists chat log entries. Ids are assigned by the repository and
// increase with insertion order. Count ignores Limit and Offset.
type Repository interface {
	Append(ctx context.Context, draft Draft) (Entry, error)
	Recent(ctx context.Context, query Query) ([]Entry, error)
	Count(ctx context.Context, query Query) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}
