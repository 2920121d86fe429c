package chatlog

import "time"

const (
	// DefaultLimit is used when a query does not set one.
	DefaultLimit = 20
	// MaxLimit caps a single page of log entries.
	MaxLimit = 500
)

// Draft is a chat exchange that has not been persisted yet.
type Draft struct {
	UserText     string  `json:"userText"`
	Answer       string  `json:"answer"`
	MatchedFAQID *int64  `json:"matchedFaqId,omitempty"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
	LatencyMs    int64   `json:"latencyMs"`
	TokensIn     int     `json:"tokensIn"`
	TokensOut    int     `json:"tokensOut"`
	RequestID    string  `json:"requestId,omitempty"`
	// OccurredAt is set when the answer was produced; replayed drafts keep it.
	OccurredAt time.Time `json:"occurredAt"`
}

// Entry is a persisted, immutable chat log record.
type Entry struct {
	ID           int64     `json:"id"`
	UserText     string    `json:"userText"`
	Answer       string    `json:"answer"`
	MatchedFAQID *int64    `json:"matchedFaqId,omitempty"`
	Confidence   float64   `json:"confidence"`
	Source       string    `json:"source"`
	LatencyMs    int64     `json:"latencyMs"`
	TokensIn     int       `json:"tokensIn"`
	TokensOut    int       `json:"tokensOut"`
	RequestID    string    `json:"requestId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Answered reports whether a curated FAQ entry produced the answer.
func (e Entry) Answered() bool {
	return e.MatchedFAQID != nil
}

// NewEntry copies a draft into an entry with the given identity.
func NewEntry(id int64, draft Draft, timestamp time.Time) Entry {
	entry := Entry{
		ID:         id,
		UserText:   draft.UserText,
		Answer:     draft.Answer,
		Confidence: draft.Confidence,
		Source:     draft.Source,
		LatencyMs:  draft.LatencyMs,
		TokensIn:   draft.TokensIn,
		TokensOut:  draft.TokensOut,
		RequestID:  draft.RequestID,
		Timestamp:  timestamp,
	}
	if draft.MatchedFAQID != nil {
		faqID := *draft.MatchedFAQID
		entry.MatchedFAQID = &faqID
	}
	return entry
}

// Sources a log entry can carry.
const (
	SourceFAQ      = "faq"
	SourceFallback = "fallback"
)

// Query filters Recent. From is inclusive, To is exclusive. Offset skips
// that many matching entries in newest-first order.
type Query struct {
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
	UnansweredOnly bool       `json:"unansweredOnly"`
	Source         string     `json:"source,omitempty"`
}

// Matches reports whether entry passes the time, answered and source filters.
func (q Query) Matches(entry Entry) bool {
	if q.Source != "" && entry.Source != q.Source {
		return false
	}
	if q.From != nil && entry.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && !entry.Timestamp.Before(*q.To) {
		return false
	}
	if q.UnansweredOnly && entry.Answered() {
		return false
	}
	return true
}

// Page is one slice of a filtered listing plus the size of the whole result.
type Page struct {
	Items      []Entry `json:"items"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

func newPage(items []Entry, total int64, query Query) Page {
	if items == nil {
		items = []Entry{}
	}
	pages := int((total + int64(query.Limit) - 1) / int64(query.Limit))
	return Page{
		Items:      items,
		Total:      total,
		Page:       query.Offset/query.Limit + 1,
		PageSize:   query.Limit,
		TotalPages: pages,
	}
}

// Stats summarises the whole log.
type Stats struct {
	Total          int64   `json:"total"`
	Answered       int64   `json:"answered"`
	Unanswered     int64   `json:"unanswered"`
	SuccessRate    float64 `json:"successRate"`
	UnansweredRate float64 `json:"unansweredRate"`
	AvgConfidence  float64 `json:"avgConfidence"`
	// Spooled counts drafts waiting for replay; they are not in Total yet.
	Spooled int64 `json:"spooled"`
}

// ComputeRates fills the derived ratios from the counters.
func (s Stats) ComputeRates() Stats {
	if s.Total == 0 {
		s.SuccessRate, s.UnansweredRate = 0, 0
		return s
	}
	s.SuccessRate = float64(s.Answered) / float64(s.Total)
	s.UnansweredRate = float64(s.Unanswered) / float64(s.Total)
	return s
}
