package faq

import "time"

// Source identifies where a chat answer came from.
type Source string

const (
	// SourceFAQ means a curated entry met the confidence threshold.
	SourceFAQ Source = "faq"
	// SourceFallback means the configured fallback answer was used.
	SourceFallback Source = "fallback"
)

// Reasons attached to fallback results.
const (
	ReasonBelowThreshold  = "below_threshold"
	ReasonEmptyCatalog    = "empty_catalog"
	ReasonEmbeddingFailed = "embedding_failed"
	ReasonEmptyMessage    = "empty_message"
	ReasonNoComparable    = "no_comparable_entries"
)

// Entry is a canonical question/answer pair with its fingerprint.
type Entry struct {
	ID          int64     `json:"id"`
	Question    string    `json:"question"`
	Normalized  string    `json:"normalized"`
	Answer      string    `json:"answer"`
	CategoryID  *int64    `json:"categoryId,omitempty"`
	Fingerprint []float32 `json:"-"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share fingerprint backing arrays.
func (e Entry) Clone() Entry {
	e.Fingerprint = append([]float32(nil), e.Fingerprint...)
	if e.CategoryID != nil {
		id := *e.CategoryID
		e.CategoryID = &id
	}
	return e
}

// UpsertRequest creates an entry or updates the one with the same normalized question.
type UpsertRequest struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Active     *bool  `json:"active,omitempty"`
	CategoryID *int64 `json:"categoryId,omitempty"`
}

// UpdateRequest patches an entry by id; nil fields are left unchanged and a
// CategoryID of zero removes the category.
type UpdateRequest struct {
	Question   *string `json:"question,omitempty"`
	Answer     *string `json:"answer,omitempty"`
	Active     *bool   `json:"active,omitempty"`
	CategoryID *int64  `json:"categoryId,omitempty"`
}

// MatchResult is the Matcher's verdict for one message.
type MatchResult struct {
	FAQID      *int64  `json:"faqId,omitempty"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Reason     string  `json:"reason,omitempty"`
	Normalized string  `json:"normalized"`
	// CatalogVersion is the store version the snapshot was built from.
	CatalogVersion int64 `json:"catalogVersion"`
}

// Matched reports whether a curated entry was selected.
func (r MatchResult) Matched() bool {
	return r.FAQID != nil
}
