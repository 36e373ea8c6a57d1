package models

import "fmt"

// SearchFilters restricts a search to documents whose metadata matches every set field.
type SearchFilters struct {
	FileType   string `json:"fileType,omitempty"`
	UploadedBy string `json:"uploadedBy,omitempty"`
	Category   string `json:"category,omitempty"`
	Tag        string `json:"tag,omitempty"`
	ThreadID   string `json:"threadId,omitempty"`
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return f == SearchFilters{}
}

// SearchQuery represents a search request with optional filters.
type SearchQuery struct {
	Query           string        `json:"query"`
	Filters         SearchFilters `json:"filters,omitempty"`
	Top             int           `json:"top,omitempty"`
	KeywordEnabled  bool          `json:"keyword_enabled,omitempty"`
	SemanticEnabled bool          `json:"semantic_enabled,omitempty"`
	FuzzyEnabled    bool          `json:"fuzzy_enabled,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes top and enables at least one search type.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return &ValidationError{Code: "query", Reason: "query cannot be empty"}
	}
	if q.Top <= 0 {
		q.Top = 10
	}
	if q.Top > 100 {
		q.Top = 100
	}
	if !q.KeywordEnabled && !q.SemanticEnabled {
		q.KeywordEnabled = true
		q.SemanticEnabled = true
	}
	return nil
}

// String is used in log lines.
func (q *SearchQuery) String() string {
	return fmt.Sprintf("%q top=%d kw=%t sem=%t", q.Query, q.Top, q.KeywordEnabled, q.SemanticEnabled)
}
