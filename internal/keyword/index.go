// Package keyword provides full-text search over search index documents.
package keyword

import (
	"context"

	"github.com/hyperjump/docflow/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means defaults.
type SearchOptions struct {
	// Filters restrict hits to documents whose keyword fields equal every set value.
	Filters models.SearchFilters
	// FileNameBoost multiplies the contribution of file name matches. Values <= 0 mean 2.
	FileNameBoost float64
	// PhraseBoost adds a phrase match clause with this boost when > 1.
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (default 2).
	FuzzyEnabled bool
	Fuzziness    int
	// Highlight requests marked fragments of the matched fields.
	Highlight bool
}

// KeywordIndex stores SearchIndexDocuments and answers scored text queries.
type KeywordIndex interface {
	// Index writes doc under doc.ID, replacing any previous version.
	Index(ctx context.Context, doc *models.SearchIndexDocument) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// Documents loads the stored fields of ids. Unknown ids are absent from the map.
	Documents(ctx context.Context, ids []string) (map[string]*models.SearchIndexDocument, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit with its stored document.
type KeywordResult struct {
	ID         string
	Score      float64
	Highlights []string
	Doc        *models.SearchIndexDocument
}
