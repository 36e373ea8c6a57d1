package keyword

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/docflow/internal/models"
)

// Stored field names.
const (
	fieldID         = "id"
	fieldFileName   = "fileName"
	fieldContent    = "content"
	fieldFileType   = "fileType"
	fieldFileSize   = "fileSize"
	fieldUploadedBy = "uploadedBy"
	fieldUploadedAt = "uploadedAt"
	fieldBlobURL    = "blobUrl"
	fieldPages      = "pages"
	fieldConfidence = "confidence"
	fieldCategories = "categories"
	fieldTags       = "tags"
	fieldThreadID   = "threadId"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// newIndexMapping defines a fixed schema: text fields use the standard analyzer
// (lowercase, no stemming) so "bayes" matches "Bayes"; filterable fields are
// exact keywords; everything is stored so hits can be rendered without the metadata store.
func newIndexMapping() mapping.IndexMapping {
	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		fm.IncludeTermVectors = true
		return fm
	}
	kw := func() *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = true
		return fm
	}
	storedOnly := func(fm *mapping.FieldMapping) *mapping.FieldMapping {
		fm.Store = true
		fm.Index = false
		fm.IncludeInAll = false
		return fm
	}

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldContent, text())
	doc.AddFieldMappingsAt(fieldFileName, text())
	for _, f := range []string{fieldID, fieldFileType, fieldUploadedBy, fieldCategories, fieldTags, fieldThreadID} {
		doc.AddFieldMappingsAt(f, kw())
	}
	doc.AddFieldMappingsAt(fieldUploadedAt, storedOnly(bleve.NewKeywordFieldMapping()))
	doc.AddFieldMappingsAt(fieldBlobURL, storedOnly(bleve.NewKeywordFieldMapping()))
	for _, f := range []string{fieldFileSize, fieldPages, fieldConfidence} {
		doc.AddFieldMappingsAt(f, storedOnly(bleve.NewNumericFieldMapping()))
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// NewBleveIndex opens the index at path, creating it with the document schema if absent.
// Opening an existing index keeps its documents. If the schema changes, remove the
// directory so it is recreated.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	index, err := bleve.New(path, newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex returns an index that lives only in memory.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func toFields(doc *models.SearchIndexDocument) map[string]interface{} {
	m := map[string]interface{}{
		fieldID:         doc.ID,
		fieldFileName:   doc.FileName,
		fieldContent:    doc.Content,
		fieldFileType:   doc.FileType,
		fieldFileSize:   float64(doc.FileSize),
		fieldUploadedBy: doc.UploadedBy,
		fieldBlobURL:    doc.BlobURL,
		fieldPages:      float64(doc.Pages),
		fieldConfidence: doc.Confidence,
	}
	if !doc.UploadedAt.IsZero() {
		m[fieldUploadedAt] = doc.UploadedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(doc.Categories) > 0 {
		m[fieldCategories] = doc.Categories
	}
	if len(doc.Tags) > 0 {
		m[fieldTags] = doc.Tags
	}
	if doc.ThreadID != "" {
		m[fieldThreadID] = doc.ThreadID
	}
	return m
}

// Index replaces the stored document with doc. Vectors are not stored here.
func (b *BleveIndex) Index(ctx context.Context, doc *models.SearchIndexDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	return b.index.Index(doc.ID, toFields(doc))
}

// IndexBatch writes several documents in one batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs []*models.SearchIndexDocument) error {
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, toFields(doc)); err != nil {
			return err
		}
	}
	return b.index.Batch(batch)
}

// buildQuery combines a text query over content and file name with exact-match filters.
// Scores add up across clauses, so a document matching in both fields outranks one
// matching in either alone, and a phrase match adds a further boost.
func buildQuery(text string, opts *SearchOptions) blevequery.Query {
	fileNameBoost := 2.0
	if opts.FileNameBoost > 0 {
		fileNameBoost = opts.FileNameBoost
	}
	fuzziness := 2
	if opts.Fuzziness > 0 {
		fuzziness = opts.Fuzziness
	}

	bq := bleve.NewBooleanQuery()
	for _, field := range []string{fieldContent, fieldFileName} {
		boost := 1.0
		if field == fieldFileName {
			boost = fileNameBoost
		}
		if opts.FuzzyEnabled {
			for _, term := range tokenizeQuery(text) {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetFuzziness(fuzziness)
				fq.SetField(field)
				fq.SetBoost(boost)
				bq.AddShould(fq)
			}
			continue
		}
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		mq.SetBoost(boost)
		bq.AddShould(mq)
	}
	if opts.PhraseBoost > 1 && len(tokenizeQuery(text)) > 1 {
		pq := bleve.NewMatchPhraseQuery(text)
		pq.SetField(fieldContent)
		pq.SetBoost(opts.PhraseBoost)
		bq.AddShould(pq)
	}
	bq.SetMinShould(1)

	for field, value := range filterTerms(opts.Filters) {
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		bq.AddMust(tq)
	}
	return bq
}

func filterTerms(f models.SearchFilters) map[string]string {
	terms := make(map[string]string)
	set := func(field, v string) {
		if v != "" {
			terms[field] = v
		}
	}
	set(fieldFileType, strings.ToLower(strings.TrimPrefix(f.FileType, ".")))
	set(fieldUploadedBy, f.UploadedBy)
	set(fieldCategories, f.Category)
	set(fieldTags, f.Tag)
	set(fieldThreadID, f.ThreadID)
	return terms
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Search returns up to limit hits ordered by descending score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(buildQuery(query, opts), limit, 0, false)
	req.Fields = []string{"*"}
	if opts.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(fieldContent)
		req.Highlight.AddField(fieldFileName)
	}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &KeywordResult{ID: hit.ID, Score: hit.Score, Doc: fromFields(hit.ID, hit.Fields)}
		for _, field := range []string{fieldContent, fieldFileName} {
			r.Highlights = append(r.Highlights, hit.Fragments[field]...)
		}
		out = append(out, r)
	}
	return out, nil
}

// Documents loads stored fields for ids with a doc-ID query.
func (b *BleveIndex) Documents(ctx context.Context, ids []string) (map[string]*models.SearchIndexDocument, error) {
	out := make(map[string]*models.SearchIndexDocument, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = []string{"*"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve document lookup failed: %w", err)
	}
	for _, hit := range res.Hits {
		out[hit.ID] = fromFields(hit.ID, hit.Fields)
	}
	return out, nil
}

// Delete removes a document. Deleting an unknown id is not an error.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
