package models

import "time"

// SearchResult represents a single ranked hit.
type SearchResult struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	UploadedBy    string    `json:"uploadedBy"`
	UploadedAt    time.Time `json:"uploadedAt"`
	BlobURL       string    `json:"blobUrl"`
	Pages         int       `json:"pages"`
	Categories    []string  `json:"categories,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	ThreadID      string    `json:"threadId,omitempty"`
	Score         float64   `json:"score"`
	KeywordScore  float64   `json:"keyword_score"`
	SemanticScore float64   `json:"semantic_score"`
	Highlights    []string  `json:"highlights,omitempty"`
	Rank          int       `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}

// IndexStats describes the search index.
type IndexStats struct {
	DocumentCount uint64 `json:"documentCount"`
	VectorCount   int    `json:"vectorCount"`
	// DiskBytes is the on-disk size of the local index files, 0 when remote or in memory.
	DiskBytes int64 `json:"diskBytes"`
}

// Stats aggregates non-deleted document records.
type Stats struct {
	Total      int                    `json:"total"`
	ByStatus   map[DocumentStatus]int `json:"byStatus"`
	ByType     map[string]int         `json:"byType"`
	TotalSize  int64                  `json:"totalSize"`
	IndexStats *IndexStats            `json:"indexStats,omitempty"`
}

// NewStats returns a zeroed Stats with initialized maps.
func NewStats() *Stats {
	return &Stats{
		ByStatus: make(map[DocumentStatus]int),
		ByType:   make(map[string]int),
	}
}

// Add counts rec. Deleted records are ignored.
func (s *Stats) Add(rec *DocumentRecord) {
	if rec == nil || rec.IsDeleted {
		return
	}
	s.Total++
	s.ByStatus[rec.Status]++
	s.ByType[rec.FileType]++
	s.TotalSize += rec.FileSize
}

// UploadResult is returned by an upload before background processing completes.
type UploadResult struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId,omitempty"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// ChatUploadResult reports a synchronous chat-file ingestion.
type ChatUploadResult struct {
	ThreadID      string   `json:"threadId"`
	FileName      string   `json:"fileName"`
	ChunkIDs      []string `json:"chunkIds"`
	SkippedChunks int      `json:"skippedChunks"`
}

// Download is the raw content of a stored file.
type Download struct {
	Content     []byte
	ContentType string
	FileName    string
}
