// Package models defines core data structures for documents, queries, and search results.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the processing lifecycle state of a DocumentRecord.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further pipeline transition may leave s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DocumentRecord is the status-tracked metadata for one uploaded file.
// ID is shared with the search index entry.
type DocumentRecord struct {
	ID              string         `json:"id" firestore:"id"`
	FileName        string         `json:"fileName" firestore:"fileName"`
	FileType        string         `json:"fileType" firestore:"fileType"`
	FileSize        int64          `json:"fileSize" firestore:"fileSize"`
	UploadedBy      string         `json:"uploadedBy" firestore:"uploadedBy"`
	UploadedAt      time.Time      `json:"uploadedAt" firestore:"uploadedAt"`
	BlobName        string         `json:"blobName" firestore:"blobName"`
	BlobURL         string         `json:"blobUrl" firestore:"blobUrl"`
	SearchIndexID   string         `json:"searchIndexId,omitempty" firestore:"searchIndexId"`
	Pages           int            `json:"pages" firestore:"pages"`
	Confidence      float64        `json:"confidence" firestore:"confidence"`
	Status          DocumentStatus `json:"status" firestore:"status"`
	ProcessingError string         `json:"processingError,omitempty" firestore:"processingError"`
	Tags            []string       `json:"tags" firestore:"tags"`
	Categories      []string       `json:"categories" firestore:"categories"`
	Description     string         `json:"description" firestore:"description"`
	IsDeleted       bool           `json:"isDeleted" firestore:"isDeleted"`
	CreatedAt       time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt" firestore:"updatedAt"`
}

// DocumentPatch is a partial update. Nil fields are left unchanged.
type DocumentPatch struct {
	Status          *DocumentStatus `json:"status,omitempty"`
	SearchIndexID   *string         `json:"searchIndexId,omitempty"`
	Pages           *int            `json:"pages,omitempty"`
	Confidence      *float64        `json:"confidence,omitempty"`
	ProcessingError *string         `json:"processingError,omitempty"`
	Tags            *[]string       `json:"tags,omitempty"`
	Categories      *[]string       `json:"categories,omitempty"`
	Description     *string         `json:"description,omitempty"`
}

// Apply merges the non-nil fields of p into rec.
func (p *DocumentPatch) Apply(rec *DocumentRecord) {
	if p == nil || rec == nil {
		return
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.SearchIndexID != nil {
		rec.SearchIndexID = *p.SearchIndexID
	}
	if p.Pages != nil {
		rec.Pages = *p.Pages
	}
	if p.Confidence != nil {
		rec.Confidence = *p.Confidence
	}
	if p.ProcessingError != nil {
		rec.ProcessingError = *p.ProcessingError
	}
	if p.Tags != nil {
		rec.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Categories != nil {
		rec.Categories = append([]string(nil), (*p.Categories)...)
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
}

// StatusPatch returns a patch that only sets the status.
func StatusPatch(s DocumentStatus) *DocumentPatch {
	return &DocumentPatch{Status: &s}
}

// SearchIndexDocument is the searchable projection of a document or chat chunk.
// It is always written whole; there are no field-level updates.
type SearchIndexDocument struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	Content       string    `json:"content"`
	ContentVector []float32 `json:"contentVector,omitempty"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	UploadedBy    string    `json:"uploadedBy"`
	UploadedAt    time.Time `json:"uploadedAt"`
	BlobURL       string    `json:"blobUrl"`
	Pages         int       `json:"pages"`
	Confidence    float64   `json:"confidence"`
	Categories    []string  `json:"categories,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	ThreadID      string    `json:"threadId,omitempty"`
}

// ChatDocumentChunk is one chunk of a file attached to a chat thread.
type ChatDocumentChunk struct {
	ID          string            `json:"id"`
	ThreadID    string            `json:"threadId"`
	UserID      string            `json:"userId"`
	ChunkIndex  int               `json:"chunkIndex"`
	PageContent string            `json:"pageContent"`
	Metadata    map[string]string `json:"metadata"`
	Embedding   []float32         `json:"-"`
}

// FileTypeOf returns the lowercase extension of name without the leading dot.
func FileTypeOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
