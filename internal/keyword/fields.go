package keyword

import (
	"time"

	"github.com/hyperjump/docflow/internal/models"
)

// fromFields rebuilds a document from stored hit fields. Bleve returns a
// single-valued array field as a scalar and numbers as float64.
func fromFields(id string, f map[string]interface{}) *models.SearchIndexDocument {
	doc := &models.SearchIndexDocument{
		ID:         id,
		FileName:   str(f[fieldFileName]),
		Content:    str(f[fieldContent]),
		FileType:   str(f[fieldFileType]),
		FileSize:   int64(num(f[fieldFileSize])),
		UploadedBy: str(f[fieldUploadedBy]),
		BlobURL:    str(f[fieldBlobURL]),
		Pages:      int(num(f[fieldPages])),
		Confidence: num(f[fieldConfidence]),
		Categories: strs(f[fieldCategories]),
		Tags:       strs(f[fieldTags]),
		ThreadID:   str(f[fieldThreadID]),
	}
	if ts := str(f[fieldUploadedAt]); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			doc.UploadedAt = t
		}
	}
	return doc
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func strs(v interface{}) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if es, ok := e.(string); ok {
				out = append(out, es)
			}
		}
		return out
	}
	return nil
}
