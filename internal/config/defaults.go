package config

import "time"

const (
	// DefaultMaxUploadBytes bounds uploads bound for OCR extraction.
	DefaultMaxUploadBytes int64 = 500 << 20
	// DefaultChatMaxUploadBytes bounds files attached inline to a chat thread.
	DefaultChatMaxUploadBytes int64 = 20 << 20
)

// DefaultAllowedExtensions is the document and image allow-list.
var DefaultAllowedExtensions = []string{
	".pdf", ".doc", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods", ".rtf",
	".txt", ".md", ".rst", ".html", ".htm",
	".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/docflow/data/db/documents.db"
	}
	if cfg.Storage.FirestoreCollection == "" {
		cfg.Storage.FirestoreCollection = "documents"
	}

	if cfg.Blob.Provider == "" {
		cfg.Blob.Provider = "disk"
	}
	if cfg.Blob.DiskPath == "" {
		cfg.Blob.DiskPath = "/usr/local/var/docflow/data/blobs"
	}
	if cfg.Blob.S3.Region == "" {
		cfg.Blob.S3.Region = "us-east-1"
	}

	if cfg.Search.BleveIndexPath == "" {
		cfg.Search.BleveIndexPath = "/usr/local/var/docflow/data/indices/documents.bleve"
	}
	if cfg.Search.VectorIndex == "" {
		cfg.Search.VectorIndex = "memory"
	}
	if cfg.Search.VectorIndexPath == "" {
		cfg.Search.VectorIndexPath = "/usr/local/var/docflow/data/indices/documents.vec"
	}
	if cfg.Search.ChatBleveIndexPath == "" {
		cfg.Search.ChatBleveIndexPath = "/usr/local/var/docflow/data/indices/chat.bleve"
	}
	if cfg.Search.ChatVectorPath == "" {
		cfg.Search.ChatVectorPath = "/usr/local/var/docflow/data/indices/chat.vec"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.KeywordWeight = 0.5
		cfg.Search.SemanticWeight = 0.5
	}
	if cfg.Search.HighlightLength == 0 {
		cfg.Search.HighlightLength = 200
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == "gemini" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Provider == "gemini" {
			cfg.Embedding.Dimensions = 768
		} else {
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.Extraction.Provider == "" {
		cfg.Extraction.Provider = "local"
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 2 * time.Minute
	}

	if cfg.Ingest.MaxUploadBytes == 0 {
		cfg.Ingest.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Ingest.ChatMaxUploadBytes == 0 {
		cfg.Ingest.ChatMaxUploadBytes = DefaultChatMaxUploadBytes
	}
	if cfg.Ingest.AllowedExtensions == nil {
		cfg.Ingest.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize / 5
	}
	if cfg.Ingest.StaleAfter == 0 {
		cfg.Ingest.StaleAfter = time.Hour
	}
	if cfg.Ingest.ShutdownTimeout == 0 {
		cfg.Ingest.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Watch.Owner == "" {
		cfg.Watch.Owner = "inbox"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
