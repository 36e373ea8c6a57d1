// Package config provides configuration loading and structs for the docflow server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug" toml:"debug"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Blob       BlobConfig       `yaml:"blob" toml:"blob"`
	Search     SearchConfig     `yaml:"search" toml:"search"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction" toml:"extraction"`
	Ingest     IngestConfig     `yaml:"ingest" toml:"ingest"`
	Watch      WatchConfig      `yaml:"watch" toml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host" toml:"host"`
	Port        int      `yaml:"port" toml:"port"`
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
}

// StorageConfig selects and configures the metadata store.
type StorageConfig struct {
	// Driver is one of sqlite, postgres, firestore.
	Driver              string `yaml:"driver" toml:"driver"`
	DatabasePath        string `yaml:"database_path" toml:"database_path"`
	PostgresDSN         string `yaml:"postgres_dsn" toml:"postgres_dsn"`
	FirestoreProject    string `yaml:"firestore_project" toml:"firestore_project"`
	FirestoreCollection string `yaml:"firestore_collection" toml:"firestore_collection"`
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	// Provider is one of disk, s3, gcs.
	Provider      string   `yaml:"provider" toml:"provider"`
	DiskPath      string   `yaml:"disk_path" toml:"disk_path"`
	PublicBaseURL string   `yaml:"public_base_url" toml:"public_base_url"`
	S3            S3Config `yaml:"s3" toml:"s3"`
	GCSBucket     string   `yaml:"gcs_bucket" toml:"gcs_bucket"`
}

// S3Config holds S3 (or S3-compatible) settings.
type S3Config struct {
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Region          string `yaml:"region" toml:"region"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
}

// SearchConfig holds search index and query settings.
type SearchConfig struct {
	BleveIndexPath     string  `yaml:"bleve_index_path" toml:"bleve_index_path"`
	VectorIndex        string  `yaml:"vector_index" toml:"vector_index"`
	VectorIndexPath    string  `yaml:"vector_index_path" toml:"vector_index_path"`
	ChatBleveIndexPath string  `yaml:"chat_bleve_index_path" toml:"chat_bleve_index_path"`
	ChatVectorPath     string  `yaml:"chat_vector_index_path" toml:"chat_vector_index_path"`
	DefaultLimit       int     `yaml:"default_limit" toml:"default_limit"`
	MaxLimit           int     `yaml:"max_limit" toml:"max_limit"`
	TopKCandidates     int     `yaml:"top_k_candidates" toml:"top_k_candidates"`
	KeywordWeight      float64 `yaml:"keyword_weight" toml:"keyword_weight"`
	SemanticWeight     float64 `yaml:"semantic_weight" toml:"semantic_weight"`
	HighlightLength    int     `yaml:"highlight_length" toml:"highlight_length"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is one of mock, gemini, onnx.
	Provider          string  `yaml:"provider" toml:"provider"`
	Model             string  `yaml:"model" toml:"model"`
	APIKey            string  `yaml:"api_key" toml:"api_key"`
	Dimensions        int     `yaml:"dimensions" toml:"dimensions"`
	CacheSize         int     `yaml:"cache_size" toml:"cache_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	ModelPath         string  `yaml:"model_path" toml:"model_path"`
	MaxTokens         int     `yaml:"max_tokens" toml:"max_tokens"`
}

// ExtractionConfig selects the text extraction service.
type ExtractionConfig struct {
	// Provider is local or remote.
	Provider  string        `yaml:"provider" toml:"provider"`
	RemoteURL string        `yaml:"remote_url" toml:"remote_url"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
}

// IngestConfig holds upload policy and pipeline settings.
type IngestConfig struct {
	MaxUploadBytes      int64         `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	ChatMaxUploadBytes  int64         `yaml:"chat_max_upload_bytes" toml:"chat_max_upload_bytes"`
	AllowedExtensions   []string      `yaml:"allowed_extensions" toml:"allowed_extensions"`
	ChunkSize           int           `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap        int           `yaml:"chunk_overlap" toml:"chunk_overlap"`
	MaxConcurrent       int           `yaml:"max_concurrent" toml:"max_concurrent"`
	CompensateOnFailure bool          `yaml:"compensate_on_failure" toml:"compensate_on_failure"`
	ReconcileOnStart    bool          `yaml:"reconcile_on_start" toml:"reconcile_on_start"`
	StaleAfter          time.Duration `yaml:"stale_after" toml:"stale_after"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" toml:"directories"`
	Owner       string   `yaml:"owner" toml:"owner"`
	Recursive   *bool    `yaml:"recursive" toml:"recursive"`

	// SyncExisting uploads files already in the directories at startup.
	SyncExisting bool `yaml:"sync_existing" toml:"sync_existing"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and the
// environment overlay, and expands paths. Files ending in .toml are parsed as TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	LoadDotEnv(configDir)
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Blob.DiskPath = expandPath(cfg.Blob.DiskPath, configDir)
	cfg.Search.BleveIndexPath = expandPath(cfg.Search.BleveIndexPath, configDir)
	cfg.Search.VectorIndexPath = expandPath(cfg.Search.VectorIndexPath, configDir)
	cfg.Search.ChatBleveIndexPath = expandPath(cfg.Search.ChatBleveIndexPath, configDir)
	cfg.Search.ChatVectorPath = expandPath(cfg.Search.ChatVectorPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config with only defaults and the environment applied.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg
}

// Validate checks settings that have no safe substitute.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize < 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap*2 >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be below half of chunk_size (%d), got %d",
			c.Ingest.ChunkSize, c.Ingest.ChunkOverlap)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
