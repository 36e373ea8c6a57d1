package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from dir and then from the working directory.
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(dir string) {
	if dir != "" {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
	_ = godotenv.Load()
}

// ApplyEnv overlays DOCFLOW_* environment variables on cfg. Secrets and
// endpoints are usually supplied this way rather than in the config file.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Storage.Driver, "DOCFLOW_STORAGE_DRIVER")
	setString(&cfg.Storage.PostgresDSN, "DOCFLOW_POSTGRES_DSN")
	setString(&cfg.Storage.FirestoreProject, "DOCFLOW_FIRESTORE_PROJECT")

	setString(&cfg.Blob.Provider, "DOCFLOW_BLOB_PROVIDER")
	setString(&cfg.Blob.PublicBaseURL, "DOCFLOW_BLOB_PUBLIC_URL")
	setString(&cfg.Blob.S3.Bucket, "DOCFLOW_S3_BUCKET")
	setString(&cfg.Blob.S3.Region, "DOCFLOW_S3_REGION")
	setString(&cfg.Blob.S3.Endpoint, "DOCFLOW_S3_ENDPOINT")
	setString(&cfg.Blob.S3.AccessKeyID, "DOCFLOW_S3_ACCESS_KEY_ID")
	setString(&cfg.Blob.S3.SecretAccessKey, "DOCFLOW_S3_SECRET_ACCESS_KEY")
	setString(&cfg.Blob.GCSBucket, "DOCFLOW_GCS_BUCKET")

	setString(&cfg.Embedding.Provider, "DOCFLOW_EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.APIKey, "DOCFLOW_GEMINI_API_KEY")
	setString(&cfg.Embedding.Model, "DOCFLOW_EMBEDDING_MODEL")
	setInt(&cfg.Embedding.Dimensions, "DOCFLOW_EMBEDDING_DIMENSIONS")

	setString(&cfg.Extraction.Provider, "DOCFLOW_EXTRACTION_PROVIDER")
	setString(&cfg.Extraction.RemoteURL, "DOCFLOW_EXTRACTION_URL")

	setInt(&cfg.Server.Port, "DOCFLOW_PORT")
	if v, ok := os.LookupEnv("DOCFLOW_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
