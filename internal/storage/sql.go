package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docflow/internal/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStorage implements Storage on SQLite or PostgreSQL.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLStorage{db: db, dialect: dialectSQLite}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewPostgresStorage connects through the pgx stdlib driver and initializes the schema.
func NewPostgresStorage(ctx context.Context, dsn string) (*SQLStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := &SQLStorage{db: db, dialect: dialectPostgres}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStorage) initSchema(ctx context.Context) error {
	tsType := "TIMESTAMP"
	if s.dialect == dialectPostgres {
		tsType = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			uploaded_by TEXT NOT NULL,
			uploaded_at ` + tsType + ` NOT NULL,
			blob_name TEXT NOT NULL,
			blob_url TEXT NOT NULL,
			search_index_id TEXT NOT NULL DEFAULT '',
			pages INTEGER NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			processing_error TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			categories TEXT NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT '',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at ` + tsType + ` NOT NULL,
			updated_at ` + tsType + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(uploaded_by, is_deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status, is_deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(file_type, is_deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const recordColumns = `id, file_name, file_type, file_size, uploaded_by, uploaded_at, blob_name, blob_url,
	search_index_id, pages, confidence, status, processing_error, tags, categories, description,
	is_deleted, created_at, updated_at`

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) []string {
	var out []string
	if s != "" {
		_ = json.Unmarshal([]byte(s), &out)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	var status, tags, categories string
	err := row.Scan(
		&rec.ID, &rec.FileName, &rec.FileType, &rec.FileSize, &rec.UploadedBy, &rec.UploadedAt,
		&rec.BlobName, &rec.BlobURL, &rec.SearchIndexID, &rec.Pages, &rec.Confidence, &status,
		&rec.ProcessingError, &tags, &categories, &rec.Description, &rec.IsDeleted,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = models.DocumentStatus(status)
	rec.Tags = decodeList(tags)
	rec.Categories = decodeList(categories)
	rec.UploadedAt = rec.UploadedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Create inserts rec. CreatedAt and UpdatedAt are set by the store.
func (s *SQLStorage) Create(ctx context.Context, rec *models.DocumentRecord) error {
	tags, err := encodeList(rec.Tags)
	if err != nil {
		return err
	}
	categories, err := encodeList(rec.Categories)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = now
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO documents (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.FileName, rec.FileType, rec.FileSize, rec.UploadedBy, rec.UploadedAt,
		rec.BlobName, rec.BlobURL, rec.SearchIndexID, rec.Pages, rec.Confidence, string(rec.Status),
		rec.ProcessingError, tags, categories, rec.Description, rec.IsDeleted,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (s *SQLStorage) Get(ctx context.Context, id string) (*models.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM documents WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return rec, nil
}

// Update reads the record, merges patch, sets UpdatedAt, and replaces every
// mutable column. Concurrent updates are last-write-wins.
func (s *SQLStorage) Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	if err := s.replace(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLStorage) replace(ctx context.Context, rec *models.DocumentRecord) error {
	tags, err := encodeList(rec.Tags)
	if err != nil {
		return err
	}
	categories, err := encodeList(rec.Categories)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE documents SET
		file_name = ?, file_type = ?, file_size = ?, uploaded_by = ?, uploaded_at = ?,
		blob_name = ?, blob_url = ?, search_index_id = ?, pages = ?, confidence = ?,
		status = ?, processing_error = ?, tags = ?, categories = ?, description = ?,
		is_deleted = ?, updated_at = ?
		WHERE id = ?`),
		rec.FileName, rec.FileType, rec.FileSize, rec.UploadedBy, rec.UploadedAt,
		rec.BlobName, rec.BlobURL, rec.SearchIndexID, rec.Pages, rec.Confidence,
		string(rec.Status), rec.ProcessingError, tags, categories, rec.Description,
		rec.IsDeleted, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(rec.ID)
	}
	return nil
}

// LogicalDelete flags the record deleted without erasing its fields.
func (s *SQLStorage) LogicalDelete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET is_deleted = ?, updated_at = ? WHERE id = ?`),
		true, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLStorage) list(ctx context.Context, where string, args ...any) ([]*models.DocumentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM documents WHERE is_deleted = ?`
	if where != "" {
		query += ` AND ` + where
	}
	query += ` ORDER BY uploaded_at DESC, created_at DESC`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append([]any{false}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAll returns every non-deleted record.
func (s *SQLStorage) ListAll(ctx context.Context) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "")
}

// ListByOwner returns non-deleted records uploaded by owner.
func (s *SQLStorage) ListByOwner(ctx context.Context, owner string) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "uploaded_by = ?", owner)
}

// ListByType returns non-deleted records of fileType.
func (s *SQLStorage) ListByType(ctx context.Context, fileType string) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "file_type = ?", fileType)
}

// ListByStatus returns non-deleted records in status.
func (s *SQLStorage) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "status = ?", string(status))
}

// Stats counts non-deleted records by status and type and sums their sizes.
func (s *SQLStorage) Stats(ctx context.Context) (*models.Stats, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT status, file_type, COUNT(*), COALESCE(SUM(file_size), 0)
		FROM documents WHERE is_deleted = ? GROUP BY status, file_type`), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()

	stats := models.NewStats()
	for rows.Next() {
		var status, fileType string
		var count int
		var size int64
		if err := rows.Scan(&status, &fileType, &count, &size); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[models.DocumentStatus(status)] += count
		stats.ByType[fileType] += count
		stats.TotalSize += size
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
