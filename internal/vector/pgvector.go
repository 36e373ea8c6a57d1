package vector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgVectorIndex stores vectors in a PostgreSQL table using the pgvector extension.
type PgVectorIndex struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewPgVectorIndex connects to dsn and creates the vector extension and table if needed.
func NewPgVectorIndex(ctx context.Context, dsn, table string, dimensions int) (*PgVectorIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required for the pgvector index")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	idx := &PgVectorIndex{db: db, table: table, dimensions: dimensions}
	if err := idx.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (p *PgVectorIndex) init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, p.table, p.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_hnsw ON %s USING hnsw (embedding vector_cosine_ops)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init pgvector table: %w", err)
		}
	}
	return nil
}

func (p *PgVectorIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, embedding) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding`, p.table))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i, id := range ids {
		if len(vectors[i]) != p.dimensions {
			_ = tx.Rollback()
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), p.dimensions)
		}
		if _, err := stmt.ExecContext(ctx, id, pgvector.NewVector(vectors[i])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert vector %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Search orders by cosine distance and reports 1 - distance as the score.
func (p *PgVectorIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != p.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), p.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 LIMIT $2`, p.table),
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	var out []*VectorResult
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *PgVectorIndex) Remove(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, p.table), id); err != nil {
			return fmt.Errorf("remove vector %s: %w", id, err)
		}
	}
	return nil
}

func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)).Scan(&n)
	return n, err
}

func (p *PgVectorIndex) Save(string) error { return nil }

func (p *PgVectorIndex) Load(string) error { return nil }

func (p *PgVectorIndex) Close() error { return p.db.Close() }
