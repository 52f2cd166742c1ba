package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Divas-Gupta30/hmo-assistant/internal/processing"
)

// Document is one embedded chunk of the knowledge base.
type Document struct {
	ID        int64
	Content   string
	Metadata  processing.Metadata
	Embedding []float32
}

// Match is a document returned by a similarity query.
type Match struct {
	Document
	Score float64 // cosine similarity
}

// Stats summarizes the knowledge index.
type Stats struct {
	TotalDocuments int64 `json:"total_documents"`
	Dimension      int   `json:"dimension"`
}

// VectorStore keeps knowledge chunks in Postgres with a pgvector column.
type VectorStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewVectorStore(pool *pgxpool.Pool, dim int) *VectorStore {
	return &VectorStore{pool: pool, dim: dim}
}

// Migrate creates the extension and documents table when missing.
func (s *VectorStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT 'local',
		title TEXT,
		file_path TEXT,
		chunk_id INT NOT NULL,
		total_chunks INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		imported_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);
	`, s.dim)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrating documents table: %w", err)
	}
	return nil
}

// Reset removes every indexed chunk.
func (s *VectorStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE documents RESTART IDENTITY")
	return err
}

// Insert adds a chunk with its embedding.
func (s *VectorStore) Insert(ctx context.Context, doc Document) error {
	if len(doc.Embedding) != s.dim {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(doc.Embedding), s.dim)
	}
	m := doc.Metadata
	if m.ImportedAt.IsZero() {
		m.ImportedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (source, origin, title, file_path, chunk_id, total_chunks, content, embedding, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.Source, m.Origin, m.Title, m.Path, m.ChunkID, m.TotalChunks, doc.Content,
		pgvector.NewVector(doc.Embedding), m.ImportedAt)
	return err
}

// QuerySimilar returns the topK chunks closest to queryEmb by cosine distance.
func (s *VectorStore) QuerySimilar(ctx context.Context, queryEmb []float32, topK int) ([]Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, origin, title, file_path, chunk_id, total_chunks, content, imported_at,
			1 - (embedding <=> $1) AS score
		FROM documents ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(queryEmb), topK)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []Match
	for rows.Next() {
		var (
			m     Match
			title *string
			path  *string
		)
		if err := rows.Scan(&m.ID, &m.Metadata.Source, &m.Metadata.Origin, &title, &path,
			&m.Metadata.ChunkID, &m.Metadata.TotalChunks, &m.Content, &m.Metadata.ImportedAt, &m.Score); err != nil {
			return nil, err
		}
		if title != nil {
			m.Metadata.Title = *title
		}
		if path != nil {
			m.Metadata.Path = *path
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// Stats counts indexed chunks.
func (s *VectorStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Dimension: s.dim}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&st.TotalDocuments); err != nil {
		return st, fmt.Errorf("counting documents: %w", err)
	}
	return st, nil
}
