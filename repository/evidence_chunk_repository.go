package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"finreg-audit/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultEmbeddingDimensions matches text-embedding-004
const DefaultEmbeddingDimensions = 768

// EvidenceChunkRepository stores embedded corpus chunks in Postgres with pgvector
type EvidenceChunkRepository struct {
	db   *pgxpool.Pool
	dims int
}

// NewEvidenceChunkRepository creates a new evidence chunk repository
func NewEvidenceChunkRepository(db *pgxpool.Pool, dims int) *EvidenceChunkRepository {
	if dims <= 0 {
		dims = DefaultEmbeddingDimensions
	}
	return &EvidenceChunkRepository{db: db, dims: dims}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 6, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (r *EvidenceChunkRepository) checkDims(embedding []float32) error {
	if len(embedding) != r.dims {
		return fmt.Errorf("embedding must be %d dimensions, got %d", r.dims, len(embedding))
	}
	return nil
}

// Insert stores a chunk; a chunk already present for the same file hash and position is skipped
func (r *EvidenceChunkRepository) Insert(ctx context.Context, doc models.Document, embedding []float32) error {
	if err := r.checkDims(embedding); err != nil {
		return err
	}
	query := `
		INSERT INTO evidence_chunks (
			source, doc_type, content_hash, chunk_index, chunk_text, metadata, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
		ON CONFLICT (content_hash, chunk_index) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		doc.Source,
		string(doc.DocType),
		doc.ContentHash,
		doc.ChunkIndex,
		doc.Text,
		doc.Metadata,
		formatVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evidence chunk: %w", err)
	}
	return nil
}

// Nearest returns the topK chunks by cosine similarity, best first
func (r *EvidenceChunkRepository) Nearest(ctx context.Context, embedding []float32, topK int) ([]models.EvidenceChunk, error) {
	if err := r.checkDims(embedding); err != nil {
		return nil, err
	}

	query := `
		SELECT
			id::text,
			source,
			doc_type,
			chunk_text,
			metadata,
			1 - (embedding <=> $1::vector) AS score
		FROM evidence_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.EvidenceChunk
	for rows.Next() {
		var (
			chunk   models.EvidenceChunk
			docType string
			score   float64
		)
		err := rows.Scan(
			&chunk.ID,
			&chunk.Source,
			&docType,
			&chunk.Text,
			&chunk.Metadata,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence chunk: %w", err)
		}
		chunk.DocType = models.DocumentType(docType)
		chunk.Score = &score
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evidence chunks: %w", err)
	}

	return chunks, nil
}

// Count returns the number of indexed chunks
func (r *EvidenceChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM evidence_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evidence chunks: %w", err)
	}
	return n, nil
}

// Reset removes every indexed chunk
func (r *EvidenceChunkRepository) Reset(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE evidence_chunks`); err != nil {
		return fmt.Errorf("failed to reset evidence chunks: %w", err)
	}
	return nil
}
