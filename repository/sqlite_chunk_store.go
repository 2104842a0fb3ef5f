package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"finreg-audit/models"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evidence_chunks (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	doc_type      TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	chunk_index   INTEGER NOT NULL,
	chunk_text    TEXT NOT NULL,
	metadata      TEXT,
	embedding     BLOB NOT NULL,
	UNIQUE (content_hash, chunk_index)
);
`

// SQLiteChunkStore is a local, single-file evidence index. Similarity is computed in process.
type SQLiteChunkStore struct {
	db *sql.DB
}

// NewSQLiteChunkStore opens (or creates) the index at dbPath; ":memory:" works for tests
func NewSQLiteChunkStore(dbPath string) (*SQLiteChunkStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteChunkStore{db: db}, nil
}

// Close closes the underlying database connection
func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}

// Insert stores a chunk; duplicates of the same file hash and position are ignored
func (s *SQLiteChunkStore) Insert(ctx context.Context, doc models.Document, embedding []float32) error {
	meta, err := doc.Metadata.Value()
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evidence_chunks (id, source, doc_type, content_hash, chunk_index, chunk_text, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash, chunk_index) DO NOTHING`,
		uuid.New().String(), doc.Source, string(doc.DocType), doc.ContentHash, doc.ChunkIndex,
		doc.Text, meta, encodeVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// Nearest scans every chunk and returns the topK by cosine similarity, best first
func (s *SQLiteChunkStore) Nearest(ctx context.Context, embedding []float32, topK int) ([]models.EvidenceChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, doc_type, chunk_text, metadata, embedding FROM evidence_chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.EvidenceChunk
	for rows.Next() {
		var (
			c       models.EvidenceChunk
			docType string
			meta    sql.NullString
			blob    []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &docType, &c.Text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.DocType = models.DocumentType(docType)
		if meta.Valid {
			if err := c.Metadata.Scan(meta.String); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		score := cosineSimilarity(embedding, decodeVector(blob))
		c.Score = &score
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return *chunks[i].Score > *chunks[j].Score
	})
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// Count returns the number of indexed chunks
func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Reset removes every indexed chunk
func (s *SQLiteChunkStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evidence_chunks`); err != nil {
		return fmt.Errorf("reset chunks: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
