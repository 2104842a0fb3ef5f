package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"finreg-audit/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load(os.Getenv("FINREG_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Index.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
	} else {
		log.Println("✓ pgvector extension enabled")
	}

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS evidence_chunks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),

    -- Corpus file the chunk was cut from
    source VARCHAR(512) NOT NULL,
    doc_type VARCHAR(20) NOT NULL CHECK (doc_type IN ('pdf', 'excel', 'interview', 'screenshot', 'log', 'unknown')),
    content_hash CHAR(64) NOT NULL,
    chunk_index INTEGER NOT NULL,

    chunk_text TEXT NOT NULL,
    metadata JSONB DEFAULT '{}'::jsonb,

    embedding vector(%d),

    created_at TIMESTAMP DEFAULT NOW(),

    CONSTRAINT chunk_hash_unique UNIQUE (content_hash, chunk_index)
);`, cfg.Index.Dimensions)

	_, err = pool.Exec(ctx, schemaSQL)
	if err != nil {
		log.Fatalf("Failed to create evidence_chunks table: %v", err)
	}
	log.Println("✓ Created evidence_chunks table")

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_evidence_embedding_hnsw ON evidence_chunks
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Document type filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_evidence_doc_type ON evidence_chunks(doc_type);",
		},
		{
			name: "Source filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_evidence_source ON evidence_chunks(source);",
		},
	}

	for _, idx := range indexes {
		_, err = pool.Exec(ctx, idx.sql)
		if err != nil {
			log.Printf("Warning: Failed to create index %s: %v", idx.name, err)
		} else {
			log.Printf("✓ Created index: %s", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Printf("   Table: evidence_chunks (vector(%d))\n", cfg.Index.Dimensions)
}
