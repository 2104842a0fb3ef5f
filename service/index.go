package service

import (
	"context"
	"errors"
	"fmt"

	"finreg-audit/models"

	"go.uber.org/zap"
)

// ErrEmptyCorpus is returned when there is nothing to index
var ErrEmptyCorpus = errors.New("audit corpus is empty")

// VectorIndex answers similarity searches by embedding the query and asking a ChunkStore
type VectorIndex struct {
	embedder Embedder
	store    ChunkStore
	logger   *zap.Logger
}

// NewVectorIndex creates an index over store
func NewVectorIndex(embedder Embedder, store ChunkStore, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorIndex{embedder: embedder, store: store, logger: logger}
}

// Search implements Searcher
func (x *VectorIndex) Search(ctx context.Context, query string, topK int) ([]models.EvidenceChunk, error) {
	var (
		vec []float32
		err error
	)
	if qe, ok := x.embedder.(QueryEmbedder); ok {
		vec, err = qe.EmbedQuery(ctx, query)
	} else {
		vec, err = x.embedder.Embed(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	chunks, err := x.store.Nearest(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return chunks, nil
}

// Index embeds and stores docs, returning how many were written
func (x *VectorIndex) Index(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrEmptyCorpus
	}
	n := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		vec, err := x.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return n, fmt.Errorf("failed to embed %s#%d: %w", doc.Source, doc.ChunkIndex, err)
		}
		if err := x.store.Insert(ctx, doc, vec); err != nil {
			return n, fmt.Errorf("failed to store %s#%d: %w", doc.Source, doc.ChunkIndex, err)
		}
		n++
		if n%50 == 0 {
			x.logger.Info("indexing progress", zap.Int("done", n), zap.Int("total", len(docs)))
		}
	}
	x.logger.Info("corpus indexed", zap.Int("chunks", n))
	return n, nil
}

// Rebuild replaces the stored corpus with docs so searches only see this corpus.
// An empty docs slice fails with ErrEmptyCorpus and leaves the store untouched.
func (x *VectorIndex) Rebuild(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrEmptyCorpus
	}
	if err := x.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset index: %w", err)
	}
	x.logger.Info("index reset")
	return x.Index(ctx, docs)
}

// Count returns the number of stored chunks
func (x *VectorIndex) Count(ctx context.Context) (int, error) {
	return x.store.Count(ctx)
}

// CheckCorpus fails with ErrEmptyCorpus when counter holds no chunks
func CheckCorpus(ctx context.Context, counter CorpusCounter) error {
	n, err := counter.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count indexed chunks: %w", err)
	}
	if n == 0 {
		return ErrEmptyCorpus
	}
	return nil
}
