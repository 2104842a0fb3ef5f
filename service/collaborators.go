package service

import (
	"context"

	"finreg-audit/models"
)

// Searcher is the similarity-search capability of the evidence index
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.EvidenceChunk, error)
}

// CompletionRequest is one system+user exchange with the language model
type CompletionRequest struct {
	System          string
	User            string
	Temperature     float32
	MaxOutputTokens int
}

// Completer is the text-completion capability of the language model.
// Implementations report transport, auth and rate-limit failures as *ModelError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryEmbedder is implemented by embedders that encode search queries differently from documents
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore persists embedded chunks and answers nearest-neighbour queries
type ChunkStore interface {
	Insert(ctx context.Context, doc models.Document, embedding []float32) error
	Nearest(ctx context.Context, embedding []float32, topK int) ([]models.EvidenceChunk, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// CorpusCounter reports how many chunks the evidence index holds
type CorpusCounter interface {
	Count(ctx context.Context) (int, error)
}
