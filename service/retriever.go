package service

import (
	"context"
	"fmt"
	"strings"

	"finreg-audit/models"
)

// EvidenceRetriever turns an audit field into a ranked list of evidence chunks
type EvidenceRetriever struct {
	searcher Searcher
	topK     int
}

// NewEvidenceRetriever creates a retriever; topK <= 0 falls back to the default of 8
func NewEvidenceRetriever(searcher Searcher, topK int) *EvidenceRetriever {
	if topK <= 0 {
		topK = DefaultEvaluationConfig().TopK
	}
	return &EvidenceRetriever{searcher: searcher, topK: topK}
}

// BuildQuery composes the search text from question, expected evidence and legal basis
func BuildQuery(field models.AuditField) string {
	parts := []string{field.Question}
	if len(field.ExpectedEvidence) > 0 {
		parts = append(parts, "Relevant terms: "+strings.Join(field.ExpectedEvidence, ", "))
	}
	if len(field.LegalBasis) > 0 {
		parts = append(parts, "Legal basis: "+strings.Join(field.LegalBasis, ", "))
	}
	return strings.Join(parts, "\n")
}

// Retrieve returns the best-matching chunks first. Index errors are not retried.
func (r *EvidenceRetriever) Retrieve(ctx context.Context, field models.AuditField) ([]models.EvidenceChunk, error) {
	chunks, err := r.searcher.Search(ctx, BuildQuery(field), r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w for field %s: %w", ErrRetrievalFailed, field.ID, err)
	}
	return chunks, nil
}
