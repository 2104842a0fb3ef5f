package service

import (
	"fmt"

	"finreg-audit/models"
)

// GateResult captures the partition produced by the retrieval quality gate
type GateResult struct {
	Good      []models.EvidenceChunk
	Discarded []models.EvidenceChunk
	BestScore float64
	Threshold float64
}

// Passed reports whether at least one chunk survived
func (g GateResult) Passed() bool {
	return len(g.Good) > 0
}

// Scores returns the relevance scores of the surviving chunks
func (g GateResult) Scores() []float64 {
	scores := make([]float64, len(g.Good))
	for i, c := range g.Good {
		scores[i] = c.ScoreOrZero()
	}
	return scores
}

// QualityGate rejects fields whose evidence is not relevant enough to judge
type QualityGate struct {
	threshold float64
}

// NewQualityGate creates a gate with the given minimum score
func NewQualityGate(threshold float64) *QualityGate {
	return &QualityGate{threshold: threshold}
}

// Apply partitions chunks into good (score >= threshold) and discarded; a nil score counts as 0
func (g *QualityGate) Apply(chunks []models.EvidenceChunk) GateResult {
	res := GateResult{Threshold: g.threshold}
	for i, c := range chunks {
		s := c.ScoreOrZero()
		if i == 0 || s > res.BestScore {
			res.BestScore = s
		}
		if s >= g.threshold {
			res.Good = append(res.Good, c)
		} else {
			res.Discarded = append(res.Discarded, c)
		}
	}
	return res
}

// RejectionFinding is the terminal outcome of a failed gate: absence of evidence
// is reported as not assessable, never as non-compliance.
func RejectionFinding(field models.AuditField, res GateResult) models.Finding {
	return models.Finding{
		FieldID:  field.ID,
		Question: field.Question,
		Verdict:  models.VerdictNotAssessable,
		Severity: field.Severity,
		Justification: fmt.Sprintf(
			"Retrieval quality gate: no documents with sufficient relevance found "+
				"(best score: %.2f, threshold: %.2f). The audit corpus contains no "+
				"sufficiently relevant information for this field.",
			res.BestScore, res.Threshold),
		CitedExcerpts:   []string{},
		Recommendations: []string{},
		Sources:         []string{},
		Confidence:      0,
		ReviewRequired:  true,
		Warnings:        []string{"automatically not assessable: retrieval score below threshold"},
	}
}
