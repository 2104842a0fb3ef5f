package service

import "time"

// EvaluationConfig holds the thresholds and budgets of the per-field pipeline
type EvaluationConfig struct {
	TopK                int           // chunks requested from the index per field
	MinRetrievalScore   float64       // quality gate: chunks below are discarded
	AutoRejectThreshold float64       // fused confidence below forces not_assessable
	ReviewThreshold     float64       // fused confidence below flags review
	EscalationThreshold float64       // section review ratio at or above escalates
	Temperature         float32       // model sampling temperature
	MaxOutputTokens     int           // model output budget
	MaxExcerptLen       int           // runes of chunk text per evidence block
	ModelRetries        int           // extra completion attempts before degrading
	RetryBackoff        time.Duration // first backoff, doubled per attempt
}

// DefaultEvaluationConfig returns the audit defaults
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		TopK:                8,
		MinRetrievalScore:   0.35,
		AutoRejectThreshold: 0.4,
		ReviewThreshold:     0.7,
		EscalationThreshold: 0.3,
		Temperature:         0.1,
		MaxOutputTokens:     2048,
		MaxExcerptLen:       2000,
		ModelRetries:        0,
		RetryBackoff:        time.Second,
	}
}
