package service

import (
	"math"
	"strings"

	"finreg-audit/models"
)

const (
	weightRetrieval = 0.30
	weightCoverage  = 0.30
	weightTypeMatch = 0.20
	weightSelf      = 0.20

	neutralCoverage = 0.5
)

// ConfidenceInputs are the four signals fused into a finding's confidence
type ConfidenceInputs struct {
	RetrievalScores  []float64
	ExpectedEvidence []string
	FoundSources     []string
	AllowedTypes     map[models.DocumentType]struct{}
	FoundTypes       map[models.DocumentType]struct{}
	SelfConfidence   float64
}

// ComputeConfidence fuses retrieval quality, evidence coverage, type match and the model's
// self-assessment into a score in [0,1], rounded to three decimals
func ComputeConfidence(in ConfidenceInputs) float64 {
	retrieval := 0.0
	if len(in.RetrievalScores) > 0 {
		sum := 0.0
		for _, s := range in.RetrievalScores {
			sum += s
		}
		retrieval = clamp(sum/float64(len(in.RetrievalScores)), 0, 1)
	}

	coverage := neutralCoverage
	if len(in.ExpectedEvidence) > 0 {
		haystack := strings.ToLower(strings.Join(in.FoundSources, " "))
		matched := 0
		for _, ev := range in.ExpectedEvidence {
			for _, tok := range strings.Fields(strings.ToLower(ev)) {
				if strings.Contains(haystack, tok) {
					matched++
					break
				}
			}
		}
		coverage = float64(matched) / float64(len(in.ExpectedEvidence))
	}

	typeMatch := 1.0
	if len(in.AllowedTypes) > 0 {
		overlap := 0
		for t := range in.AllowedTypes {
			if _, ok := in.FoundTypes[t]; ok {
				overlap++
			}
		}
		typeMatch = float64(overlap) / float64(len(in.AllowedTypes))
	}

	self := clamp(in.SelfConfidence, 0, 1)

	fused := weightRetrieval*retrieval + weightCoverage*coverage + weightTypeMatch*typeMatch + weightSelf*self
	return math.Round(fused*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
