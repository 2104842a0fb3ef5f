package models

import "strings"

// Judgment represents the raw, untrusted answer of the language model
type Judgment struct {
	Verdict         string   `json:"verdict"`
	Justification   string   `json:"justification"`
	CitedExcerpts   []string `json:"cited_excerpts"`
	Deficiency      *string  `json:"deficiency"`
	Recommendations []string `json:"recommendations"`
	Sources         []string `json:"sources"`
	SelfConfidence  *float64 `json:"confidence_self,omitempty"`
}

// HasDeficiency reports whether the judgment carries a non-blank deficiency statement
func (j Judgment) HasDeficiency() bool {
	return j.Deficiency != nil && strings.TrimSpace(*j.Deficiency) != ""
}

// SelfConfidenceOr returns the self-reported confidence or fallback when the model omitted it
func (j Judgment) SelfConfidenceOr(fallback float64) float64 {
	if j.SelfConfidence == nil {
		return fallback
	}
	return *j.SelfConfidence
}

// Finding represents the adjudicated result for one audit field
type Finding struct {
	FieldID         string   `json:"id"`
	Question        string   `json:"question"`
	Verdict         Verdict  `json:"verdict"`
	Severity        Severity `json:"severity"`
	Justification   string   `json:"justification"`
	CitedExcerpts   []string `json:"cited_excerpts"`
	Deficiency      *string  `json:"deficiency"`
	Recommendations []string `json:"recommendations"`
	Sources         []string `json:"sources"`
	Confidence      float64  `json:"confidence"`
	ReviewRequired  bool     `json:"review_required"`
	Warnings        []string `json:"warnings"`
}

// SectionResult represents the ordered findings of one catalog section
type SectionResult struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Findings []Finding `json:"findings"`
}

// CriticalFindings returns the non-conform and partially-conform findings in catalog order
func (s *SectionResult) CriticalFindings() []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Verdict.IsCritical() {
			out = append(out, f)
		}
	}
	return out
}

// ReviewRatio returns the fraction of findings flagged for human review
func (s *SectionResult) ReviewRatio() float64 {
	if len(s.Findings) == 0 {
		return 0
	}
	n := 0
	for _, f := range s.Findings {
		if f.ReviewRequired {
			n++
		}
	}
	return float64(n) / float64(len(s.Findings))
}

// Escalated reports whether the review ratio reaches threshold
func (s *SectionResult) Escalated(threshold float64) bool {
	return len(s.Findings) > 0 && s.ReviewRatio() >= threshold
}
