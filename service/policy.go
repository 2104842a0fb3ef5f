package service

import (
	"fmt"

	"finreg-audit/models"
)

// DecisionState is the terminal state a field reached in the decision policy
type DecisionState string

const (
	StateGateReject         DecisionState = "gate_reject"
	StateModelJudged        DecisionState = "model_judged"
	StateConfidenceRejected DecisionState = "confidence_rejected"
	StateReviewFlagged      DecisionState = "review_flagged"
	StateAccepted           DecisionState = "accepted"
)

// Decision is the adjudicated finding together with the state that produced it
type Decision struct {
	State   DecisionState
	Finding models.Finding
}

// DecisionPolicy turns a judgment, its fused confidence and its validator warnings into a Finding
type DecisionPolicy struct {
	autoReject float64
	review     float64
}

// NewDecisionPolicy creates a policy with the given thresholds
func NewDecisionPolicy(autoReject, review float64) *DecisionPolicy {
	return &DecisionPolicy{autoReject: autoReject, review: review}
}

// Decide applies the confidence thresholds; validator warnings force review on their own
func (p *DecisionPolicy) Decide(field models.AuditField, j models.Judgment, confidence float64, warnings []string) Decision {
	out := append([]string{}, warnings...)

	verdict, err := models.ParseVerdict(j.Verdict)
	if err != nil {
		out = append(out, fmt.Sprintf("Unrecognised verdict %q treated as not_assessable", j.Verdict))
	}

	state := StateModelJudged
	review := false
	switch {
	case confidence < p.autoReject:
		state = StateConfidenceRejected
		verdict = models.VerdictNotAssessable
		review = true
		out = append(out, fmt.Sprintf(
			"Confidence too low (%.2f < %g): automatically set to not_assessable", confidence, p.autoReject))
	case confidence < p.review:
		state = StateReviewFlagged
		review = true
		out = append(out, fmt.Sprintf("Review required: confidence %.2f < %g", confidence, p.review))
	default:
		state = StateAccepted
	}
	if len(out) > 0 {
		review = true
	}

	return Decision{
		State: state,
		Finding: models.Finding{
			FieldID:         field.ID,
			Question:        field.Question,
			Verdict:         verdict,
			Severity:        field.Severity,
			Justification:   j.Justification,
			CitedExcerpts:   nonNil(j.CitedExcerpts),
			Deficiency:      j.Deficiency,
			Recommendations: nonNil(j.Recommendations),
			Sources:         nonNil(j.Sources),
			Confidence:      confidence,
			ReviewRequired:  review,
			Warnings:        out,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
