package service

import (
	"finreg-audit/models"

	"go.uber.org/zap"
)

// SectionAggregator collects findings per section and flags sections for escalation
type SectionAggregator struct {
	escalation float64
	logger     *zap.Logger
}

// NewSectionAggregator creates an aggregator with the given escalation threshold
func NewSectionAggregator(escalation float64, logger *zap.Logger) *SectionAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionAggregator{escalation: escalation, logger: logger}
}

// Aggregate builds the section result; findings must already be in catalog order
func (a *SectionAggregator) Aggregate(section models.Section, findings []models.Finding) models.SectionResult {
	res := models.SectionResult{ID: section.ID, Title: section.Title, Findings: findings}
	if res.Findings == nil {
		res.Findings = []models.Finding{}
	}
	if res.Escalated(a.escalation) {
		a.logger.Warn("section escalated",
			zap.String("section_id", section.ID),
			zap.Float64("review_ratio", res.ReviewRatio()),
			zap.Float64("threshold", a.escalation))
	}
	return res
}

// Escalated reports whether res crosses the aggregator's escalation threshold
func (a *SectionAggregator) Escalated(res models.SectionResult) bool {
	return res.Escalated(a.escalation)
}
