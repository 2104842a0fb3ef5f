package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"sort"
	"time"

	"finreg-audit/models"
	"finreg-audit/storage"
)

// Overall ratings, from most to least severe
const (
	RatingSubstantialDeficiencies = "SUBSTANTIAL DEFICIENCIES"
	RatingInsufficientEvidence    = "INSUFFICIENT EVIDENCE - AUDIT NOT RELIABLE"
	RatingDeficienciesFound       = "DEFICIENCIES FOUND"
	RatingLimitedReliability      = "LIMITED RELIABILITY - HIGH SHARE NOT ASSESSABLE"
	RatingPartiallyConform        = "PARTIALLY CONFORM - REMEDIATION REQUIRED"
	RatingConform                 = "CONFORM"
)

const generatorVersion = "finreg-audit v2"

// ReportMeta is the metadata bundle handed to the reporting collaborator
type ReportMeta struct {
	RunID          string           `json:"run_id,omitempty"`
	Institution    string           `json:"institution"`
	Examiner       string           `json:"examiner"`
	Framework      models.Framework `json:"framework"`
	FrameworkLabel string           `json:"framework_label"`
	Model          string           `json:"model"`
	CatalogVersion string           `json:"catalog_version"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ReportBundle is everything a reporter needs; it carries no layout
type ReportBundle struct {
	Meta     ReportMeta             `json:"meta"`
	Sections []models.SectionResult `json:"sections"`
}

// Reporter renders and persists a finished run. It returns format name to location.
type Reporter interface {
	Publish(ctx context.Context, bundle ReportBundle) (map[string]string, error)
}

// CriticalFinding is one entry of the deficiency summary
type CriticalFinding struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	Verdict    models.Verdict  `json:"verdict"`
	Severity   models.Severity `json:"severity"`
	Deficiency *string         `json:"deficiency"`
}

// AuditTrail records what produced the report
type AuditTrail struct {
	Model            string           `json:"model"`
	CatalogVersion   string           `json:"catalog_version"`
	Framework        models.Framework `json:"framework"`
	GeneratorVersion string           `json:"generator_version"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Summary aggregates all findings of a run
type Summary struct {
	OverallRating        string            `json:"overall_rating"`
	TotalFields          int               `json:"total_fields"`
	Conform              int               `json:"conform"`
	PartiallyConform     int               `json:"partially_conform"`
	NonConform           int               `json:"non_conform"`
	NotAssessable        int               `json:"not_assessable"`
	NotAssessablePercent float64           `json:"not_assessable_percent"`
	ReviewRequired       int               `json:"review_required"`
	AverageConfidence    float64           `json:"average_confidence"`
	Deficiencies         int               `json:"deficiencies"`
	MaterialDeficiencies int               `json:"material_deficiencies"`
	EscalatedSections    []string          `json:"escalated_sections"`
	CriticalFindings     []CriticalFinding `json:"critical_findings"`
	AuditTrail           AuditTrail        `json:"audit_trail"`
}

// Summarize computes the run summary; escalation uses the given section threshold
func Summarize(bundle ReportBundle, escalation float64) Summary {
	s := Summary{
		EscalatedSections: []string{},
		CriticalFindings:  []CriticalFinding{},
		AuditTrail: AuditTrail{
			Model:            bundle.Meta.Model,
			CatalogVersion:   bundle.Meta.CatalogVersion,
			Framework:        bundle.Meta.Framework,
			GeneratorVersion: generatorVersion,
			Timestamp:        bundle.Meta.GeneratedAt,
		},
	}

	confidenceSum := 0.0
	var deficient, partial []models.Finding
	for i := range bundle.Sections {
		sec := &bundle.Sections[i]
		if sec.Escalated(escalation) {
			s.EscalatedSections = append(s.EscalatedSections, sec.ID)
		}
		for _, f := range sec.Findings {
			s.TotalFields++
			confidenceSum += f.Confidence
			if f.ReviewRequired {
				s.ReviewRequired++
			}
			switch f.Verdict {
			case models.VerdictConform:
				s.Conform++
			case models.VerdictPartiallyConform:
				s.PartiallyConform++
				partial = append(partial, f)
			case models.VerdictNonConform:
				s.NonConform++
				deficient = append(deficient, f)
				if f.Severity == models.SeverityMaterial {
					s.MaterialDeficiencies++
				}
			default:
				s.NotAssessable++
			}
		}
	}
	s.Deficiencies = len(deficient)

	npRatio := 0.0
	if s.TotalFields > 0 {
		npRatio = float64(s.NotAssessable) / float64(s.TotalFields)
		s.AverageConfidence = round(confidenceSum/float64(s.TotalFields), 3)
	}
	s.NotAssessablePercent = round(npRatio*100, 1)

	switch {
	case s.MaterialDeficiencies > 0:
		s.OverallRating = RatingSubstantialDeficiencies
	case npRatio >= 0.5:
		s.OverallRating = RatingInsufficientEvidence
	case s.NonConform > 0 || s.PartiallyConform >= 3:
		s.OverallRating = RatingDeficienciesFound
	case npRatio >= 0.3:
		s.OverallRating = RatingLimitedReliability
	case s.PartiallyConform > 0:
		s.OverallRating = RatingPartiallyConform
	default:
		s.OverallRating = RatingConform
	}

	critical := append(deficient, partial...)
	sort.SliceStable(critical, func(i, j int) bool {
		return critical[i].Severity == models.SeverityMaterial && critical[j].Severity != models.SeverityMaterial
	})
	for _, f := range critical {
		s.CriticalFindings = append(s.CriticalFindings, CriticalFinding{
			ID:         f.FieldID,
			Question:   f.Question,
			Verdict:    f.Verdict,
			Severity:   f.Severity,
			Deficiency: f.Deficiency,
		})
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

type jsonReport struct {
	Meta     ReportMeta      `json:"meta"`
	Summary  Summary         `json:"summary"`
	Sections []reportSection `json:"sections"`
}

type reportSection struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	ReviewRatio float64          `json:"review_ratio"`
	Escalated   bool             `json:"escalated"`
	Findings    []models.Finding `json:"findings"`
}

// JSONReporter writes the machine-readable report bundle to storage
type JSONReporter struct {
	store      storage.Storage
	prefix     string
	escalation float64
}

// NewJSONReporter creates a reporter writing below prefix (e.g. "reports")
func NewJSONReporter(store storage.Storage, prefix string, escalation float64) *JSONReporter {
	return &JSONReporter{store: store, prefix: prefix, escalation: escalation}
}

// Publish stores <prefix>/<framework>_audit_report_<timestamp>.json
func (r *JSONReporter) Publish(ctx context.Context, bundle ReportBundle) (map[string]string, error) {
	if bundle.Meta.GeneratedAt.IsZero() {
		bundle.Meta.GeneratedAt = time.Now().UTC()
	}
	report := jsonReport{
		Meta:     bundle.Meta,
		Summary:  Summarize(bundle, r.escalation),
		Sections: make([]reportSection, 0, len(bundle.Sections)),
	}
	for i := range bundle.Sections {
		sec := &bundle.Sections[i]
		report.Sections = append(report.Sections, reportSection{
			ID:          sec.ID,
			Title:       sec.Title,
			ReviewRatio: round(sec.ReviewRatio(), 2),
			Escalated:   sec.Escalated(r.escalation),
			Findings:    sec.Findings,
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	name := fmt.Sprintf("%s_audit_report_%s.json", bundle.Meta.Framework, bundle.Meta.GeneratedAt.Format("20060102_150405"))
	location, err := r.store.Put(ctx, path.Join(r.prefix, name), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	return map[string]string{"json": location}, nil
}
