package models

import (
	"errors"
	"fmt"
	"strings"
)

// Verdict represents the compliance classification of a single audit field
type Verdict string

const (
	VerdictConform          Verdict = "conform"
	VerdictPartiallyConform Verdict = "partially_conform"
	VerdictNonConform       Verdict = "non_conform"
	VerdictNotAssessable    Verdict = "not_assessable"
)

// ErrUnknownVerdict is returned when a verdict string matches none of the four classes
var ErrUnknownVerdict = errors.New("unknown verdict")

// verdictAliases maps the vocabulary models answer with onto the closed verdict set.
// Keys are lower-cased with '-' and ' ' folded to '_'.
var verdictAliases = map[string]Verdict{
	"conform":             VerdictConform,
	"compliant":           VerdictConform,
	"konform":             VerdictConform,
	"partially_conform":   VerdictPartiallyConform,
	"partially_compliant": VerdictPartiallyConform,
	"teilkonform":         VerdictPartiallyConform,
	"non_conform":         VerdictNonConform,
	"non_compliant":       VerdictNonConform,
	"nicht_konform":       VerdictNonConform,
	"not_assessable":      VerdictNotAssessable,
	"nicht_prüfbar":       VerdictNotAssessable,
	"nicht_pruefbar":      VerdictNotAssessable,
}

// ParseVerdict normalizes s into a Verdict.
// Unknown input yields VerdictNotAssessable together with ErrUnknownVerdict so callers
// can never end up with a fabricated classification.
func ParseVerdict(s string) (Verdict, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if v, ok := verdictAliases[key]; ok {
		return v, nil
	}
	return VerdictNotAssessable, fmt.Errorf("%w: %q", ErrUnknownVerdict, s)
}

// IsCritical reports whether the verdict belongs in the deficiency summary
func (v Verdict) IsCritical() bool {
	return v == VerdictNonConform || v == VerdictPartiallyConform
}

// Evidenced reports whether the verdict has to be backed by cited excerpts
func (v Verdict) Evidenced() bool {
	switch v {
	case VerdictConform, VerdictPartiallyConform, VerdictNonConform:
		return true
	default:
		return false
	}
}

// Severity represents the weight of a deficiency should the field fail
type Severity string

const (
	SeverityMaterial    Severity = "material"
	SeveritySignificant Severity = "significant"
	SeverityMinor       Severity = "minor"
)

// ErrUnknownSeverity is returned by ParseSeverity for values outside the enumeration
var ErrUnknownSeverity = errors.New("unknown severity")

var severityAliases = map[string]Severity{
	"material":    SeverityMaterial,
	"wesentlich":  SeverityMaterial,
	"significant": SeveritySignificant,
	"bedeutsam":   SeveritySignificant,
	"minor":       SeverityMinor,
	"gering":      SeverityMinor,
}

// ParseSeverity accepts the English classification and the German catalog vocabulary
func ParseSeverity(s string) (Severity, error) {
	if sev, ok := severityAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}

// UnmarshalText lets catalogs carry either vocabulary
func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// DocumentType tags the kind of artifact a chunk was extracted from
type DocumentType string

const (
	DocTypePDF        DocumentType = "pdf"
	DocTypeExcel      DocumentType = "excel"
	DocTypeInterview  DocumentType = "interview"
	DocTypeScreenshot DocumentType = "screenshot"
	DocTypeLog        DocumentType = "log"
	DocTypeUnknown    DocumentType = "unknown"
)

// IsVisual reports whether the chunk carries no usable text and needs human inspection
func (d DocumentType) IsVisual() bool {
	return d == DocTypeScreenshot
}
