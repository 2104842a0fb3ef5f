package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LegalRefs holds legal-basis references. Catalogs may give a list or a single string.
type LegalRefs []string

// UnmarshalJSON accepts both `"§ 25h KWG"` and `["§ 25h KWG", "§ 10 GwG"]`
func (r *LegalRefs) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("legal basis must be a string or a list of strings: %w", err)
	}
	if single == "" {
		*r = nil
		return nil
	}
	*r = LegalRefs{single}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML catalogs
func (r *LegalRefs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*r = list
	case yaml.ScalarNode:
		if node.Value == "" {
			*r = nil
			return nil
		}
		*r = LegalRefs{node.Value}
	default:
		return fmt.Errorf("legal basis must be a string or a list of strings (line %d)", node.Line)
	}
	return nil
}

// AuditField represents a single compliance question from the catalog
type AuditField struct {
	ID                 string         `json:"id" yaml:"id"`
	Question           string         `json:"question" yaml:"question"`
	LegalBasis         LegalRefs      `json:"legal_basis,omitempty" yaml:"legal_basis,omitempty"`
	ExpectedEvidence   []string       `json:"expected_evidence,omitempty" yaml:"expected_evidence,omitempty"`
	InputTypes         []DocumentType `json:"input_types,omitempty" yaml:"input_types,omitempty"`
	Severity           Severity       `json:"severity" yaml:"severity"`
	AssessmentCriteria string         `json:"assessment_criteria,omitempty" yaml:"assessment_criteria,omitempty"`
}

// WithLegalBasis returns a per-run copy carrying the section's legal basis.
// Slices are cloned so the shared catalog entry is never aliased.
func (f AuditField) WithLegalBasis(refs []string) AuditField {
	out := f
	out.LegalBasis = append(LegalRefs(nil), refs...)
	out.ExpectedEvidence = append([]string(nil), f.ExpectedEvidence...)
	out.InputTypes = append([]DocumentType(nil), f.InputTypes...)
	return out
}

// AllowedTypes returns the input type restriction as a set; empty means unrestricted
func (f AuditField) AllowedTypes() map[DocumentType]struct{} {
	set := make(map[DocumentType]struct{}, len(f.InputTypes))
	for _, t := range f.InputTypes {
		set[t] = struct{}{}
	}
	return set
}
