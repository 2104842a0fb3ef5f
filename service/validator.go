package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"finreg-audit/models"
)

var placeholderPattern = regexp.MustCompile(`\{[^}]*\}`)

// StructuralValidator runs advisory consistency checks on a model judgment.
// Every check is independent; any warning forces human review downstream.
type StructuralValidator struct {
	framework models.Framework
}

// NewStructuralValidator creates a validator; the framework is carried for log context only
func NewStructuralValidator(fw models.Framework) *StructuralValidator {
	return &StructuralValidator{framework: fw}
}

// Framework returns the framework the validator was created for
func (v *StructuralValidator) Framework() models.Framework {
	return v.framework
}

// Validate returns the warnings for j given the sources that actually passed the gate
func (v *StructuralValidator) Validate(j models.Judgment, retrievedSources map[string]struct{}) []string {
	warnings := []string{}

	if phantoms := phantomSources(j.Sources, retrievedSources); len(phantoms) > 0 {
		warnings = append(warnings,
			"Phantom sources (not in retrieval): "+strings.Join(phantoms, ", "))
	}

	if placeholderPattern.MatchString(j.Justification) {
		warnings = append(warnings, "Unresolved placeholder in 'justification'")
	}
	if j.Deficiency != nil && placeholderPattern.MatchString(*j.Deficiency) {
		warnings = append(warnings, "Unresolved placeholder in 'deficiency'")
	}

	verdict, err := models.ParseVerdict(j.Verdict)
	if err != nil {
		return warnings
	}
	if verdict.Evidenced() && len(j.CitedExcerpts) == 0 {
		warnings = append(warnings, fmt.Sprintf("Verdict '%s' without cited excerpts", verdict))
	}
	if verdict == models.VerdictConform && j.HasDeficiency() {
		warnings = append(warnings, "Deficiency statement on 'conform' verdict")
	}
	if verdict == models.VerdictNonConform && !j.HasDeficiency() {
		warnings = append(warnings, "No deficiency statement on 'non_conform' verdict")
	}
	return warnings
}

// phantomSources returns cited sources absent from the retrieval set, deduplicated and sorted
func phantomSources(cited []string, retrieved map[string]struct{}) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range cited {
		if _, ok := retrieved[s]; ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
