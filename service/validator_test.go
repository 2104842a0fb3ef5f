package service_test

import (
	"testing"

	"finreg-audit/models"
	"finreg-audit/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retrieved(sources ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	return set
}

func TestStructuralValidator(t *testing.T) {
	validator := service.NewStructuralValidator(models.FrameworkGwG)
	require.Equal(t, models.FrameworkGwG, validator.Framework())

	testCases := []struct {
		name     string
		judgment models.Judgment
		expected []string
	}{
		{
			name: "consistent_judgment",
			judgment: models.Judgment{
				Verdict:       "conform",
				Justification: "Documented and approved.",
				CitedExcerpts: []string{"approved 2024-03-12"},
				Sources:       []string{"risk.pdf"},
			},
			expected: []string{},
		},
		{
			name: "phantom_sources_sorted_and_deduplicated",
			judgment: models.Judgment{
				Verdict:       "partially_conform",
				CitedExcerpts: []string{"x"},
				Sources:       []string{"risk.pdf", "zeta.pdf", "ghost.xlsx", "zeta.pdf"},
			},
			expected: []string{"Phantom sources (not in retrieval): ghost.xlsx, zeta.pdf"},
		},
		{
			name: "conform_with_deficiency",
			judgment: models.Judgment{
				Verdict:       "conform",
				CitedExcerpts: []string{"x"},
				Deficiency:    strPtr("Minor gaps in documentation"),
			},
			expected: []string{"Deficiency statement on 'conform' verdict"},
		},
		{
			name: "non_conform_without_deficiency",
			judgment: models.Judgment{
				Verdict:       "non_conform",
				CitedExcerpts: []string{"x"},
			},
			expected: []string{"No deficiency statement on 'non_conform' verdict"},
		},
		{
			name: "blank_deficiency_counts_as_missing",
			judgment: models.Judgment{
				Verdict:       "non_conform",
				CitedExcerpts: []string{"x"},
				Deficiency:    strPtr("   "),
			},
			expected: []string{"No deficiency statement on 'non_conform' verdict"},
		},
		{
			name: "evidenced_verdict_without_excerpts",
			judgment: models.Judgment{
				Verdict: "partially_conform",
			},
			expected: []string{"Verdict 'partially_conform' without cited excerpts"},
		},
		{
			name: "not_assessable_needs_no_excerpts",
			judgment: models.Judgment{
				Verdict: "not_assessable",
			},
			expected: []string{},
		},
		{
			name: "unresolved_placeholders",
			judgment: models.Judgment{
				Verdict:       "non_conform",
				Justification: "The {institution} has no policy.",
				CitedExcerpts: []string{"x"},
				Deficiency:    strPtr("Missing policy for {field_id}"),
			},
			expected: []string{
				"Unresolved placeholder in 'justification'",
				"Unresolved placeholder in 'deficiency'",
			},
		},
		{
			name: "unknown_verdict_skips_verdict_checks",
			judgment: models.Judgment{
				Verdict: "maybe",
				Sources: []string{"ghost.pdf"},
			},
			expected: []string{"Phantom sources (not in retrieval): ghost.pdf"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := validator.Validate(testCase.judgment, retrieved("risk.pdf"))
			assert.Equal(t, testCase.expected, got)
		})
	}
}

func TestStructuralValidatorNamesPhantomSource(t *testing.T) {
	validator := service.NewStructuralValidator(models.FrameworkDORA)
	got := validator.Validate(models.Judgment{
		Verdict:       "conform",
		CitedExcerpts: []string{"x"},
		Sources:       []string{"invented_policy.pdf"},
	}, retrieved("incident_register.xlsx"))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "invented_policy.pdf")
}
