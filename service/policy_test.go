package service_test

import (
	"testing"

	"finreg-audit/models"
	"finreg-audit/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionPolicy(t *testing.T) {
	policy := service.NewDecisionPolicy(0.4, 0.7)
	field := gwgField()

	testCases := []struct {
		name            string
		verdict         string
		confidence      float64
		warnings        []string
		expectedState   service.DecisionState
		expectedVerdict models.Verdict
		expectedReview  bool
		expectedWarning string
	}{
		{
			name:            "accepted",
			verdict:         "conform",
			confidence:      0.85,
			expectedState:   service.StateAccepted,
			expectedVerdict: models.VerdictConform,
		},
		{
			name:            "review_threshold_is_exclusive",
			verdict:         "non_conform",
			confidence:      0.7,
			expectedState:   service.StateAccepted,
			expectedVerdict: models.VerdictNonConform,
		},
		{
			name:            "review_flagged",
			verdict:         "partially_conform",
			confidence:      0.55,
			expectedState:   service.StateReviewFlagged,
			expectedVerdict: models.VerdictPartiallyConform,
			expectedReview:  true,
			expectedWarning: "Review required: confidence 0.55 < 0.7",
		},
		{
			name:            "confidence_rejected",
			verdict:         "non_conform",
			confidence:      0.31,
			expectedState:   service.StateConfidenceRejected,
			expectedVerdict: models.VerdictNotAssessable,
			expectedReview:  true,
			expectedWarning: "Confidence too low (0.31 < 0.4): automatically set to not_assessable",
		},
		{
			name:            "validator_warning_forces_review",
			verdict:         "conform",
			confidence:      0.9,
			warnings:        []string{"Deficiency statement on 'conform' verdict"},
			expectedState:   service.StateAccepted,
			expectedVerdict: models.VerdictConform,
			expectedReview:  true,
			expectedWarning: "Deficiency statement on 'conform' verdict",
		},
		{
			name:            "unknown_verdict",
			verdict:         "looks fine",
			confidence:      0.9,
			expectedState:   service.StateAccepted,
			expectedVerdict: models.VerdictNotAssessable,
			expectedReview:  true,
			expectedWarning: `Unrecognised verdict "looks fine" treated as not_assessable`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			d := policy.Decide(field, models.Judgment{Verdict: testCase.verdict, Justification: "j"}, testCase.confidence, testCase.warnings)
			require.Equal(t, testCase.expectedState, d.State)
			assert.Equal(t, testCase.expectedVerdict, d.Finding.Verdict)
			assert.Equal(t, testCase.expectedReview, d.Finding.ReviewRequired)
			assert.Equal(t, testCase.confidence, d.Finding.Confidence)
			assert.Equal(t, field.ID, d.Finding.FieldID)
			assert.Equal(t, field.Severity, d.Finding.Severity)
			assert.NotNil(t, d.Finding.CitedExcerpts)
			assert.NotNil(t, d.Finding.Sources)
			if testCase.expectedWarning == "" {
				assert.Empty(t, d.Finding.Warnings)
			} else {
				assert.Contains(t, d.Finding.Warnings, testCase.expectedWarning)
			}
		})
	}
}

func TestDecisionPolicyDoesNotAliasWarnings(t *testing.T) {
	policy := service.NewDecisionPolicy(0.4, 0.7)
	warnings := make([]string, 1, 4)
	warnings[0] = "w"
	d := policy.Decide(gwgField(), models.Judgment{Verdict: "conform"}, 0.5, warnings)
	require.Len(t, d.Finding.Warnings, 2)
	assert.Equal(t, []string{"w"}, warnings)
}
