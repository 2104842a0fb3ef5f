package ingestion_test

import (
	"testing"

	"finreg-audit/ingestion"

	"github.com/stretchr/testify/assert"
)

func TestInterviewText(t *testing.T) {
	testCases := []struct {
		name     string
		data     any
		expected string
	}{
		{
			name: "meta_and_german_keys",
			data: map[string]any{
				"meta": map[string]any{"datum": "2024-05-02", "befragter": "Head of Compliance"},
				"fragen_antworten": []any{
					map[string]any{"id": "F1", "frage": "Gibt es eine Risikoanalyse?", "antwort": "Ja", "prueffeld_referenz": "S01-01", "kommentar": "Version 3"},
				},
			},
			expected: "=== Interview questionnaire: hoc.json ===\n\n" +
				"befragter: Head of Compliance\ndatum: 2024-05-02\n\n" +
				"Question F1 [Ref: S01-01]: Gibt es eine Risikoanalyse?\nAnswer: Ja\nComment: Version 3\n",
		},
		{
			name: "bare_list",
			data: []any{
				map[string]any{"question": "Who approves?", "answer": "The board", "date": "2024-01-10"},
				"not a question",
			},
			expected: "=== Interview questionnaire: hoc.json ===\n\n" +
				"Question Q-01: Who approves?\nAnswer: The board\nDate: 2024-01-10\n",
		},
		{
			name: "flat_object",
			data: map[string]any{"b": 2, "a": "one"},
			expected: "=== Interview questionnaire: hoc.json ===\n\n" +
				"a: one\nb: 2",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, ingestion.InterviewText(testCase.data, "hoc.json"))
		})
	}
}
