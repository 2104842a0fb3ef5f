package ingestion

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// interview questionnaires come in English or German vocabulary
var (
	qaListKeys   = []string{"questions_answers", "fragen_antworten"}
	questionKeys = []string{"question", "frage"}
	answerKeys   = []string{"answer", "antwort"}
	commentKeys  = []string{"comment", "kommentar"}
	dateKeys     = []string{"date", "datum"}
	refKeys      = []string{"field_ref", "prueffeld_referenz"}
)

// decodeInterview parses a JSON or YAML questionnaire
func decodeInterview(data []byte, yamlFormat bool) (any, error) {
	var v any
	if yamlFormat {
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return v, nil
}

// InterviewText flattens a questionnaire into indexable Q/A text. It accepts an object with
// "meta" plus a Q/A list, a bare Q/A list, or a flat key/value object.
func InterviewText(data any, filename string) string {
	lines := []string{fmt.Sprintf("=== Interview questionnaire: %s ===", filename), ""}

	switch v := data.(type) {
	case map[string]any:
		if meta, ok := v["meta"].(map[string]any); ok && len(meta) > 0 {
			for _, k := range sortedKeys(meta) {
				lines = append(lines, fmt.Sprintf("%s: %v", k, meta[k]))
			}
			lines = append(lines, "")
		}
		if list, ok := firstList(v, qaListKeys); ok && len(list) > 0 {
			lines = append(lines, formatQA(list)...)
		} else {
			for _, k := range sortedKeys(v) {
				if k == "meta" {
					continue
				}
				lines = append(lines, fmt.Sprintf("%s: %v", k, v[k]))
			}
		}
	case []any:
		lines = append(lines, formatQA(v)...)
	}
	return strings.Join(lines, "\n")
}

func formatQA(list []any) []string {
	var lines []string
	for i, item := range list {
		qa, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := fmt.Sprintf("Q-%02d", i+1)
		if v, ok := qa["id"]; ok && v != nil {
			id = fmt.Sprint(v)
		}
		ref := ""
		if r := lookup(qa, refKeys); r != "" {
			ref = fmt.Sprintf(" [Ref: %s]", r)
		}
		lines = append(lines,
			fmt.Sprintf("Question %s%s: %s", id, ref, lookup(qa, questionKeys)),
			fmt.Sprintf("Answer: %s", lookup(qa, answerKeys)))
		if c := lookup(qa, commentKeys); c != "" {
			lines = append(lines, "Comment: "+c)
		}
		if d := lookup(qa, dateKeys); d != "" {
			lines = append(lines, "Date: "+d)
		}
		lines = append(lines, "")
	}
	return lines
}

func lookup(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func firstList(m map[string]any, keys []string) ([]any, bool) {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l, true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
