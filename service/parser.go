package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"finreg-audit/models"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareObjectPattern = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// ExtractJSON recovers the structured object from raw model text.
// It tries the trimmed text, then a fenced code block, then the first brace-balanced object
// (one nesting level). The first candidate that decodes to an object wins.
func ExtractJSON(raw string) (map[string]any, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := bareObjectPattern.FindString(raw); m != "" {
		candidates = append(candidates, m)
	}
	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, &ParseError{Raw: raw, Offset: 0}
}

// DecodeJudgment extracts and maps the model answer onto a Judgment.
// Missing keys stay at their zero value; a wrongly typed key is ignored rather than failing the field.
func DecodeJudgment(raw string) (models.Judgment, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return models.Judgment{}, err
	}
	j := models.Judgment{
		Verdict:         stringValue(obj["verdict"]),
		Justification:   stringValue(obj["justification"]),
		CitedExcerpts:   stringList(obj["cited_excerpts"]),
		Recommendations: stringList(obj["recommendations"]),
		Sources:         stringList(obj["sources"]),
	}
	if d, ok := obj["deficiency"].(string); ok {
		j.Deficiency = &d
	}
	switch v := obj["confidence_self"].(type) {
	case float64:
		j.SelfConfidence = &v
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			j.SelfConfidence = &f
		}
	}
	return j, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, stringValue(item))
		}
	case string:
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
