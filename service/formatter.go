package service

import (
	"fmt"
	"strings"

	"finreg-audit/models"
)

// NoEvidenceMarker is sent to the model when nothing survives the type filter
const NoEvidenceMarker = "NO EVIDENCE FOUND - no relevant documents in the audit corpus."

// FormatEvidence renders the surviving chunks into the evidence block of the user prompt.
// Chunks outside the field's allowed input types are skipped; the gate has already run,
// so skipping here never turns a field into not_assessable.
func FormatEvidence(chunks []models.EvidenceChunk, field models.AuditField, maxExcerpt int) string {
	allowed := field.AllowedTypes()
	var b strings.Builder
	written := 0
	for i, c := range chunks {
		if len(allowed) > 0 {
			if _, ok := allowed[c.DocType]; !ok {
				continue
			}
		}
		if written == 0 {
			b.WriteString("=== EVIDENCE FOUND ===\n\n")
		}
		written++

		source := c.Source
		if source == "" {
			source = "unknown"
		}
		docType := c.DocType
		if docType == "" {
			docType = models.DocTypeUnknown
		}
		relevance := ""
		if c.Score != nil && *c.Score != 0 {
			relevance = fmt.Sprintf(" (relevance: %.2f)", *c.Score)
		}
		fmt.Fprintf(&b, "--- Evidence %d: %s [%s]%s ---\n", i+1, source, docType, relevance)

		if docType.IsVisual() {
			fmt.Fprintf(&b, "[Screenshot file: %s - visual inspection by a human reviewer required]\n", source)
		} else {
			b.WriteString(truncate(c.Text, maxExcerpt))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if written == 0 {
		return NoEvidenceMarker
	}
	return b.String()
}

// truncate caps s at limit runes; limit <= 0 disables the cap
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
