package service

import (
	"fmt"
	"strings"

	"finreg-audit/models"
)

const systemPromptTemplate = `%s

Your task:
1. Analyse the supplied document excerpts (evidence)
2. Answer the audit question precisely and with direct reference to the evidence
3. Classify according to: conform | partially_conform | non_conform | not_assessable
4. Support your classification with concrete excerpts from the documents
5. Where applicable, formulate a deficiency in formal supervisory style and concrete recommendations
6. Estimate your own certainty (confidence_self: 0.0 to 1.0)

Integrity rules:
- Be strict but fair; doubtful evidence leads to "partially_conform"
- Missing evidence leads to "not_assessable", NOT automatically to "non_conform"
- Always cite the source (file name and section) of your excerpts
- Formulate deficiencies factually and precisely, without assigning blame
- Cite ONLY sources that actually appear in the supplied evidence
- If the evidence is insufficient, classify as "not_assessable"; never invent excerpts

Respond EXCLUSIVELY with valid JSON of this structure:
{
  "verdict": "conform|partially_conform|non_conform|not_assessable",
  "justification": "Detailed justification (3-8 sentences)",
  "cited_excerpts": ["Quote 1 (source: file.pdf, p. X)", "..."],
  "deficiency": "Deficiency statement in supervisory style, or null if conform",
  "recommendations": ["Concrete measure 1", "..."],
  "sources": ["file.pdf", "interview.json"],
  "confidence_self": 0.85
}
`

// SystemPrompt builds the framework-specific system prompt
func SystemPrompt(fw models.Framework) string {
	return fmt.Sprintf(systemPromptTemplate, fw.Profile().Role)
}

// UserPrompt embeds the field and the formatted evidence block
func UserPrompt(field models.AuditField, evidence string) string {
	severity := string(field.Severity)
	if severity == "" {
		severity = "unknown"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## AUDIT FIELD: %s\n", field.ID)
	fmt.Fprintf(&b, "**Question:** %s\n", field.Question)
	fmt.Fprintf(&b, "**Legal basis:** %s\n", strings.Join(field.LegalBasis, ", "))
	fmt.Fprintf(&b, "**Expected evidence:** %s\n", strings.Join(field.ExpectedEvidence, ", "))
	fmt.Fprintf(&b, "**Severity:** %s\n", severity)
	fmt.Fprintf(&b, "**Assessment criteria:** %s\n\n", field.AssessmentCriteria)
	b.WriteString(evidence)
	b.WriteString("\n\nAssess this audit field and respond as JSON.\n")
	return b.String()
}
