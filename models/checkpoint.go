package models

const checkpointJustificationLimit = 200

// CheckpointFinding is the lossy per-field snapshot written after each section
type CheckpointFinding struct {
	ID             string  `json:"id"`
	Verdict        Verdict `json:"verdict"`
	Confidence     float64 `json:"confidence"`
	ReviewRequired bool    `json:"review_required"`
	Justification  string  `json:"justification"`
}

// CheckpointSection groups checkpoint findings by section
type CheckpointSection struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Findings []CheckpointFinding `json:"befunde"`
}

// NewCheckpoint snapshots completed sections for monitoring and crash analysis
func NewCheckpoint(sections []SectionResult) []CheckpointSection {
	out := make([]CheckpointSection, 0, len(sections))
	for _, s := range sections {
		cs := CheckpointSection{ID: s.ID, Title: s.Title, Findings: make([]CheckpointFinding, 0, len(s.Findings))}
		for _, f := range s.Findings {
			cs.Findings = append(cs.Findings, CheckpointFinding{
				ID:             f.FieldID,
				Verdict:        f.Verdict,
				Confidence:     f.Confidence,
				ReviewRequired: f.ReviewRequired,
				Justification:  truncateRunes(f.Justification, checkpointJustificationLimit),
			})
		}
		out = append(out, cs)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
