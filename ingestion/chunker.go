package ingestion

import "strings"

// SplitText cuts text into windows of at most size runes, overlapping by overlap runes.
// Cuts prefer a paragraph break, then a line break, then a space in the back half of the window.
func SplitText(text string, size, overlap int) []string {
	r := []rune(strings.TrimSpace(text))
	if len(r) == 0 {
		return nil
	}
	if size <= 0 || len(r) <= size {
		return []string{string(r)}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	start := 0
	for start < len(r) {
		end := start + size
		if end >= len(r) {
			end = len(r)
		} else if cut := lastBreak(r[start:end]); cut > size/2 {
			end = start + cut
		}
		if chunk := strings.TrimSpace(string(r[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(r) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastBreak returns the position just after the best break in w, or -1
func lastBreak(w []rune) int {
	s := string(w)
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			return len([]rune(s[:i])) + len([]rune(sep))
		}
	}
	return -1
}
