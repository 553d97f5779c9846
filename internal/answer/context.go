package answer

import "github.com/tablechat/tablechat/internal/domain"

// Assemble extracts the stored text from index matches, preserving the
// index's similarity ordering. A match with missing metadata contributes
// an empty string rather than an error: retrieval stays best-effort on
// partially-populated records.
func Assemble(matches []domain.Match) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return texts
}
