package drawing

import "github.com/drawing-checker/backend/internal/models"

// Resolve picks the candidate with the highest numeric revision suffix from a group
// sharing one identity. The first candidate is the default; later candidates only
// replace it on strict improvement, so equal suffixes keep the first seen.
// A candidate without a revision never replaces one that has a revision.
// The bool is false only for an empty group.
func Resolve(group []models.CandidateFile) (models.CandidateFile, bool) {
	if len(group) == 0 {
		return models.CandidateFile{}, false
	}

	best := group[0]
	for _, c := range group[1:] {
		if newer(c, best) {
			best = c
		}
	}
	return best, true
}

// newer reports whether c strictly supersedes best.
func newer(c, best models.CandidateFile) bool {
	if c.Revision == nil {
		return false
	}
	if best.Revision == nil {
		return true
	}
	return c.Revision.Number > best.Revision.Number
}
