// Package drawing derives drawing identities and revisions from filenames and
// selects the latest revision of every drawing in a batch.
package drawing

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/drawing-checker/backend/internal/models"
)

// RevisionLetters are the allowed revision classifiers (construction, preliminary, draft).
const RevisionLetters = "CPD"

// nameRegex matches "<DR-DISCIPLINE-NUMBER>-<REVISION>." at the start of a base filename.
var nameRegex = regexp.MustCompile(`^(DR-[A-Z]+-\d+)-([` + RevisionLetters + `]\d+)\.`)

// Name is the typed result of parsing a filename.
// Exactly one of the two shapes is populated: Parsed (Identity and Revision)
// or Unparsed (Raw only).
type Name struct {
	Identity string
	Revision *models.Revision
	Raw      string
}

// Parsed reports whether the filename matched the identity grammar.
func (n Name) Parsed() bool {
	return n.Revision != nil
}

// Key returns the grouping key: the identity when parsed, the raw filename otherwise.
func (n Name) Key() string {
	if n.Parsed() {
		return n.Identity
	}
	return n.Raw
}

// ParseName maps a filename to its drawing identity and revision token.
// Names that do not match are returned unparsed with the raw base name; that is
// a fallback, not an error.
func ParseName(filename string) Name {
	base := filepath.Base(filename)
	m := nameRegex.FindStringSubmatch(base)
	if m == nil {
		return Name{Raw: base}
	}

	rev, ok := ParseRevision(m[2])
	if !ok {
		return Name{Raw: base}
	}

	return Name{Identity: m[1], Revision: &rev, Raw: base}
}

// ParseRevision parses a token such as "P10". The letter must be one of
// RevisionLetters and the suffix must fit in a uint64.
func ParseRevision(token string) (models.Revision, bool) {
	if len(token) < 2 {
		return models.Revision{}, false
	}
	letter := token[0]
	valid := false
	for i := 0; i < len(RevisionLetters); i++ {
		if RevisionLetters[i] == letter {
			valid = true
			break
		}
	}
	if !valid {
		return models.Revision{}, false
	}

	n, err := strconv.ParseUint(token[1:], 10, 64)
	if err != nil {
		return models.Revision{}, false
	}

	return models.Revision{Letter: letter, Number: n, Raw: token}, true
}

// Candidate builds a CandidateFile from a source file.
func Candidate(f models.SourceFile) models.CandidateFile {
	n := ParseName(f.Name)
	return models.CandidateFile{
		Identity: n.Key(),
		Revision: n.Revision,
		Name:     f.Name,
		Path:     f.Path,
	}
}
