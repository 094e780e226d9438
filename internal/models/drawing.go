// Package models contains domain types for the drawing QA checker.
package models

// SourceFile is a file found in a session folder before any selection happens.
type SourceFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CandidateFile is a recognised drawing file with its derived identity.
// Revision is nil when the filename did not match the identity grammar;
// in that case Identity is the raw filename.
type CandidateFile struct {
	Identity string    `json:"identity"`
	Revision *Revision `json:"revision,omitempty"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
}

// Revision is a revision token such as C12: one classifier letter and a numeric suffix.
// Only Number takes part in ordering.
type Revision struct {
	Letter byte   `json:"-"`
	Number uint64 `json:"number"`
	Raw    string `json:"raw"`
}

// String returns the token as it appeared in the filename.
func (r Revision) String() string {
	return r.Raw
}

// WorkItem is the latest file selected for one drawing identity.
type WorkItem struct {
	CandidateFile
}

// RevisionLabel returns the revision token or "N/A" for unparsed names.
func (w WorkItem) RevisionLabel() string {
	if w.Revision == nil {
		return "N/A"
	}
	return w.Revision.Raw
}
