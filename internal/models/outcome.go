package models

// RiskTier is the coarse classification derived from a compliance score.
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// ReviewOutcome holds everything produced for one reviewed drawing.
type ReviewOutcome struct {
	ExtractedTextLength int      `json:"extractedTextLength" msgpack:"extractedTextLength"`
	RawAssessment       string   `json:"rawAssessment" msgpack:"rawAssessment"`
	Score               float64  `json:"score" msgpack:"score"`
	Total               int      `json:"total" msgpack:"total"`
	Risk                RiskTier `json:"risk" msgpack:"risk"`
	ReportPath          string   `json:"docx,omitempty" msgpack:"docx,omitempty"`
	AnnotatedPath       string   `json:"pdfOverlay,omitempty" msgpack:"pdfOverlay,omitempty"`
}

// FileError is the error payload recorded for a file that failed review.
type FileError struct {
	Kind    ErrorKind `json:"kind" msgpack:"kind"`
	Message string    `json:"message" msgpack:"message"`
}

// FileResult is either a success payload or an error payload for one WorkItem.
// Outcome may be set together with Error when the score was computed but report
// generation failed afterwards.
type FileResult struct {
	Identity string         `json:"identity" msgpack:"identity"`
	Drawing  string         `json:"drawing" msgpack:"drawing"`
	Outcome  *ReviewOutcome `json:"outcome,omitempty" msgpack:"outcome,omitempty"`
	Error    *FileError     `json:"error,omitempty" msgpack:"error,omitempty"`
}

// OK reports whether the file was reviewed without any error.
func (r FileResult) OK() bool {
	return r.Error == nil && r.Outcome != nil
}

// SummaryRow is one line of the session summary table.
type SummaryRow struct {
	Drawing string   `json:"drawing" msgpack:"drawing"`
	Score   float64  `json:"score" msgpack:"score"`
	Risk    RiskTier `json:"risk" msgpack:"risk"`
}

// SessionResult is the aggregated output of one review session.
type SessionResult struct {
	SessionID    string              `json:"sessionId" msgpack:"sessionId"`
	DrawingIndex map[string][]string `json:"drawingIndex" msgpack:"drawingIndex"`
	Reports      []FileResult        `json:"reports" msgpack:"reports"`
	Summary      []SummaryRow        `json:"summary" msgpack:"summary"`
}

// Failed returns the number of files that ended with an error.
func (s *SessionResult) Failed() int {
	n := 0
	for _, r := range s.Reports {
		if r.Error != nil {
			n++
		}
	}
	return n
}

// ReportInput is the content handed to a report writer.
// Sections are the blank-line-delimited sections of the raw assessment, in order.
type ReportInput struct {
	Title    string
	Sections []string
	Score    float64
	Total    int
	Risk     RiskTier
}
