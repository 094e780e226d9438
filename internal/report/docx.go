// Package report writes the review artifacts: a DOCX report per drawing and an
// annotated copy of PDF drawings.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

// ReportSuffix is appended to the sanitised drawing name.
const ReportSuffix = "_QA_Report.docx"

// DocxWriter writes Word reports into Dir.
type DocxWriter struct {
	Dir string
}

// NewDocxWriter creates a writer for the given output folder.
func NewDocxWriter(dir string) *DocxWriter {
	return &DocxWriter{Dir: dir}
}

// ReportName returns the report filename for a drawing: dots become underscores
// and ReportSuffix is appended.
func ReportName(title string) string {
	return strings.ReplaceAll(filepath.Base(title), ".", "_") + ReportSuffix
}

// FormatScore prints a score without a trailing ".0" for whole numbers.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Write renders the report and returns its path.
func (w *DocxWriter) Write(ctx context.Context, in models.ReportInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating report folder: %w", err)
	}

	doc, err := buildDocument(in)
	if err != nil {
		return "", fmt.Errorf("building report: %w", err)
	}

	path := filepath.Join(w.Dir, ReportName(in.Title))
	tmp := path + ".tmp"
	if err := doc.SaveTo(tmp); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("saving report: %w", err)
	}
	return path, nil
}

// buildDocument lays out the heading, the score line and one paragraph per
// assessment section.
func buildDocument(in models.ReportInput) (*docx.RootDoc, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}

	if _, err := doc.AddHeading("Drawing QA Report: "+in.Title, 1); err != nil {
		return nil, err
	}
	doc.AddParagraph(fmt.Sprintf("Compliance Score: %s/%d  –  Risk Level: %s", FormatScore(in.Score), in.Total, in.Risk))
	for _, section := range in.Sections {
		addSection(doc, section)
	}
	return doc, nil
}

// addSection writes one paragraph. Newlines inside the section become line breaks.
func addSection(doc *docx.RootDoc, text string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	p := doc.AddParagraph(lines[0])
	for _, line := range lines[1:] {
		p.AddText("").AddBreak(nil)
		p.AddText(line)
	}
}
