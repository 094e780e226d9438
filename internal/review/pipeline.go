// Package review runs the per-drawing review pipeline and aggregates a session.
package review

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drawing-checker/backend/internal/assess"
	"github.com/drawing-checker/backend/internal/checklist"
	"github.com/drawing-checker/backend/internal/extract"
	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/prompt"
	"github.com/drawing-checker/backend/internal/reference"
)

// ReportWriter renders the report of one reviewed drawing and returns its path.
type ReportWriter interface {
	Write(ctx context.Context, in models.ReportInput) (string, error)
}

// Annotator produces an annotated copy of a drawing for the flagged lines.
type Annotator interface {
	Supports(path string) bool
	Annotate(ctx context.Context, path string, flagged []string) (string, error)
}

// Pipeline reviews one WorkItem: extract, prompt, assess, score, classify,
// report and annotate.
type Pipeline struct {
	Extractors    *extract.Registry
	Library       *reference.Library
	Checklist     *checklist.Checklist
	Assessor      assess.Assessor
	Writer        ReportWriter
	Annotator     Annotator // optional
	ExcerptLength int
}

// Review runs every stage for item. A report or annotation failure returns the
// outcome computed so far together with a report_write error; earlier failures
// return a nil outcome.
func (p *Pipeline) Review(ctx context.Context, item models.WorkItem) (*models.ReviewOutcome, error) {
	name := item.Name

	text, err := p.Extractors.Extract(item.Path)
	if err != nil {
		return nil, err
	}

	lib := p.Library
	if lib == nil {
		lib = reference.Empty()
	}
	req, err := prompt.Build(prompt.Input{
		DrawingNumber: item.Identity,
		Title:         Title(name),
		Revision:      item.RevisionLabel(),
		Text:          text,
		Specs:         lib.SortedSpecs(),
		Drawings:      lib.SortedDrawings(),
		Checklist:     p.Checklist.Render(),
		Size:          p.Checklist.Size(),
		ExcerptLength: p.ExcerptLength,
	})
	if err != nil {
		return nil, fmt.Errorf("building prompt for %s: %w", name, err)
	}

	raw, err := p.Assessor.Assess(ctx, req)
	if err != nil {
		return nil, models.NewAssessmentError(name, err)
	}

	score := p.Checklist.Score(raw)
	outcome := &models.ReviewOutcome{
		ExtractedTextLength: len([]rune(text)),
		RawAssessment:       raw,
		Score:               score,
		Total:               p.Checklist.Size(),
		Risk:                p.Checklist.Classify(score),
	}

	outcome.ReportPath, err = p.Writer.Write(ctx, models.ReportInput{
		Title:    name,
		Sections: Sections(raw),
		Score:    outcome.Score,
		Total:    outcome.Total,
		Risk:     outcome.Risk,
	})
	if err != nil {
		return outcome, models.NewReportWriteError(name, err)
	}

	if p.Annotator != nil && p.Annotator.Supports(item.Path) {
		outcome.AnnotatedPath, err = p.Annotator.Annotate(ctx, item.Path, checklist.Flagged(raw))
		if err != nil {
			return outcome, models.NewReportWriteError(name, fmt.Errorf("annotating: %w", err))
		}
	}

	return outcome, nil
}

// Title is the filename without its extension.
func Title(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Sections splits an assessment on blank-line boundaries, keeping order.
func Sections(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.Split(raw, "\n\n")
}
