// Package testutil provides fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drawing-checker/backend/internal/models"
)

// FakeAssessor returns canned assessments. Responses are keyed by a substring
// of the prompt; Default is used when nothing matches.
type FakeAssessor struct {
	mu        sync.Mutex
	Responses map[string]string
	Failures  map[string]error
	Default   string
	Prompts   []string
}

// NewFakeAssessor creates an assessor that answers every prompt with text.
func NewFakeAssessor(text string) *FakeAssessor {
	return &FakeAssessor{
		Responses: make(map[string]string),
		Failures:  make(map[string]error),
		Default:   text,
	}
}

func (f *FakeAssessor) Assess(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for key, err := range f.Failures {
		if strings.Contains(prompt, key) {
			return "", err
		}
	}
	for key, text := range f.Responses {
		if strings.Contains(prompt, key) {
			return text, nil
		}
	}
	return f.Default, nil
}

// Calls returns the number of prompts received.
func (f *FakeAssessor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// FakeReportWriter records report requests and writes a small text file per report.
type FakeReportWriter struct {
	mu     sync.Mutex
	Dir    string
	Fail   map[string]bool
	Inputs []models.ReportInput
}

// NewFakeReportWriter creates a writer that stores files under dir.
func NewFakeReportWriter(dir string) *FakeReportWriter {
	return &FakeReportWriter{Dir: dir, Fail: make(map[string]bool)}
}

func (w *FakeReportWriter) Write(ctx context.Context, in models.ReportInput) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Inputs = append(w.Inputs, in)

	if w.Fail[in.Title] {
		return "", errors.New("disk full")
	}
	path := filepath.Join(w.Dir, in.Title+".report.txt")
	content := fmt.Sprintf("%s %v/%d %s\n%s", in.Title, in.Score, in.Total, in.Risk, strings.Join(in.Sections, "\n\n"))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// FakeAnnotator records annotation requests without touching the source file.
type FakeAnnotator struct {
	mu      sync.Mutex
	Err     error
	Flagged map[string][]string
}

// NewFakeAnnotator creates an annotator that records calls.
func NewFakeAnnotator() *FakeAnnotator {
	return &FakeAnnotator{Flagged: make(map[string][]string)}
}

func (a *FakeAnnotator) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (a *FakeAnnotator) Annotate(ctx context.Context, path string, flagged []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return "", a.Err
	}
	a.Flagged[filepath.Base(path)] = flagged
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_annotated.pdf", nil
}
