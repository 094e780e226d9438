// Package extract pulls plain text out of drawing files.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drawing-checker/backend/internal/models"
)

// Extractor reads the text content of one file format.
type Extractor interface {
	// Name returns the unique name of the extractor.
	Name() string
	// CanExtract returns true if this extractor handles the given file.
	CanExtract(path string) bool
	// Extract returns the text of the file.
	Extract(path string) (string, error)
}

// Registry holds the available extractors and picks one per file.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry with the PDF, DXF and DWG extractors.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			NewPDFExtractor(),
			NewDXFExtractor(),
			NewDWGExtractor(),
		},
	}
}

// Register adds a new extractor to the registry. Later registrations take precedence.
func (r *Registry) Register(e Extractor) {
	r.extractors = append([]Extractor{e}, r.extractors...)
}

// Find returns the extractor for a file.
func (r *Registry) Find(path string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor for file: %s", filepath.Base(path))
}

// Extract reads the text of a file. Every failure, including a parser panic on a
// corrupt file, comes back as an extraction ReviewError.
func (r *Registry) Extract(path string) (text string, err error) {
	name := filepath.Base(path)

	e, err := r.Find(path)
	if err != nil {
		return "", models.NewExtractionError(name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = models.NewExtractionError(name, fmt.Errorf("%s panicked: %v", e.Name(), rec))
		}
	}()

	text, err = e.Extract(path)
	if err != nil {
		return "", models.NewExtractionError(name, err)
	}
	return text, nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
