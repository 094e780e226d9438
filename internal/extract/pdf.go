package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads page text from PDF documents.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (p *PDFExtractor) Name() string { return "pdf" }

func (p *PDFExtractor) CanExtract(path string) bool {
	return hasExt(path, ".pdf")
}

// Extract joins the text of every page with newlines.
func (p *PDFExtractor) Extract(path string) (string, error) {
	pages, err := PageTexts(path)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}

// PageTexts returns the plain text of every page, in page order. Pages without
// content yield an empty string so indexes stay aligned with page numbers.
func PageTexts(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
