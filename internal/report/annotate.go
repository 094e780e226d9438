package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drawing-checker/backend/internal/extract"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// AnnotatedSuffix replaces the extension of an annotated copy.
const AnnotatedSuffix = "_annotated.pdf"

// Stamp layout in points from the top left corner of the page.
const (
	stampLeft      = 50
	stampTop       = 50
	stampLineGap   = 20
	stampMaxRunes  = 80
	stampFontSize  = 8
	stampFillColor = "#FF0000"
)

// PDFAnnotator stamps flagged assessment lines onto the pages of a PDF drawing
// whose text contains them.
type PDFAnnotator struct {
	// Dir receives the annotated copy. Empty means next to the source.
	Dir string
}

// NewPDFAnnotator creates an annotator writing into dir.
func NewPDFAnnotator(dir string) *PDFAnnotator {
	return &PDFAnnotator{Dir: dir}
}

// Supports reports whether the drawing format can be annotated.
func (a *PDFAnnotator) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// AnnotatedName returns the name of the annotated copy of a drawing.
func AnnotatedName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + AnnotatedSuffix
}

// Annotate writes an annotated copy and returns its path. The copy is written even
// when no flagged line matches any page.
func (a *PDFAnnotator) Annotate(ctx context.Context, path string, flagged []string) (string, error) {
	dir := a.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, AnnotatedName(path))

	pages, err := extract.PageTexts(path)
	if err != nil {
		return "", err
	}
	if err := copyFile(path, out); err != nil {
		return "", fmt.Errorf("copying drawing: %w", err)
	}

	for i, line := range flagged {
		if err := ctx.Err(); err != nil {
			os.Remove(out)
			return "", err
		}
		selected := MatchPages(pages, line)
		if len(selected) == 0 {
			continue
		}
		desc := fmt.Sprintf("fontname:Helvetica, points:%d, fillcolor:%s, position:tl, offset:%d -%d, scalefactor:1 abs, rotation:0",
			stampFontSize, stampFillColor, stampLeft, stampTop+stampLineGap*i)
		if err := api.AddTextWatermarksFile(out, out, selected, true, StampText(line), desc, nil); err != nil {
			os.Remove(out)
			return "", fmt.Errorf("stamping %q: %w", line, err)
		}
	}
	return out, nil
}

// MatchPages returns the 1-based numbers of pages whose text contains line,
// ignoring case.
func MatchPages(pages []string, line string) []string {
	needle := strings.ToLower(strings.TrimSpace(line))
	if needle == "" {
		return nil
	}
	var selected []string
	for i, text := range pages {
		if strings.Contains(strings.ToLower(text), needle) {
			selected = append(selected, strconv.Itoa(i+1))
		}
	}
	return selected
}

// StampText is the "[!] " marker followed by the first 80 runes of line. Runes the
// standard PDF fonts cannot encode are dropped.
func StampText(line string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(line) {
		if n == stampMaxRunes {
			break
		}
		n++
		if r < 0x20 || r > 0xFF {
			continue
		}
		b.WriteRune(r)
	}
	return "[!] " + strings.TrimSpace(b.String())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
