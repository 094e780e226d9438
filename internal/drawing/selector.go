package drawing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/drawing-checker/backend/internal/models"
)

// DrawingPattern matches the document and CAD-interchange formats that can be reviewed.
const DrawingPattern = "*.{pdf,dwg,dxf}"

// Selection is the deduplicated work list of a session plus the identity index.
type Selection struct {
	Items []models.WorkItem `json:"items"`
	// Index maps identity to every original filename observed in its group.
	Index map[string][]string `json:"index"`
}

// IsDrawing reports whether the filename has a recognised drawing extension.
func IsDrawing(name string) bool {
	ok, err := doublestar.Match(DrawingPattern, strings.ToLower(filepath.Base(name)))
	return err == nil && ok
}

// Select groups the recognised files by identity, resolves the latest revision of
// every group and returns one WorkItem per group in first-seen order.
func Select(files []models.SourceFile) Selection {
	var order []string
	groups := make(map[string][]models.CandidateFile)

	for _, f := range files {
		if !IsDrawing(f.Name) {
			continue
		}
		c := Candidate(f)
		if _, seen := groups[c.Identity]; !seen {
			order = append(order, c.Identity)
		}
		groups[c.Identity] = append(groups[c.Identity], c)
	}

	sel := Selection{
		Items: make([]models.WorkItem, 0, len(order)),
		Index: make(map[string][]string, len(order)),
	}
	for _, id := range order {
		group := groups[id]
		best, _ := Resolve(group)
		sel.Items = append(sel.Items, models.WorkItem{CandidateFile: best})

		names := make([]string, len(group))
		for i, c := range group {
			names[i] = c.Name
		}
		sel.Index[id] = names
	}

	return sel
}

// ListSessionFiles returns the regular files directly inside dir.
// os.ReadDir sorts by name, which keeps the order stable within a run.
func ListSessionFiles(dir string) ([]models.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading session folder: %w", err)
	}

	files := make([]models.SourceFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, models.SourceFile{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return files, nil
}
