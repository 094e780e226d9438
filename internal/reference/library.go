// Package reference loads the reference documents and master drawings that every
// review is cross-checked against.
package reference

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/drawing-checker/backend/internal/extract"
	"github.com/drawing-checker/backend/internal/storage"
)

// DefaultSpecLimit caps the stored text of each reference document.
const DefaultSpecLimit = 10000

// UnreadableDrawing is stored for master drawings whose CAD text cannot be read.
const UnreadableDrawing = "Unreadable DWG"

// Entry is one named reference text.
type Entry struct {
	Name string
	Text string
}

// Library holds the reference corpora. It is built once and shared read-only by
// every review.
type Library struct {
	Specs    map[string]string
	Drawings map[string]string
}

// Options configures Load.
type Options struct {
	DocsDir    string // folder of *.pdf reference documents
	DrawingZip string // master drawings archive
	ExtractDir string // where the archive is unpacked
	SpecLimit  int
	Registry   *extract.Registry
	Logger     *slog.Logger
}

// Empty returns a library without reference material.
func Empty() *Library {
	return &Library{Specs: map[string]string{}, Drawings: map[string]string{}}
}

// Load reads the reference documents and master drawings. Missing folders or a
// missing archive leave the corresponding corpus empty; an unreadable entry is
// stored with a placeholder text instead of failing the load.
func Load(opts Options) (*Library, error) {
	if opts.SpecLimit <= 0 {
		opts.SpecLimit = DefaultSpecLimit
	}
	if opts.Registry == nil {
		opts.Registry = extract.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With("component", "reference")

	lib := Empty()

	if opts.DocsDir != "" {
		if err := lib.loadSpecs(opts); err != nil {
			return nil, err
		}
	}
	if opts.DrawingZip != "" {
		if err := lib.loadDrawings(opts); err != nil {
			return nil, err
		}
	}

	log.Info("reference library loaded", "specs", len(lib.Specs), "drawings", len(lib.Drawings))
	return lib, nil
}

func (l *Library) loadSpecs(opts Options) error {
	entries, err := os.ReadDir(opts.DocsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading reference docs: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		text, err := opts.Registry.Extract(filepath.Join(opts.DocsDir, e.Name()))
		if err != nil {
			l.Specs[e.Name()] = "⚠️ Could not read: " + err.Error()
			continue
		}
		l.Specs[e.Name()] = Truncate(text, opts.SpecLimit)
	}
	return nil
}

func (l *Library) loadDrawings(opts Options) error {
	if _, err := os.Stat(opts.DrawingZip); os.IsNotExist(err) {
		return nil
	}
	if opts.ExtractDir == "" {
		opts.ExtractDir = strings.TrimSuffix(opts.DrawingZip, filepath.Ext(opts.DrawingZip)) + "_extracted"
	}

	names, err := storage.ExtractZip(opts.DrawingZip, opts.ExtractDir)
	if err != nil {
		return fmt.Errorf("extracting master drawings: %w", err)
	}

	for _, name := range names {
		path := filepath.Join(opts.ExtractDir, name)
		switch {
		case strings.HasSuffix(name, ".pdf"):
			text, err := opts.Registry.Extract(path)
			if err != nil {
				l.Drawings[name] = "⚠️ Could not read: " + err.Error()
				continue
			}
			l.Drawings[name] = text
		case strings.HasSuffix(name, ".dxf"), strings.HasSuffix(name, ".dwg"):
			text, err := opts.Registry.Extract(path)
			if err != nil {
				l.Drawings[name] = UnreadableDrawing
				continue
			}
			l.Drawings[name] = text
		}
	}
	return nil
}

// SortedSpecs returns the reference documents ordered by name.
func (l *Library) SortedSpecs() []Entry {
	return sorted(l.Specs)
}

// SortedDrawings returns the master drawings ordered by name.
func (l *Library) SortedDrawings() []Entry {
	return sorted(l.Drawings)
}

func sorted(m map[string]string) []Entry {
	out := make([]Entry, 0, len(m))
	for name, text := range m {
		out = append(out, Entry{Name: name, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
