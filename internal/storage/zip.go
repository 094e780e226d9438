package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxExtractedFileSize caps a single extracted archive member.
const MaxExtractedFileSize = 512 << 20

// ExtractZip extracts every regular file of a zip archive directly into dest and
// returns the written base names in archive order. Directory structure inside the
// archive is flattened, so members with the same base name overwrite each other.
// Members whose names would escape dest are rejected.
func ExtractZip(zipPath, dest string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		if hiddenMember(f.Name) {
			continue
		}
		name := SafeName(f.Name)
		if name == "" {
			continue
		}
		if err := extractMember(f, filepath.Join(dest, name)); err != nil {
			return names, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func extractMember(f *zip.File, target string) error {
	if f.UncompressedSize64 > MaxExtractedFileSize {
		return fmt.Errorf("member too large: %d bytes", f.UncompressedSize64)
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(in, MaxExtractedFileSize+1))
	if err != nil {
		os.Remove(target)
		return err
	}
	if n > MaxExtractedFileSize {
		os.Remove(target)
		return fmt.Errorf("member too large")
	}
	return nil
}

// hiddenMember reports dot files and macOS resource forks.
func hiddenMember(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.HasPrefix(filepath.Base(name), ".") || strings.Contains(name, "__MACOSX/")
}

// SafeName reduces an uploaded or archived name to a plain base filename made of
// letters, digits, dots, dashes and underscores.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
