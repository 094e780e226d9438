package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// DWGExtractor recognises native DWG files. DWG is a closed binary format, so
// only files that are actually ASCII DXF under a .dwg name can be read; real DWG
// files fail with a descriptive error.
type DWGExtractor struct {
	dxf *DXFExtractor
}

// NewDWGExtractor creates a DWG extractor.
func NewDWGExtractor() *DWGExtractor {
	return &DWGExtractor{dxf: NewDXFExtractor()}
}

func (d *DWGExtractor) Name() string { return "dwg" }

func (d *DWGExtractor) CanExtract(path string) bool {
	return hasExt(path, ".dwg")
}

func (d *DWGExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening dwg: %w", err)
	}
	head := make([]byte, 6)
	n, err := io.ReadFull(f, head)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading dwg header: %w", err)
	}

	// Native DWG starts with a version string such as AC1032.
	if n == len(head) && bytes.HasPrefix(head, []byte("AC")) {
		return "", fmt.Errorf("binary DWG (%s) is not supported, export the drawing as DXF", head)
	}
	return d.dxf.Extract(path)
}
