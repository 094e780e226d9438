package extract

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DXFExtractor reads text entities from ASCII DXF files.
type DXFExtractor struct{}

// NewDXFExtractor creates a DXF extractor.
func NewDXFExtractor() *DXFExtractor {
	return &DXFExtractor{}
}

func (d *DXFExtractor) Name() string { return "dxf" }

func (d *DXFExtractor) CanExtract(path string) bool {
	return hasExt(path, ".dxf")
}

// textEntities are the entity types whose group code 1 holds display text.
var textEntities = map[string]bool{
	"TEXT":      true,
	"MTEXT":     true,
	"ATTRIB":    true,
	"ATTDEF":    true,
	"DIMENSION": true,
}

// Extract returns the text of every text-bearing entity in the ENTITIES section,
// one entity per line.
func (d *DXFExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening dxf: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		lines      []string
		inSection  bool
		inEntities bool
		entity     string
		sawPair    bool
		sb         strings.Builder
	)

	flush := func() {
		if sb.Len() > 0 {
			text := sb.String()
			if entity == "MTEXT" {
				text = plainMText(text)
			}
			lines = append(lines, text)
			sb.Reset()
		}
	}

	for {
		code, value, ok, err := nextPair(scanner)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		sawPair = true

		if code == "0" {
			flush()
			switch {
			case value == "SECTION":
				inSection = true
			case value == "ENDSEC":
				inSection, inEntities = false, false
			case value == "EOF":
				return strings.Join(lines, "\n"), nil
			}
			entity = value
			continue
		}

		if inSection && code == "2" && entity == "SECTION" {
			inEntities = value == "ENTITIES"
			continue
		}

		if !inEntities || !textEntities[entity] {
			continue
		}
		// MTEXT splits long strings over code 3 chunks followed by a final code 1.
		switch code {
		case "3":
			sb.WriteString(value)
		case "1":
			sb.WriteString(value)
		}
	}

	if !sawPair {
		return "", fmt.Errorf("not an ASCII DXF file")
	}
	flush()
	return strings.Join(lines, "\n"), nil
}

// plainMText strips MTEXT inline formatting. \P becomes a line break and codes
// with an argument (\fArial;, \H2.5x;) are dropped up to their semicolon.
// Stacked fractions keep their text.
func plainMText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{', '}':
			continue
		case '\\':
		default:
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		i++
		switch s[i] {
		case 'P':
			b.WriteByte('\n')
		case '~':
			b.WriteByte(' ')
		case '\\', '{', '}':
			b.WriteByte(s[i])
		case 'S':
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				return b.String()
			}
			b.WriteString(strings.NewReplacer("^", "/", "#", "/").Replace(s[i+1 : i+end]))
			i += end
		case 'f', 'F', 'H', 'W', 'Q', 'T', 'A', 'C', 'c', 'p':
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				return b.String()
			}
			i += end
		case 'L', 'l', 'O', 'o', 'K', 'k':
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// nextPair reads one group code / value pair.
func nextPair(s *bufio.Scanner) (code, value string, ok bool, err error) {
	if !s.Scan() {
		return "", "", false, s.Err()
	}
	code = strings.TrimSpace(s.Text())
	if !s.Scan() {
		if s.Err() != nil {
			return "", "", false, s.Err()
		}
		return "", "", false, fmt.Errorf("truncated group code %s", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			if r == '-' {
				continue
			}
			return "", "", false, fmt.Errorf("invalid group code %q", code)
		}
	}
	return code, strings.TrimRight(s.Text(), "\r"), true, nil
}
