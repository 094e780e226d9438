// Package prompt renders the review request sent to the reasoning service.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/drawing-checker/backend/internal/reference"
)

// DefaultExcerptLength is the number of runes quoted from each reference entry.
const DefaultExcerptLength = 1000

// Input holds everything the prompt mentions about one drawing.
type Input struct {
	DrawingNumber string
	Title         string
	Revision      string
	Text          string
	Specs         []reference.Entry
	Drawings      []reference.Entry
	Checklist     string
	Size          int // number of checklist items
	ExcerptLength int
}

var reviewTemplate = template.Must(template.New("review").Funcs(template.FuncMap{
	"excerpts": excerpts,
}).Parse(`
You are a construction drawing checker built for C2V+ projects working on United Utilities infrastructure sites.

A ZIP file of reference drawings has been uploaded. You must fully read and cross-reference all files, then assess the uploaded drawing.

Use CESWI 7th Edition, UUCESWI amendments, and C2V+ "What Good Looks Like" standards.

### Drawing Details:
- Drawing Number: {{.DrawingNumber}}
- Title: {{.Title}}
- Revision: {{.Revision}}

--- Drawing Content ---
{{.Text}}

--- Reference Documents ---
{{excerpts .Specs .ExcerptLength}}

--- Master Drawings ---
{{excerpts .Drawings .ExcerptLength}}

### Instructions:
1. Identify the drawing type (e.g., Drainage Layout, Cable Routing, Valve Chamber)
2. Apply all relevant checks from the following {{.Size}}-point QA list:
{{.Checklist}}
3. Output results in this format:

---
Result: ✅ / ⚠️ / ❌
Explanation (technical, specific)
Drawing Reference
Suggested Action
---

Repeat for each check.

Score the drawing out of {{.Size}}.
Then give:
- Risk Level: Low / Medium / High
- Additional Observations
- Clashes or omissions across documents
- Notes for further clarification (e.g. request plan/section views)

Only refer to visible content. Never assume.
`))

// Build renders the prompt.
func Build(in Input) (string, error) {
	if in.Size <= 0 {
		return "", fmt.Errorf("checklist size must be positive, got %d", in.Size)
	}
	if in.ExcerptLength <= 0 {
		in.ExcerptLength = DefaultExcerptLength
	}

	var b strings.Builder
	if err := reviewTemplate.Execute(&b, in); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}

func excerpts(entries []reference.Entry, n int) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Name + ":\n" + reference.Truncate(e.Text, n)
	}
	return strings.Join(parts, "\n")
}
