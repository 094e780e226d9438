package drawing

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceFiles(names ...string) []models.SourceFile {
	out := make([]models.SourceFile, len(names))
	for i, n := range names {
		out[i] = models.SourceFile{Name: n, Path: filepath.Join("/session", n)}
	}
	return out
}

func TestIsDrawing(t *testing.T) {
	assert.True(t, IsDrawing("a.pdf"))
	assert.True(t, IsDrawing("A.PDF"))
	assert.True(t, IsDrawing("plan.DXF"))
	assert.True(t, IsDrawing("/x/y/plan.dwg"))
	assert.False(t, IsDrawing("bundle.zip"))
	assert.False(t, IsDrawing("readme.txt"))
	assert.False(t, IsDrawing("pdf"))
}

func TestSelect(t *testing.T) {
	files := sourceFiles(
		"DR-AB-100-C1.pdf",
		"notes.pdf",
		"DR-AB-100-P10.pdf",
		"DR-EL-7-C2.dxf",
		"bundle.zip",
		"DR-AB-100-C2.pdf",
		"readme.txt",
		"DR-EL-7-C3.dwg",
	)

	sel := Select(files)

	require.Len(t, sel.Items, 3)
	assert.Equal(t, "DR-AB-100-P10.pdf", sel.Items[0].Name)
	assert.Equal(t, "notes.pdf", sel.Items[1].Name)
	assert.Equal(t, "notes.pdf", sel.Items[1].Identity)
	assert.Nil(t, sel.Items[1].Revision)
	assert.Equal(t, "DR-EL-7-C3.dwg", sel.Items[2].Name)
	assert.Equal(t, "/session/DR-EL-7-C3.dwg", sel.Items[2].Path)

	assert.Equal(t, map[string][]string{
		"DR-AB-100": {"DR-AB-100-C1.pdf", "DR-AB-100-P10.pdf", "DR-AB-100-C2.pdf"},
		"notes.pdf": {"notes.pdf"},
		"DR-EL-7":   {"DR-EL-7-C2.dxf", "DR-EL-7-C3.dwg"},
	}, sel.Index)
}

func TestSelect_OneItemPerIdentityAndIndexCoversInput(t *testing.T) {
	names := []string{
		"DR-A-1-C1.pdf", "DR-A-1-C2.pdf", "DR-B-2-P1.dxf", "x.pdf", "y.dwg",
		"DR-B-2-P1.pdf", "DR-A-1-D9.dwg", "skip.docx", "DR-C-3-C1.PDF",
	}
	sel := Select(sourceFiles(names...))

	identities := make(map[string]bool)
	for _, it := range sel.Items {
		assert.False(t, identities[it.Identity], "duplicate identity %s", it.Identity)
		identities[it.Identity] = true
	}
	assert.Len(t, identities, len(sel.Index))

	var indexed []string
	for _, v := range sel.Index {
		indexed = append(indexed, v...)
	}
	var want []string
	for _, n := range names {
		if IsDrawing(n) {
			want = append(want, n)
		}
	}
	sort.Strings(indexed)
	sort.Strings(want)
	assert.Equal(t, want, indexed)
}

func TestSelect_Idempotent(t *testing.T) {
	files := sourceFiles("DR-A-1-C1.pdf", "DR-A-1-P4.pdf", "notes.pdf", "DR-B-9-C1.dxf")
	first := Select(files)
	second := Select(files)
	assert.Equal(t, first, second)
}

func TestSelect_UnparseableNeverMerged(t *testing.T) {
	sel := Select(sourceFiles("notes.pdf", "notes.dxf", "DR-AB-100-C1.pdf"))
	require.Len(t, sel.Items, 3)
	assert.Equal(t, []string{"notes.pdf"}, sel.Index["notes.pdf"])
	assert.Equal(t, []string{"notes.dxf"}, sel.Index["notes.dxf"])
}

func TestListSessionFiles(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.pdf", "a.dxf", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	files, err := ListSessionFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.dxf", files[0].Name)
	assert.Equal(t, filepath.Join(dir, "a.dxf"), files[0].Path)
	assert.Equal(t, "c.txt", files[2].Name)

	_, err = ListSessionFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
