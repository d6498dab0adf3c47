package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "plain text body")

	doc, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes", doc.ID)
	assert.Equal(t, "plain text body", doc.Text)
	assert.Equal(t, "txt", doc.Metadata["type"])
	assert.Equal(t, "notes.txt", doc.Metadata["filename"])
	assert.Equal(t, path, doc.Metadata["source"])
}

func TestLoadFileMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "readme.md", "# Title\n\nbody")

	doc, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "readme", doc.ID)
	assert.Equal(t, "markdown", doc.Metadata["type"])
}

func TestLoadFileStructuredJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "faq.json", `{"id":"faq-v2","text":"the answer is 42","metadata":{"url":"https://example.com/faq"}}`)

	doc, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "faq-v2", doc.ID)
	assert.Equal(t, "the answer is 42", doc.Text)
	assert.Equal(t, "https://example.com/faq", doc.Metadata["url"])
	assert.Equal(t, "json", doc.Metadata["type"])
}

func TestLoadFileArbitraryJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `[{"k":"v"},{"k":"w"}]`)

	doc, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", doc.ID)
	assert.Contains(t, doc.Text, `"k": "v"`)
}

func TestLoadFileInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.json", `{not json`)

	_, err := New().LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "image.png", "not really a png")

	_, err := New().LoadFile(path)
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := New().LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "beta")
	writeFile(t, dir, "skip.png", "binary")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "c.txt", "gamma")

	docs, errs := New().LoadDirectory(dir, true)
	assert.Empty(t, errs)
	require.Len(t, docs, 3)
	// Sorted by ID for deterministic batches.
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestLoadDirectoryNonRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.txt", "top")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "deep.txt", "deep")

	docs, errs := New().LoadDirectory(dir, false)
	assert.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "top", docs[0].ID)
}

func TestLoadDirectoryCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "fine")
	writeFile(t, dir, "bad.json", "{broken")

	docs, errs := New().LoadDirectory(dir, true)
	require.Len(t, docs, 1)
	assert.Equal(t, "good", docs[0].ID)
	require.Len(t, errs, 1)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x/y/z.TXT"))
	assert.True(t, Supported("doc.pdf"))
	assert.False(t, Supported("archive.zip"))
}
