// Package loader reads documents from disk in the formats the index
// accepts. Per-file failures are collected and reported, never fatal to a
// directory load.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

// SupportedExtensions lists the file types LoadFile understands.
var SupportedExtensions = []string{".txt", ".md", ".json", ".pdf", ".docx"}

// Loader parses files into store documents.
type Loader struct {
	workers int
}

// New creates a loader that parses directory batches with one worker per CPU.
func New() *Loader {
	return &Loader{workers: runtime.NumCPU()}
}

// Supported reports whether the loader can parse the given path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadFile reads a single file into a document. The document ID is the
// filename stem; metadata records the source path, format, and filename.
func (l *Loader) LoadFile(path string) (store.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	meta := map[string]any{
		"source":   path,
		"filename": base,
	}

	switch ext {
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return store.Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".md" {
			meta["type"] = "markdown"
		} else {
			meta["type"] = "txt"
		}
		return store.Document{ID: stem, Text: string(content), Metadata: meta}, nil

	case ".json":
		return loadJSON(path, stem, meta)

	case ".pdf":
		text, pages, err := extractPDF(path)
		if err != nil {
			return store.Document{}, fmt.Errorf("load pdf %s: %w", path, err)
		}
		meta["type"] = "pdf"
		meta["num_pages"] = pages
		return store.Document{ID: stem, Text: text, Metadata: meta}, nil

	case ".docx":
		text, err := cat.File(path)
		if err != nil {
			return store.Document{}, fmt.Errorf("load docx %s: %w", path, err)
		}
		meta["type"] = "docx"
		return store.Document{ID: stem, Text: text, Metadata: meta}, nil

	default:
		return store.Document{}, fmt.Errorf("unsupported file type %q (supported: %s)",
			ext, strings.Join(SupportedExtensions, ", "))
	}
}

// LoadDirectory walks root and parses every supported file, recursing into
// subdirectories when recursive is set. Hidden directories are skipped.
// Files that fail to parse are reported in the returned error slice; the
// rest of the batch still loads.
func (l *Loader) LoadDirectory(root string, recursive bool) ([]store.Document, []error) {
	paths, walkErr := scan(root, recursive)
	if walkErr != nil {
		return nil, []error{walkErr}
	}

	var (
		mu   sync.Mutex
		docs []store.Document
		errs []error
		wg   sync.WaitGroup
	)
	pathCh := make(chan string, l.workers)

	for range l.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pathCh {
				doc, err := l.LoadFile(p)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					docs = append(docs, doc)
				}
				mu.Unlock()
			}
		}()
	}
	for _, p := range paths {
		pathCh <- p
	}
	close(pathCh)
	wg.Wait()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, errs
}

// scan collects supported file paths under root.
func scan(root string, recursive bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// loadJSON honors the {"text": ..., "metadata": ...} shape; any other
// valid JSON is indexed as its pretty-printed form.
func loadJSON(path, stem string, meta map[string]any) (store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	meta["type"] = "json"

	var structured struct {
		ID       string         `json:"id"`
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &structured); err == nil && structured.Text != "" {
		for k, v := range structured.Metadata {
			if _, taken := meta[k]; !taken {
				meta[k] = v
			}
		}
		id := structured.ID
		if id == "" {
			id = stem
		}
		return store.Document{ID: id, Text: structured.Text, Metadata: meta}, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return store.Document{}, fmt.Errorf("parse json %s: %w", path, err)
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return store.Document{}, fmt.Errorf("render json %s: %w", path, err)
	}
	return store.Document{ID: stem, Text: string(pretty), Metadata: meta}, nil
}

func extractPDF(path string) (string, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteString("\n\n")
		}
	}
	return buf.String(), numPages, nil
}
