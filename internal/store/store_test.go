package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarchijain1/custom-rag-engine/internal/chunker"
)

const testDims = 8

// stubEmbedder produces deterministic vectors from character counts so
// that similar texts land near each other without a real model.
type stubEmbedder struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (e *stubEmbedder) Model() string { return "stub-embed" }

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()
	if fail {
		return nil, assert.AnError
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, testDims)
		for j, r := range strings.ToLower(t) {
			vec[(j+int(r))%testDims] += 1
		}
		out[i] = vec
	}
	return out, nil
}

func openTestStore(t *testing.T, emb Embedder) *SQLiteStore {
	t.Helper()
	s, err := Open(Options{
		Path:       filepath.Join(t.TempDir(), "index.db"),
		Collection: "test_documents",
		Dimensions: testDims,
		ChunkSize:  40,
		Overlap:    10,
	}, emb)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsBadParams(t *testing.T) {
	_, err := Open(Options{
		Path:       filepath.Join(t.TempDir(), "index.db"),
		Collection: "c",
		Dimensions: testDims,
		ChunkSize:  10,
		Overlap:    10,
	}, &stubEmbedder{})
	assert.ErrorIs(t, err, chunker.ErrInvalidParams)
}

func TestAddDocumentRoundTrip(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	n, err := s.AddDocument(ctx, "d1", "The quick brown fox", map[string]any{"source": "test.txt"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	results, err := s.Search(ctx, "quick brown fox", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "quick brown fox")
	assert.Equal(t, "d1", results[0].Metadata["doc_id"])
	assert.Equal(t, "test.txt", results[0].Metadata["source"])
	assert.EqualValues(t, 0, results[0].Metadata["chunk_index"])
}

func TestAddDocumentEmptyTextIsSkip(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	n, err := s.AddDocument(context.Background(), "empty", "   \n  ", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchEmptyStore(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	results, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCapsAtStoredCount(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()
	_, err := s.AddDocument(ctx, "d1", "alpha beta gamma", nil)
	require.NoError(t, err)

	results, err := s.Search(ctx, "alpha", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchOrderedByDistance(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()
	batch := s.AddDocuments(ctx, []Document{
		{ID: "a", Text: "cats and dogs"},
		{ID: "b", Text: "quantum chromodynamics"},
		{ID: "c", Text: "dogs and cats"},
	})
	require.Zero(t, batch.Failed)

	results, err := s.Search(ctx, "cats and dogs", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestAddDocumentsPartialFailure(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	result := s.AddDocuments(ctx, []Document{
		{ID: "ok", Text: "hello there this is a perfectly fine document"},
		{ID: "bad", Text: ""},
	})
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"bad"}, result.FailedIDs)
	assert.Positive(t, result.TotalChunks)

	// The good document must remain searchable.
	results, err := s.Search(ctx, "hello there", 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "ok", results[0].Metadata["doc_id"])
}

func TestAddDocumentEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{fail: true}
	s := openTestStore(t, emb)

	_, err := s.AddDocument(context.Background(), "d1", "some text to embed", nil)
	assert.ErrorIs(t, err, ErrEmbedding)

	// A failed embed must not leave partial rows behind.
	count, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteDocument(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	_, err := s.AddDocument(ctx, "keep", "this document stays around", nil)
	require.NoError(t, err)
	_, err = s.AddDocument(ctx, "gone", "this document gets deleted", nil)
	require.NoError(t, err)

	deleted, err := s.DeleteDocument("gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteDocument("gone")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete finds nothing")

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UniqueDocuments)
}

func TestClearAll(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	_, err := s.AddDocument(ctx, "d1", "some content to clear out", nil)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)

	results, err := s.Search(ctx, "some content", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Store stays usable after the reset.
	n, err := s.AddDocument(ctx, "d2", "fresh content after clearing", nil)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestConcurrentSearchDuringClear(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	_, err := s.AddDocument(ctx, "d1", strings.Repeat("searchable content here ", 20), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Either pre-clear or post-clear results; never an error.
			_, err := s.Search(ctx, "searchable content", 3)
			assert.NoError(t, err)
		}()
	}
	require.NoError(t, s.ClearAll())
	wg.Wait()
}

func TestStats(t *testing.T) {
	s := openTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	_, err := s.AddDocument(ctx, "a", "first document body", nil)
	require.NoError(t, err)
	_, err = s.AddDocument(ctx, "b", "second document body", nil)
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UniqueDocuments)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, "test_documents", stats.Collection)
	assert.Equal(t, "stub-embed", stats.EmbeddingModel)
}
