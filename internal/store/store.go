package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aarchijain1/custom-rag-engine/internal/chunker"
)

func init() {
	sqlite_vec.Auto()
}

// Sentinel errors for the store's two collaborator failure classes.
// Neither is retried at this layer; retry policy belongs to the caller.
var (
	ErrEmbedding = errors.New("embedding failure")
	ErrStorage   = errors.New("storage failure")
)

// Embedder is the external embedding capability the store depends on.
// All vectors within one deployment share the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Store holds (chunk, embedding, metadata) triples for one logical
// collection and answers nearest-neighbour queries against them.
type Store interface {
	// AddDocument chunks and embeds text, persisting all chunks in one
	// transaction. Returns the chunk count; 0 with no error when text is
	// empty after trimming.
	AddDocument(ctx context.Context, id, text string, metadata map[string]any) (int, error)
	// AddDocuments applies AddDocument to each entry independently and
	// reports partial success. It never returns an error.
	AddDocuments(ctx context.Context, docs []Document) BatchResult
	// Search returns up to min(k, stored) chunks ordered by ascending
	// distance. An empty store yields an empty result, not an error.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
	// DeleteDocument removes every chunk owned by the document. Returns
	// false when no chunks existed; that is not an error.
	DeleteDocument(id string) (bool, error)
	// ClearAll drops and recreates the backing tables. Drop-and-recreate
	// is the only supported reset; in-place bulk delete can leave a
	// partially-written collection behind under interruption.
	ClearAll() error
	// Stats reports chunk and document counts plus collection identity.
	Stats() (Stats, error)
	// Count returns the number of chunks currently stored.
	Count() (int, error)
	// Close closes the underlying database.
	Close() error
}

// Options configures a SQLiteStore.
type Options struct {
	Path       string
	Collection string
	Dimensions int
	ChunkSize  int
	Overlap    int
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
//
// Reads run concurrently under a shared lock; AddDocument, DeleteDocument
// and ClearAll serialize under the write lock because ClearAll's
// drop-and-recreate must never interleave with other statements.
type SQLiteStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	emb        Embedder
	collection string
	dimensions int
	chunkSize  int
	overlap    int
}

// Open creates or opens the collection database at opts.Path and
// initializes the schema. Invalid chunking parameters are rejected here,
// before any work is done.
func Open(opts Options, emb Embedder) (*SQLiteStore, error) {
	if opts.Overlap <= 0 || opts.Overlap >= opts.ChunkSize {
		return nil, chunker.ErrInvalidParams
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", opts.Dimensions)
	}

	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := initSchema(db, opts.Dimensions); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &SQLiteStore{
		db:         db,
		emb:        emb,
		collection: opts.Collection,
		dimensions: opts.Dimensions,
		chunkSize:  opts.ChunkSize,
		overlap:    opts.Overlap,
	}
	if err := s.setMeta("collection", opts.Collection); err != nil {
		db.Close()
		return nil, fmt.Errorf("write collection meta: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) AddDocument(ctx context.Context, id, text string, metadata map[string]any) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	chunks, err := chunker.Split(text, s.chunkSize, s.overlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := s.emb.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbedding, len(chunks), len(embeddings))
	}
	for i, e := range embeddings {
		if len(e) != s.dimensions {
			return 0, fmt.Errorf("%w: embedding %d has %d dimensions, store expects %d",
				ErrEmbedding, i, len(e), s.dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	chunkStmt, err := tx.Prepare(
		"INSERT INTO chunks (chunk_id, doc_id, chunk_index, content, metadata) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer vecStmt.Close()

	for i, content := range chunks {
		meta := make(map[string]any, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["doc_id"] = id
		meta["chunk_index"] = i
		meta["total_chunks"] = len(chunks)

		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("%w: marshal metadata: %v", ErrStorage, err)
		}

		res, err := chunkStmt.Exec(fmt.Sprintf("%s_%d", id, i), id, i, content, string(metaJSON))
		if err != nil {
			return 0, fmt.Errorf("%w: insert chunk %d: %v", ErrStorage, i, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return 0, fmt.Errorf("%w: serialize embedding %d: %v", ErrStorage, i, err)
		}
		if _, err := vecStmt.Exec(rowID, blob); err != nil {
			return 0, fmt.Errorf("%w: insert embedding %d: %v", ErrStorage, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return len(chunks), nil
}

func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []Document) BatchResult {
	var result BatchResult
	for _, doc := range docs {
		n, err := s.AddDocument(ctx, doc.ID, doc.Text, doc.Metadata)
		if err != nil || n == 0 {
			// Empty text produces zero chunks; a document the caller asked
			// us to index but that contributed nothing counts as failed.
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, doc.ID)
			continue
		}
		result.Successful++
		result.TotalChunks += n
	}
	return result
}

func (s *SQLiteStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count, err := s.countLocked()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	embeddings, err := s.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) != s.dimensions {
		return nil, fmt.Errorf("%w: query embedding has wrong shape", ErrEmbedding)
	}
	blob, err := sqlite_vec.SerializeFloat32(embeddings[0])
	if err != nil {
		return nil, fmt.Errorf("%w: serialize query embedding: %v", ErrStorage, err)
	}

	rows, err := s.db.Query(`
		SELECT c.chunk_id, c.content, c.metadata, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ?
		ORDER BY v.distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.Content, &metaJSON, &r.Distance); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			r.Metadata = map[string]any{}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return results, nil
}

func (s *SQLiteStore) DeleteDocument(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM chunks WHERE doc_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	var rowIDs []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return false, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		rowIDs = append(rowIDs, rid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if len(rowIDs) == 0 {
		return false, nil
	}

	for _, rid := range rowIDs {
		if _, err := tx.Exec("DELETE FROM vec_chunks WHERE chunk_id = ?", rid); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM chunks WHERE doc_id = ?", id); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return true, nil
}

func (s *SQLiteStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DROP TABLE IF EXISTS vec_chunks"); err != nil {
		return fmt.Errorf("%w: drop vec_chunks: %v", ErrStorage, err)
	}
	if _, err := s.db.Exec("DROP TABLE IF EXISTS chunks"); err != nil {
		return fmt.Errorf("%w: drop chunks: %v", ErrStorage, err)
	}
	if err := initSchema(s.db, s.dimensions); err != nil {
		return fmt.Errorf("%w: recreate schema: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Collection:     s.collection,
		EmbeddingModel: s.emb.Model(),
	}
	var err error
	stats.TotalChunks, err = s.countLocked()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT doc_id) FROM chunks").Scan(&stats.UniqueDocuments); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return stats, nil
}

func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.countLocked()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return n, nil
}

func (s *SQLiteStore) countLocked() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) setMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
