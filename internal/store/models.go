package store

// Document is a named unit of source text submitted for indexing.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is a stored chunk matched by a similarity query.
// Distance is the backend's native metric (L2 for sqlite-vec), ascending
// meaning more similar. No relevance threshold is applied here; callers
// decide what counts as a match.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// BatchResult summarizes a multi-document add. Failures never abort the
// batch; they are reported here per document.
type BatchResult struct {
	Successful  int      `json:"successful"`
	Failed      int      `json:"failed"`
	TotalChunks int      `json:"total_chunks"`
	FailedIDs   []string `json:"failed_ids,omitempty"`
}

// Stats reports the current contents of the store.
type Stats struct {
	TotalChunks     int    `json:"total_chunks"`
	UniqueDocuments int    `json:"unique_documents"`
	Collection      string `json:"collection"`
	EmbeddingModel  string `json:"embedding_model"`
}
