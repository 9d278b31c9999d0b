package domain

// SearchOptions configure a hybrid query.
type SearchOptions struct {
	// Limit is the maximum number of results (default 10).
	Limit int

	// FileTypes restricts results to the given type tags via store-level
	// metadata filters.
	FileTypes []FileType
}

// Candidate is an ephemeral query-time merge record. A candidate carries
// the scores from whichever stores produced it; absence of a side is
// tracked explicitly rather than as a zero score.
type Candidate struct {
	// Key is the vector key.
	Key string

	// DocumentID and ChunkIndex are parsed from Key / metadata.
	DocumentID string
	ChunkIndex int

	// Text is the chunk text returned by the store.
	Text string

	// DenseScore is the semantic similarity score, valid iff HasDense.
	DenseScore float64
	HasDense   bool

	// SparseScore is the keyword dot-product score, valid iff HasSparse.
	// Empirically bounded roughly 0-10.
	SparseScore float64
	HasSparse   bool

	// Metadata is the store-attached vector metadata.
	Metadata VectorMetadata
}

// Combined computes the pre-rerank fused score: normalise the sparse
// score to 0-1, then weight dense twice as heavily. A candidate seen by
// only one store scores on that side alone; the absent side is never
// substituted with zero.
func (c Candidate) Combined() float64 {
	if !c.HasSparse || c.SparseScore <= 0 {
		return c.DenseScore
	}
	normalised := c.SparseScore / 10.0
	if normalised > 1.0 {
		normalised = 1.0
	}
	if !c.HasDense {
		return normalised
	}
	return (2.0*c.DenseScore + normalised) / 3.0
}

// VectorMetadata is attached to every vector in both stores. All fields
// stay small enough that the per-vector payload remains under the
// store's metadata byte ceiling; Name is truncated rather than failing
// the write.
type VectorMetadata struct {
	FileID       string   `json:"file_id"`
	FileName     string   `json:"file_name"`
	FileType     FileType `json:"file_type"`
	ChunkIndex   int      `json:"chunk_index"`
	ModifiedTime string   `json:"modified_time"`
	WebViewLink  string   `json:"web_view_link"`
}

// SearchResult is one entry of the final relevance-ordered list. The
// per-store sub-scores are carried for transparency alongside the
// reranked score that orders the list.
type SearchResult struct {
	// Key is the representative chunk's vector key.
	Key string `json:"id"`

	// Score is the ordering score: the reranked relevance when reranking
	// succeeded, the combined score otherwise.
	Score float64 `json:"score"`

	// Reranked reports whether Score came from the reranking service.
	Reranked bool `json:"reranked"`

	// DenseScore and SparseScore are the originating store scores.
	DenseScore  float64 `json:"dense_score"`
	SparseScore float64 `json:"sparse_score"`

	// Metadata identifies the source document.
	Metadata VectorMetadata `json:"metadata"`
}
