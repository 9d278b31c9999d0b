package driven

import (
	"context"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// VectorRecord is one upsert payload: the store's integrated embedding
// model turns Text into the vector, so the caller ships text, never
// vector maths.
type VectorRecord struct {
	// Key is the vector key (document_id + "#" + chunk_index).
	Key string

	// Text is the chunk text the store embeds and returns on query.
	Text string

	// Metadata is attached to the vector and returned with query hits.
	Metadata domain.VectorMetadata
}

// QueryHit is one scored match from a store query.
type QueryHit struct {
	// Key is the matched vector key.
	Key string

	// Score is the store's relevance score. Dense stores report cosine
	// similarity in 0-1; sparse stores report a dot product roughly 0-10.
	Score float64

	// Text is the stored chunk text.
	Text string

	// Metadata is the vector metadata attached at upsert time.
	Metadata domain.VectorMetadata
}

// QueryFilter restricts a store query via metadata.
type QueryFilter struct {
	// FileTypes restricts hits to the given type tags.
	FileTypes []domain.FileType
}

// IndexStats summarises one store.
type IndexStats struct {
	// Name is the index name.
	Name string

	// VectorCount is the total number of vectors in the index.
	VectorCount int
}

// VectorStore is one ranked-retrieval index. Two instances exist: the
// dense (semantic) store and the sparse (keyword) store. A chunk present
// at all must exist under the same key in both; the indexing pipeline
// writes and deletes them as a tight per-document unit.
type VectorStore interface {
	// Upsert writes a batch of records. The batch size is bounded by the
	// caller to the store's per-call vector limit.
	Upsert(ctx context.Context, records []VectorRecord) error

	// DeleteKeys removes the given vector keys.
	DeleteKeys(ctx context.Context, keys []string) error

	// DeleteDocument removes every vector whose document id matches,
	// i.e. all keys under domain.KeyPrefix(documentID).
	DeleteDocument(ctx context.Context, documentID string) error

	// Query returns the topK best matches for the query text, applying
	// the metadata filter at the store level.
	Query(ctx context.Context, text string, topK int, filter QueryFilter) ([]QueryHit, error)

	// ListDocumentIDs returns the distinct document ids currently present
	// in the index, excluding the reserved metadata record.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (IndexStats, error)
}
