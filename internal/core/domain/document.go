package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceDocument is a snapshot of a document as reported by the content
// source. The source owns and mutates it; the engine only reads snapshots.
type SourceDocument struct {
	// ID is the source's stable, globally unique identifier.
	ID string

	// Name is the human-readable display name.
	Name string

	// FileType is the resolved type tag (docs, sheets, slides, plaintext).
	FileType FileType

	// MIMEType is the source-reported MIME type.
	MIMEType string

	// ModifiedTime is the last modification time, always timezone-aware.
	ModifiedTime time.Time

	// WebViewLink is a resolvable link back to the source document.
	WebViewLink string

	// Size is the reported content size in bytes, if known.
	Size int64
}

// Chunk is a token-bounded segment of a document's extracted text.
// For a fixed content snapshot, chunking is deterministic: the same text
// always yields the same ordered chunk sequence.
type Chunk struct {
	// DocumentID links to the parent SourceDocument.
	DocumentID string

	// Index is the ordinal position within the document, dense and 0-based.
	// Indices are stable only for a given content snapshot; re-chunking a
	// modified document replaces the whole sequence.
	Index int

	// Text is the chunk content.
	Text string

	// TokenCount is the estimated token count of Text.
	TokenCount int
}

// Key returns the chunk's vector key.
func (c Chunk) Key() string {
	return VectorKey(c.DocumentID, c.Index)
}

// VectorKey maps (document id, chunk index) to the key used as the
// primary identifier in both vector stores.
func VectorKey(documentID string, index int) string {
	return documentID + "#" + strconv.Itoa(index)
}

// KeyPrefix returns the prefix shared by all of a document's vector keys.
// Deleting by this prefix removes every chunk of the document.
func KeyPrefix(documentID string) string {
	return documentID + "#"
}

// ParseVectorKey splits a vector key into document id and chunk index.
// The document id may itself contain '#', so the split is on the last one.
func ParseVectorKey(key string) (string, int, error) {
	i := strings.LastIndex(key, "#")
	if i < 0 {
		return "", 0, fmt.Errorf("%w: vector key %q has no separator", ErrInvalidInput, key)
	}
	index, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: vector key %q has non-numeric index", ErrInvalidInput, key)
	}
	return key[:i], index, nil
}

// MetadataKey is the reserved vector key that stores index configuration
// and refresh bookkeeping inside both stores. It is excluded from
// document-id listings and from query results.
const MetadataKey = "__index_metadata__"
