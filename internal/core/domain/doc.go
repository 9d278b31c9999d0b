// Package domain defines the core business entities for drivesearch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - SourceDocument: a snapshot of a document from the content source
//   - Chunk: a token-bounded searchable unit within a document
//   - ChangeSet: the new/modified/deleted classification for a run
//   - Candidate / SearchResult: query-time merge and output records
//   - SyncState: the caller-persisted watermark and counters
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse. The only dependency beyond the standard
// library is the googleapi error type, used by the error taxonomy to
// classify remote failures as transient or permanent.
package domain
