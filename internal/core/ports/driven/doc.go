// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ContentSource: lists and fetches documents from the content source
//   - VectorStore: one instance per ranked-retrieval index (dense, sparse)
//   - SyncStateStore: watermark and counter persistence between runs
//
// # Optional Interfaces
//
//   - Reranker: final relevance pass. When the rerank call fails after
//     retries, search degrades to the pre-rerank ordering.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
