package driven

import "context"

// RerankDocument is one input to the reranking service.
type RerankDocument struct {
	// Key identifies the candidate the score maps back to.
	Key string

	// Text is the candidate text, truncated by the caller to the
	// service's input budget.
	Text string
}

// RerankScore is one reranked relevance score.
type RerankScore struct {
	Key   string
	Score float64
}

// Reranker reorders candidates by relevance to the query text. The
// external call accepts at most 100 documents per invocation; the
// caller enforces the cap.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []RerankDocument, topN int) ([]RerankScore, error)
}
