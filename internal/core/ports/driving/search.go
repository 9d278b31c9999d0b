package driving

import (
	"context"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// SearchService provides hybrid search to external actors.
type SearchService interface {
	// Search performs a hybrid dense+sparse query, deduplicates to one
	// representative chunk per document, reranks, and returns a single
	// relevance-ordered list.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
