package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// ListFilter narrows a content source listing.
type ListFilter struct {
	// FileTypes restricts the listing to the given type tags.
	// Empty means all supported types.
	FileTypes []domain.FileType

	// ModifiedAfter, when set, asks the source to return only documents
	// modified strictly after the given instant. Sources that cannot
	// filter server-side may return everything; the change detector
	// re-checks timestamps regardless.
	ModifiedAfter time.Time
}

// ListPage is one page of a paginated source listing.
type ListPage struct {
	// Documents are the page's document snapshots.
	Documents []domain.SourceDocument

	// NextPageToken continues the listing; empty means the last page.
	NextPageToken string
}

// ContentSource lists and fetches documents from the external content
// source. Implementations must report modified times with explicit
// timezone information.
type ContentSource interface {
	// List returns one page of documents matching the filter.
	List(ctx context.Context, filter ListFilter, pageToken string) (ListPage, error)

	// Fetch extracts the text content of a document, resolving Google
	// Workspace types into plain text or CSV. Returns
	// domain.ErrContentExtraction (wrapped) for unreadable documents.
	Fetch(ctx context.Context, doc domain.SourceDocument) (string, error)

	// Validate checks the source is reachable and credentials work.
	Validate(ctx context.Context) error
}
