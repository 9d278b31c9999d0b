// Package drive adapts Google Drive to the content source port: listing
// with file-type filters, and export/download of file content resolved
// to plain text at fetch time.
package drive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/drivesearch-cli/internal/connectors/google"
	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.ContentSource = (*Source)(nil)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxContentSize is the maximum size for fetched content (5MB).
const MaxContentSize = 5 * 1024 * 1024

// DefaultPageSize is the Drive listing page size.
const DefaultPageSize = 100

// listFields restricts the listing response to what the engine needs.
const listFields = "nextPageToken, files(id, name, mimeType, modifiedTime, webViewLink, size, trashed)"

// Source is a Google Drive content source.
type Source struct {
	svc      *drive.Service
	pageSize int64
}

// Option configures the source.
type Option func(*Source)

// WithPageSize sets the listing page size.
func WithPageSize(size int64) Option {
	return func(s *Source) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewSource creates a Drive content source over an authenticated service.
func NewSource(svc *drive.Service, opts ...Option) *Source {
	s := &Source{svc: svc, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of source documents matching the filter.
// Folders, trashed files and unsupported binary types are excluded.
func (s *Source) List(ctx context.Context, filter driven.ListFilter, pageToken string) (driven.ListPage, error) {
	call := s.svc.Files.List().
		Q(buildQuery(filter)).
		PageSize(s.pageSize).
		Fields(listFields).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return driven.ListPage{}, fmt.Errorf("drive list: %w", err)
	}

	docs := make([]domain.SourceDocument, 0, len(res.Files))
	for _, f := range res.Files {
		doc, ok := fileToDocument(f)
		if !ok {
			continue
		}
		if len(filter.FileTypes) > 0 && !containsType(filter.FileTypes, doc.FileType) {
			continue
		}
		docs = append(docs, doc)
	}

	return driven.ListPage{Documents: docs, NextPageToken: res.NextPageToken}, nil
}

// Fetch resolves a document's content to plain text. Workspace files
// are exported; regular files are downloaded as-is; Sheets exports are
// flattened from CSV. Missing or inaccessible documents surface as a
// content extraction error so the run skips them.
func (s *Source) Fetch(ctx context.Context, doc domain.SourceDocument) (string, error) {
	var (
		content string
		err     error
	)

	switch doc.FileType {
	case domain.FileTypeDocs, domain.FileTypeSlides:
		content, err = s.export(ctx, doc.ID, ExportMimeText)
	case domain.FileTypeSheets:
		content, err = s.export(ctx, doc.ID, ExportMimeCSV)
		if err == nil {
			content = FlattenCSV(content)
		}
	case domain.FileTypePlaintext:
		content, err = s.download(ctx, doc.ID)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q for %s",
			domain.ErrContentExtraction, doc.FileType, doc.ID)
	}

	if err != nil {
		if google.IsNotFound(err) || google.IsForbidden(err) {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrContentExtraction, doc.ID, err)
		}
		return "", err
	}
	return content, nil
}

// Validate confirms the credentials can reach Drive.
func (s *Source) Validate(ctx context.Context) error {
	_, err := s.svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		if google.IsUnauthorized(err) {
			return fmt.Errorf("drive credentials rejected: %w", domain.ErrPermanent)
		}
		return fmt.Errorf("drive validate: %w", err)
	}
	return nil
}

func (s *Source) export(ctx context.Context, fileID, exportMime string) (string, error) {
	resp, err := s.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("export file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize))
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return string(data), nil
}

func (s *Source) download(ctx context.Context, fileID string) (string, error) {
	resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize))
	if err != nil {
		return "", fmt.Errorf("read file content: %w", err)
	}
	return string(data), nil
}

// buildQuery assembles the Drive q expression for the filter.
func buildQuery(filter driven.ListFilter) string {
	clauses := []string{"trashed = false"}

	if len(filter.FileTypes) > 0 {
		var mimes []string
		for _, ft := range filter.FileTypes {
			switch ft {
			case domain.FileTypeDocs:
				mimes = append(mimes, fmt.Sprintf("mimeType = '%s'", domain.MimeTypeGoogleDoc))
			case domain.FileTypeSheets:
				mimes = append(mimes, fmt.Sprintf("mimeType = '%s'", domain.MimeTypeGoogleSheet))
			case domain.FileTypeSlides:
				mimes = append(mimes, fmt.Sprintf("mimeType = '%s'", domain.MimeTypeGoogleSlides))
			case domain.FileTypePlaintext:
				mimes = append(mimes, "mimeType contains 'text/'")
			}
		}
		if len(mimes) > 0 {
			clauses = append(clauses, "("+strings.Join(mimes, " or ")+")")
		}
	} else {
		clauses = append(clauses, fmt.Sprintf("mimeType != '%s'", domain.MimeTypeFolder))
	}

	if !filter.ModifiedAfter.IsZero() {
		clauses = append(clauses, fmt.Sprintf("modifiedTime > '%s'",
			filter.ModifiedAfter.UTC().Format(time.RFC3339)))
	}

	return strings.Join(clauses, " and ")
}

// fileToDocument converts a Drive file to a source document. Returns
// false for folders, trashed files and unsupported types.
func fileToDocument(f *drive.File) (domain.SourceDocument, bool) {
	if f.Trashed || f.MimeType == domain.MimeTypeFolder {
		return domain.SourceDocument{}, false
	}

	fileType := domain.DetectFileType(f.Name, f.MimeType)
	if fileType == "" {
		return domain.SourceDocument{}, false
	}

	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		return domain.SourceDocument{}, false
	}

	return domain.SourceDocument{
		ID:           f.Id,
		Name:         f.Name,
		FileType:     fileType,
		MIMEType:     f.MimeType,
		ModifiedTime: modified,
		WebViewLink:  f.WebViewLink,
		Size:         f.Size,
	}, true
}

// FlattenCSV reduces a Sheets CSV export to searchable text: empty rows
// and cells are dropped, remaining cells are joined per row.
func FlattenCSV(content string) string {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	var rows []string
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		var cells []string
		for _, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, ", "))
		}
	}
	return strings.Join(rows, "\n")
}

func containsType(types []domain.FileType, ft domain.FileType) bool {
	for _, t := range types {
		if t == ft {
			return true
		}
	}
	return false
}
