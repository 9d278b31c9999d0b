package domain

import (
	"path/filepath"
	"strings"
)

// FileType tags the resolved content category of a source document.
// Resolution happens once at fetch time; the chunker and everything
// downstream is type-agnostic.
type FileType string

const (
	// FileTypeDocs is a Google Docs document, exported as plain text.
	FileTypeDocs FileType = "docs"

	// FileTypeSheets is a Google Sheets spreadsheet, exported as CSV.
	FileTypeSheets FileType = "sheets"

	// FileTypeSlides is a Google Slides presentation, exported as plain text.
	FileTypeSlides FileType = "slides"

	// FileTypePlaintext is a regular file downloaded as-is.
	FileTypePlaintext FileType = "plaintext"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// plaintextExtensions are the regular-file extensions indexed as plaintext.
var plaintextExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".html": true,
	".htm":  true,
	".xml":  true,
	".yaml": true,
	".yml":  true,
	".log":  true,
}

// ValidFileTypes lists the type tags accepted by refresh --file-types.
func ValidFileTypes() []FileType {
	return []FileType{FileTypeDocs, FileTypeSheets, FileTypeSlides, FileTypePlaintext}
}

// IsValidFileType reports whether s names a known file type tag.
func IsValidFileType(s string) bool {
	switch FileType(s) {
	case FileTypeDocs, FileTypeSheets, FileTypeSlides, FileTypePlaintext:
		return true
	}
	return false
}

// DetectFileType resolves a (name, MIME type) pair to a type tag.
// Returns empty string for folders and unsupported binary types.
func DetectFileType(name, mimeType string) FileType {
	switch mimeType {
	case MimeTypeGoogleDoc:
		return FileTypeDocs
	case MimeTypeGoogleSheet:
		return FileTypeSheets
	case MimeTypeGoogleSlides:
		return FileTypeSlides
	case MimeTypeFolder:
		return ""
	}

	if strings.HasPrefix(mimeType, "text/") {
		return FileTypePlaintext
	}
	if plaintextExtensions[strings.ToLower(filepath.Ext(name))] {
		return FileTypePlaintext
	}
	return ""
}
