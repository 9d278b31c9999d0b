// Package google provides shared plumbing for Google API services.
package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ReadOnlyScope is the Drive scope required for listing and exporting.
const ReadOnlyScope = drive.DriveReadonlyScope

// NewDriveService creates a Google Drive API service using the provided
// TokenSource.
func NewDriveService(ctx context.Context, ts oauth2.TokenSource) (*drive.Service, error) {
	return drive.NewService(ctx, option.WithTokenSource(ts))
}

// StaticTokenSource wraps a pre-acquired access token. Credential
// acquisition itself happens outside this tool.
func StaticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}
