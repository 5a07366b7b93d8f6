// Package drive adapts the Google Drive API to the pipeline's read-only
// StorageBrowser interface.
package drive

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Browser lists Drive folder children. It satisfies
// pipeline.StorageBrowser and never mutates the hierarchy.
type Browser struct {
	srv *drive.Service
}

// NewBrowser builds a Browser from an authenticated HTTP client (the same
// OAuth client the Gmail adapter uses; the Drive read-only scope is part
// of the consent flow).
func NewBrowser(ctx context.Context, httpClient *http.Client) (*Browser, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Browser{srv: srv}, nil
}

// ListChildren returns the direct, non-trashed children of a folder.
// folderID "" means the Drive root.
func (b *Browser) ListChildren(ctx context.Context, folderID string) ([]pipeline.Entry, error) {
	if folderID == "" {
		folderID = "root"
	}
	var entries []pipeline.Entry
	pageToken := ""
	for {
		call := b.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, webViewLink)").
			PageSize(200).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", folderID, err)
		}
		for _, f := range res.Files {
			entries = append(entries, pipeline.Entry{
				ID:       f.Id,
				Name:     f.Name,
				Link:     f.WebViewLink,
				IsFolder: f.MimeType == folderMimeType,
			})
		}
		if res.NextPageToken == "" {
			return entries, nil
		}
		pageToken = res.NextPageToken
	}
}
