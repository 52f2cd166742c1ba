package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleDocMime = "application/vnd.google-apps.document"

// DriveSource downloads knowledge-base files from a Google Drive folder.
type DriveSource struct {
	service *drive.Service
}

// NewDriveSource authenticates with Application Default Credentials.
func NewDriveSource(ctx context.Context) (*DriveSource, error) {
	client, err := google.DefaultClient(ctx, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return NewDriveSourceWithClient(ctx, client)
}

// NewDriveSourceWithClient builds a source on an already authorized client.
func NewDriveSourceWithClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*DriveSource, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveSource{service: srv}, nil
}

// Fetch copies every supported file of folderID into dir and returns the local
// paths. Google Docs are exported as HTML.
func (d *DriveSource) Fetch(ctx context.Context, folderID, dir string) ([]string, error) {
	var paths []string
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	pageToken := ""
	for {
		call := d.service.Files.List().Q(q).
			Fields("nextPageToken, files(id, name, mimeType)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return paths, fmt.Errorf("listing drive folder: %w", err)
		}
		for _, f := range list.Files {
			name := f.Name
			var resp *http.Response
			switch {
			case f.MimeType == googleDocMime:
				if !strings.HasSuffix(name, ".html") {
					name += ".html"
				}
				resp, err = d.service.Files.Export(f.Id, "text/html").Context(ctx).Download()
			case Supported(name):
				resp, err = d.service.Files.Get(f.Id).Context(ctx).Download()
			default:
				continue
			}
			if err != nil {
				return paths, fmt.Errorf("downloading %s: %w", f.Name, err)
			}
			path := filepath.Join(dir, filepath.Base(name))
			if err := saveBody(resp, path); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
		pageToken = list.NextPageToken
		if pageToken == "" {
			return paths, nil
		}
	}
}

func saveBody(resp *http.Response, path string) error {
	defer resp.Body.Close()
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
