// Package dfs talks to an Azure Data Lake Storage Gen2 account through
// its DFS endpoint: directory create/delete/rename and POSIX access
// control, including the store's recursive ACL update operation.
package dfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/adlsctl/adlsctl/internal/rest"
)

// Client wraps the shared transport with DFS path operations. One
// client addresses one storage account endpoint.
type Client struct {
	rest   *rest.Client
	logger *slog.Logger
}

// EndpointURL returns the DFS endpoint for a storage account name.
func EndpointURL(accountName string) string {
	return fmt.Sprintf("https://%s.dfs.core.windows.net", accountName)
}

// NewClient creates a DFS client for the given endpoint. Tests point
// endpoint at an httptest server.
func NewClient(endpoint string, httpClient *http.Client, token rest.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		rest:   rest.NewClient(endpoint, httpClient, token, logger),
		logger: logger,
	}
}

// encodePathSegments URL-encodes each segment of a slash-separated
// path so characters like #, ?, %, and spaces survive interpolation
// into request URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// resourcePath builds "/{filesystem}/{path}". An empty path addresses
// the filesystem root.
func resourcePath(filesystem, path string) string {
	if path == "" {
		return "/" + url.PathEscape(filesystem) + "/"
	}

	return "/" + url.PathEscape(filesystem) + "/" + encodePathSegments(path)
}

// CreateDirectory creates a directory, materializing intermediate
// segments implicitly. With failIfExists the request carries
// If-None-Match: * and an existing path surfaces as
// rest.ErrPreconditionFailed; without it the call is idempotent.
func (c *Client) CreateDirectory(ctx context.Context, filesystem, path string, failIfExists bool) error {
	c.logger.Info("creating directory",
		slog.String("filesystem", filesystem),
		slog.String("path", path),
		slog.Bool("fail_if_exists", failIfExists),
	)

	req := rest.Request{
		Method: http.MethodPut,
		Path:   resourcePath(filesystem, path) + "?resource=directory",
	}

	if failIfExists {
		req.Headers = map[string]string{"If-None-Match": "*"}
	}

	resp, err := c.rest.Do(ctx, req)
	if err != nil {
		return err
	}

	return drainBody(resp)
}

// DeleteDirectory removes a directory and everything under it.
// A missing path surfaces as rest.ErrNotFound.
func (c *Client) DeleteDirectory(ctx context.Context, filesystem, path string) error {
	c.logger.Info("deleting directory",
		slog.String("filesystem", filesystem),
		slog.String("path", path),
	)

	resp, err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodDelete,
		Path:   resourcePath(filesystem, path) + "?recursive=true",
	})
	if err != nil {
		return err
	}

	return drainBody(resp)
}

// Rename moves a directory to a new location, overwriting any
// destination. Source and destination may live in different
// filesystems of the same account.
func (c *Client) Rename(ctx context.Context, srcFilesystem, srcPath, destFilesystem, destPath string) error {
	c.logger.Info("renaming directory",
		slog.String("source_filesystem", srcFilesystem),
		slog.String("source_path", srcPath),
		slog.String("dest_filesystem", destFilesystem),
		slog.String("dest_path", destPath),
	)

	resp, err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodPut,
		Path:   resourcePath(destFilesystem, destPath) + "?mode=legacy",
		Headers: map[string]string{
			"x-ms-rename-source": resourcePath(srcFilesystem, srcPath),
		},
	})
	if err != nil {
		return err
	}

	return drainBody(resp)
}

// Exists reports whether a path is present. 404 maps to (false, nil);
// every other failure propagates.
func (c *Client) Exists(ctx context.Context, filesystem, path string) (bool, error) {
	resp, err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodHead,
		Path:   resourcePath(filesystem, path) + "?action=getStatus",
	})
	if err != nil {
		if errors.Is(err, rest.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, drainBody(resp)
}

// drainBody discards and closes a response body so the underlying
// connection can be reused.
func drainBody(resp *http.Response) error {
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("dfs: draining response body: %w", err)
	}

	return nil
}
