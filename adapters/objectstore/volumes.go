// Package objectstore opens image objects by logical path.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qcgallery/internal/conn"
	"qcgallery/internal/credentials"
	"qcgallery/internal/errors"
	"qcgallery/ports"
)

// ClientSource yields an authenticated HTTP client. *conn.Connection[*http.Client]
// is the production implementation.
type ClientSource interface {
	EnsureValid(ctx context.Context) (*http.Client, error)
}

// VolumesStore reads objects through the workspace Files API:
// GET {host}/api/2.0/fs/files{path}
type VolumesStore struct {
	host    string
	clients ClientSource
}

var _ ports.ObjectStore = (*VolumesStore)(nil)

// NewVolumesStore creates a Files API object store rooted at host
func NewVolumesStore(host string, clients ClientSource) *VolumesStore {
	return &VolumesStore{host: strings.TrimSuffix(host, "/"), clients: clients}
}

// NewVolumesConnection returns a credentialed connection whose handle is an
// HTTP client carrying the current bearer token.
func NewVolumesConnection(issuer credentials.Issuer, timeout time.Duration, opts conn.Options) *conn.Connection[*http.Client] {
	acquire := func(ctx context.Context) (*http.Client, error) {
		tok, err := issuer.Token(ctx)
		if err != nil {
			return nil, err
		}
		return credentials.BearerClient(context.Background(), tok, timeout), nil
	}
	release := func(c *http.Client) error {
		c.CloseIdleConnections()
		return nil
	}
	return conn.New(acquire, release, opts)
}

// Open issues the download request. The caller closes the returned body.
func (s *VolumesStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	client, err := s.clients.EnsureValid(ctx)
	if err != nil {
		// AuthFailure and Unreachable come back unchanged
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fileURL(path), http.NoBody)
	if err != nil {
		return nil, errors.Unavailable("build object request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Unavailable("object store request", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, errors.NotFound("object " + path)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		drain(resp.Body)
		return nil, errors.Unavailable(fmt.Sprintf("object store returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}
}

func (s *VolumesStore) fileURL(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.host + "/api/2.0/fs/files/" + strings.Join(segments, "/")
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
