package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultTimeout bounds a single file transfer.
const DefaultTimeout = 30 * time.Minute

// HTTP reads releases from a mirror laid out as <base>/<version>/<file>.
type HTTP struct {
	base   *url.URL
	client *http.Client
}

// NewHTTP creates an HTTP mirror source. A nil client gets DefaultTimeout.
func NewHTTP(baseURL string, client *http.Client) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTP{base: u, client: client}, nil
}

// URL returns the address of a release file.
func (h *HTTP) URL(version, relPath string) string {
	u := *h.base
	u.Path = path.Join(u.Path, version, relPath)
	return u.String()
}

// Open implements Source.
func (h *HTTP) Open(ctx context.Context, version, relPath string) (io.ReadCloser, error) {
	target := h.URL(version, relPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", target, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: HTTP error: %s", target, resp.Status)
	}
	return Decompress(resp.Body)
}
