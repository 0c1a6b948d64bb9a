// Package fetch downloads evidence images referenced by URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes caps image downloads.
const DefaultMaxBytes = 20 << 20

// ErrNotImage is returned when the downloaded bytes are not an image.
var ErrNotImage = errors.New("fetched content is not an image")

// Image is a downloaded image and its sniffed MIME type.
type Image struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Fetcher retrieves image bytes for a URL.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) (*Image, error)
}

// HTTPFetcher fetches images over HTTP(S).
type HTTPFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithMaxBytes sets the download cap.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// NewHTTPFetcher creates a fetcher with a 30s timeout.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBytes downloads url and sniffs its content type. The body is read in
// full before the type is decided.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) (*Image, error) {
	data, header, err := Download(ctx, f.httpClient, url, f.maxBytes)
	if err != nil {
		return nil, err
	}

	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "image/") {
		// Fall back to the server's claim for formats the sniffer misses.
		if ct := header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
			mimeType = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
		} else {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotImage, url, mimeType)
		}
	}
	return &Image{URL: url, Data: data, MIMEType: mimeType}, nil
}

// Download GETs url and returns the drained body. Responses larger than
// maxBytes and non-200 statuses are errors.
func Download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, http.Header, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil, errors.New("url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("failed to download %s: unexpected status code: %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, nil, fmt.Errorf("failed to download %s: body exceeds %d bytes", url, maxBytes)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("failed to download %s: empty body", url)
	}
	return data, resp.Header, nil
}
