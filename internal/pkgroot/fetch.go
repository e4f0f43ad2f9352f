package pkgroot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/skyhangar/hangar/internal/branding"
)

// DefaultMaxMetadataSize bounds catalog documents read into memory.
const DefaultMaxMetadataSize = 16 << 20

// Fetcher retrieves catalog metadata documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Downloader streams package archives.
type Downloader interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPFetcher fetches http, https and file URLs.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxSize   int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxMetadataSize overrides DefaultMaxMetadataSize.
func WithMaxMetadataSize(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxSize = n
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    http.DefaultClient,
		userAgent: branding.CLIName() + "-catalog",
		maxSize:   DefaultMaxMetadataSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open returns a reader for the resource at rawURL.
func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}

	if strings.EqualFold(u.Scheme, "file") {
		fh, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", u.Path, err)
		}
		return fh, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// Fetch reads the whole document at rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rc, err := f.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", rawURL, f.maxSize)
	}
	return data, nil
}

// parseSource validates a catalog URL and returns its canonical form and
// the key used to detect duplicate sources.
func parseSource(rawURL string) (canonical, key string, err error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", "", fmt.Errorf("%w: missing host", ErrInvalidURL)
		}
		u.Host = strings.ToLower(u.Host)
	case "file":
		if u.Path == "" {
			return "", "", fmt.Errorf("%w: missing path", ErrInvalidURL)
		}
	default:
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	u.Fragment = ""
	u.RawFragment = ""

	canonical = u.String()
	key = u.Scheme + "://" + u.Host + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return canonical, key, nil
}
