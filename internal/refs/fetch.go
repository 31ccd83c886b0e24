package refs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/conneroisu/tagwriting/internal/validation"
)

// DefaultUserAgent is sent with every reference request.
const DefaultUserAgent = "tagwriting/1.0 (+https://github.com/conneroisu/tagwriting)"

// FetchResult contains the result of fetching a reference.
type FetchResult struct {
	Body        string
	ContentType string
	StatusCode  int
}

// OK reports whether the response had a 2xx status.
func (r *FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs the single, bounded HTTP GET behind `<url>` tags,
// Wikipedia summaries and citation titles.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxContentSize int64
}

// NewFetcher creates a new fetcher. A zero timeout means 10 seconds.
func NewFetcher(timeout time.Duration, maxContentSize int64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxContentSize <= 0 {
		maxContentSize = 5 << 20
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return validation.ValidateFetchURL(req.URL.String())
			},
		},
		userAgent:      DefaultUserAgent,
		maxContentSize: maxContentSize,
	}
}

// Fetch retrieves rawURL once. A non-2xx status is not an error: the result
// carries the status so callers can tell "answered badly" from "unreachable".
// The body of a successful response is decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := validation.ValidateFetchURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	result := &FetchResult{
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if !result.OK() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxContentSize))
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	result.Body = decode(body, result.ContentType)
	return result, nil
}

// Title fetches rawURL and returns its HTML <title>, or rawURL itself when
// the page has none or cannot be fetched.
func (f *Fetcher) Title(ctx context.Context, rawURL string) string {
	res, err := f.Fetch(ctx, rawURL)
	if err != nil || !res.OK() {
		return rawURL
	}
	if title := ExtractTitle(res.Body); title != "" {
		return title
	}
	return rawURL
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) string {
	r, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
