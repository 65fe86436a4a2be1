// Package catalog talks to the Goodreads catalog: it searches for books,
// picks a match and extracts a book record from the canonical record page.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metrics"
	"github.com/lepinkainen/libris/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public catalog host.
	DefaultBaseURL = "https://www.goodreads.com"
	// DefaultUserAgent mimics a desktop browser; the catalog serves the
	// embedded page data only to browser-like clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	defaultConnectTimeout = 10 * time.Second
	defaultTotalTimeout   = 25 * time.Second
	defaultMaxRedirects   = 10
	defaultRatePerSecond  = 1.0
	defaultMemoSize       = 64
	defaultMemoTTL        = 10 * time.Minute
	maxBodyBytes          = 16 << 20
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Goodreads catalog client. It is safe for concurrent use.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	metrics     *metrics.Metrics
	searchMemo  *expirable.LRU[string, []Candidate]
}

// NewClient creates a catalog client with the default transport settings.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		httpClient:  NewHTTPClient(defaultConnectTimeout, defaultTotalTimeout, defaultMaxRedirects),
		rateLimiter: ratelimit.New("catalog", defaultRatePerSecond),
		searchMemo:  expirable.NewLRU[string, []Candidate](defaultMemoSize, nil, defaultMemoTTL),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// NewHTTPClient returns an http.Client with bounded connect and total
// timeouts that follows at most maxRedirects redirects.
func NewHTTPClient(connectTimeout, totalTimeout time.Duration, maxRedirects int) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   totalTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL points the client at another catalog host.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		if ua != "" {
			client.userAgent = ua
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client. Passing nil
// disables limiting.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = limiter
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(client *Client) {
		client.metrics = m
	}
}

// WithoutSearchMemo disables the in-process memo of search result pages.
func WithoutSearchMemo() Option {
	return func(client *Client) {
		client.searchMemo = nil
	}
}

// BaseURL returns the catalog host the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) bookURL(id string) string {
	return c.baseURL + "/book/show/" + id
}

// get fetches url and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	resp, err := c.do(ctx, endpoint, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncError("fetch")
		return nil, liberrors.NewFetchStatusError(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.IncError("fetch")
		return nil, liberrors.NewFetchError(url, err)
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, url string) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		slog.Debug("Rate limit wait aborted", "limiter", c.rateLimiter.Name(), "url", url)
		return nil, liberrors.NewFetchError(url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, liberrors.NewFetchError(url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", defaultAcceptLanguage)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveRequest(endpoint, time.Since(start))
	if err != nil {
		c.metrics.IncError("fetch")
		return nil, liberrors.NewFetchError(url, err)
	}

	slog.Debug("Catalog response", "endpoint", endpoint, "url", url, "status", resp.StatusCode)
	return resp, nil
}

// Exists reports whether the catalog serves a record page for id. Any
// failure counts as "does not exist" and is only logged.
func (c *Client) Exists(ctx context.Context, id string) bool {
	url := c.bookURL(id)
	resp, err := c.do(ctx, "exists", url)
	if err != nil {
		slog.Warn("Failed to fetch book page", "id", id, "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
