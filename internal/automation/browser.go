package automation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultPageTimeout  = 45 * time.Second
	readyPollInterval   = 250 * time.Millisecond
	documentReadyState  = "complete"
	renderedContentType = "text/html; charset=utf-8"
)

var (
	readOuterHTML = func(ctx context.Context, html *string) error {
		return chromedp.OuterHTML("html", html, chromedp.ByQuery).Do(ctx)
	}
	readReadyState = func(ctx context.Context, state *string) error {
		return chromedp.Evaluate(`document.readyState`, state).Do(ctx)
	}
)

// BrowserDoer satisfies the catalog's HTTPDoer by loading pages in Chrome
// and handing back the rendered DOM as a 200 response.
type BrowserDoer struct {
	runner  CDPRunner
	opts    AutomationOptions
	timeout time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewBrowserDoer creates a doer. The browser starts on the first request.
func NewBrowserDoer(runner CDPRunner, opts AutomationOptions) *BrowserDoer {
	if runner == nil {
		runner = DefaultCDPRunner{}
	}
	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	return &BrowserDoer{runner: runner, opts: opts, timeout: timeout}
}

func (b *BrowserDoer) session() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		allocCtx, cancelAlloc := b.runner.NewExecAllocator(context.Background(), BuildExecAllocatorOptions(b.opts)...)
		browserCtx, cancelCtx := b.runner.NewContext(allocCtx)
		b.browserCtx = browserCtx
		b.cancelBrowser = func() {
			cancelCtx()
			cancelAlloc()
		}
		slog.Debug("Started browser session", "headless", b.opts.Headless)
	}
	return b.browserCtx
}

// Do navigates to req.URL in a new tab and returns the page's outer HTML.
// Only GET is supported. Navigation failures surface as errors; the
// status code of the rendered page is not available and is always 200.
func (b *BrowserDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("browser transport supports only GET, got %s", req.Method)
	}

	tabCtx, cancelTab := b.runner.NewContext(b.session())
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(req.Context(), cancelTimeout)
	defer stop()

	url := req.URL.String()
	if err := b.runner.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(extraHeaders(req.Header)),
		chromedp.Navigate(url),
	); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := b.waitReady(tabCtx); err != nil {
		return nil, err
	}

	var html string
	if err := b.runner.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return readOuterHTML(ctx, &html)
	})); err != nil {
		return nil, fmt.Errorf("failed to read page at %s: %w", url, err)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{renderedContentType}},
		Body:          io.NopCloser(strings.NewReader(html)),
		ContentLength: int64(len(html)),
		Request:       req,
	}, nil
}

func (b *BrowserDoer) waitReady(ctx context.Context) error {
	_, err := PollWithTimeout(ctx, readyPollInterval, b.timeout, "document ready", func() (struct{}, bool, error) {
		var state string
		err := b.runner.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return readReadyState(ctx, &state)
		}))
		if err != nil {
			return struct{}{}, false, fmt.Errorf("failed to read document state: %w", err)
		}
		return struct{}{}, state == documentReadyState, nil
	})
	return err
}

// Close shuts the browser down.
func (b *BrowserDoer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.browserCtx = nil
		b.cancelBrowser = nil
	}
}

// extraHeaders forwards request headers the browser would not set itself.
func extraHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for _, name := range []string{"Accept", "Accept-Language"} {
		if v := h.Get(name); v != "" {
			headers[name] = v
		}
	}
	return headers
}
