// Package cmdutil builds the shared services every command needs from the
// current configuration.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/libris/internal/automation"
	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/metrics"
	"github.com/lepinkainen/libris/internal/notify"
	"github.com/lepinkainen/libris/internal/ratelimit"
)

const (
	coverConnectTimeout = 10 * time.Second
	coverTotalTimeout   = 30 * time.Second
	coverMaxRedirects   = 5
)

// Services bundles the long-lived collaborators of one command run.
type Services struct {
	Metrics  *metrics.Metrics
	Catalog  *catalog.Client
	Library  *datastore.Library
	Changes  *notify.Broadcaster
	Download catalog.HTTPDoer

	closers []func()
}

// newBrowserDoer is replaced in tests.
var newBrowserDoer = func(opts automation.AutomationOptions) (catalog.HTTPDoer, func()) {
	doer := automation.NewBrowserDoer(nil, opts)
	return doer, doer.Close
}

// NewCatalogClient builds a catalog client from config. The returned
// function releases a headless browser if one was started.
func NewCatalogClient(m *metrics.Metrics) (*catalog.Client, func()) {
	opts := []catalog.Option{
		catalog.WithBaseURL(config.BaseURL),
		catalog.WithUserAgent(config.UserAgent),
		catalog.WithRateLimiter(ratelimit.New("catalog", config.RateLimit)),
		catalog.WithMetrics(m),
	}

	release := func() {}
	if config.Browser {
		ua := config.UserAgent
		if ua == "" {
			ua = catalog.DefaultUserAgent
		}
		doer, closeFn := newBrowserDoer(automation.AutomationOptions{
			Headless:    true,
			UserAgent:   ua,
			PageTimeout: config.BrowserTimeout,
		})
		opts = append(opts, catalog.WithHTTPClient(doer))
		release = closeFn
		slog.Debug("Fetching catalog pages through headless Chrome")
	}

	return catalog.NewClient(opts...), release
}

// OpenLibrary connects to the configured library database.
func OpenLibrary(ctx context.Context, m *metrics.Metrics, n notify.Notifier) (*datastore.Library, error) {
	lib := datastore.NewLibrary(config.DBFile, datastore.WithMetrics(m), datastore.WithNotifier(n))
	if err := lib.Connect(ctx); err != nil {
		return nil, fmt.Errorf("open library %s: %w", config.DBFile, err)
	}
	slog.Debug("Library opened", "path", lib.Path())
	return lib, nil
}

// NewServices wires metrics, the catalog client and the library.
// withCatalog is false for read-only commands.
func NewServices(ctx context.Context, withCatalog bool) (*Services, error) {
	s := &Services{
		Metrics: metrics.New(),
		Changes: notify.NewBroadcaster(),
	}

	lib, err := OpenLibrary(ctx, s.Metrics, s.Changes)
	if err != nil {
		return nil, err
	}
	s.Library = lib
	s.closers = append(s.closers, func() { _ = lib.Close() })

	if withCatalog {
		client, release := NewCatalogClient(s.Metrics)
		s.Catalog = client
		s.closers = append(s.closers, release)
		s.Download = catalog.NewHTTPClient(coverConnectTimeout, coverTotalTimeout, coverMaxRedirects)
	}

	return s, nil
}

// Close releases everything in reverse order and writes the metrics
// textfile when one is configured.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil

	if config.MetricsTextfile == "" {
		return
	}
	if err := s.Metrics.WriteTextfile(config.MetricsTextfile); err != nil {
		slog.Warn("Failed to write metrics textfile", "path", config.MetricsTextfile, "error", err)
	}
}
