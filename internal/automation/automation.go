// Package automation renders catalog pages in a headless Chrome through the
// DevTools protocol. It is a fallback transport for when the catalog stops
// serving page data to plain HTTP clients.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// CDPRunner abstracts the chromedp entry points so tests can stub the browser.
type CDPRunner interface {
	NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc)
	NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc)
	Run(ctx context.Context, actions ...chromedp.Action) error
}

// DefaultCDPRunner drives a real browser.
type DefaultCDPRunner struct{}

func (DefaultCDPRunner) NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc) {
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (DefaultCDPRunner) NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(parent, opts...)
}

func (DefaultCDPRunner) Run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

// AutomationOptions holds common configuration for browser automation.
type AutomationOptions struct {
	Headless  bool
	UserAgent string

	// PageTimeout bounds one page load; zero means the default.
	PageTimeout time.Duration
}

// BuildExecAllocatorOptions returns the Chrome flags used for every session.
func BuildExecAllocatorOptions(opts AutomationOptions) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	return allocOpts
}

// PollWithTimeout polls a condition function at regular intervals until it succeeds, times out, or context is canceled.
// The checkFunc returns (result, found, error). If found is true, polling stops and result is returned.
// If checkFunc returns an error, polling stops and the error is returned.
func PollWithTimeout[T any](ctx context.Context, interval, timeout time.Duration, description string, checkFunc func() (T, bool, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tries := 0
	for {
		result, found, err := checkFunc()
		if err != nil {
			return zero, err
		}
		if found {
			return result, nil
		}

		tries++
		if tries%5 == 0 {
			slog.Debug("Polling", "description", description, "tries", tries)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("polling canceled for %s: %w", description, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return zero, fmt.Errorf("timeout waiting for %s", description)
			}
		}
	}
}
