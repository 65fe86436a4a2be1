package fileutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/natefinch/atomic"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CoverDownloadOptions holds options for downloading cover images.
type CoverDownloadOptions struct {
	// URL is the source URL of the cover image
	URL string
	// OutputDir is the directory where the cover will be saved
	OutputDir string
	// ExternalID names the file: "<ExternalID>.jpg"
	ExternalID string
	// MaxWidth downsizes wider images; 0 keeps the original size
	MaxWidth int
	// UpdateCovers forces re-downloading even if cover exists
	UpdateCovers bool
}

// CoverDownloadResult holds the result of a cover download operation.
type CoverDownloadResult struct {
	// Downloaded indicates if a new file was downloaded
	Downloaded bool
	// LocalPath is the full path to the cover
	LocalPath string
	Width     int
	Height    int
}

// CoverFilename is the file name used for a book's cover.
func CoverFilename(externalID string) string {
	return externalID + ".jpg"
}

// DownloadCover fetches a cover image, optionally shrinks it and stores it
// as JPEG. It skips the download if the file already exists and
// UpdateCovers is false. An empty URL is a no-op.
func DownloadCover(ctx context.Context, client HTTPDoer, opts CoverDownloadOptions) (*CoverDownloadResult, error) {
	if opts.URL == "" {
		return nil, nil
	}
	if opts.ExternalID == "" {
		return nil, fmt.Errorf("cover for %s has no book id", opts.URL)
	}

	localPath := filepath.Join(opts.OutputDir, CoverFilename(opts.ExternalID))
	result := &CoverDownloadResult{LocalPath: localPath}

	if FileExists(localPath) && !opts.UpdateCovers {
		slog.Debug("Cover already exists, skipping download", "path", localPath)
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cover request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, opts.URL)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover image: %w", err)
	}
	img = fitWidth(img, opts.MaxWidth)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}

	if err := ensureDir(opts.OutputDir); err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(localPath, &buf); err != nil {
		return nil, fmt.Errorf("failed to write cover file: %w", err)
	}

	bounds := img.Bounds()
	result.Downloaded = true
	result.Width = bounds.Dx()
	result.Height = bounds.Dy()

	slog.Info("Downloaded cover", "path", localPath, "width", result.Width, "height", result.Height)
	return result, nil
}

func fitWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	return img
}
