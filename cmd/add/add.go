// Package add implements "libris add": resolve one book on the catalog and
// store it in the library.
package add

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/cmdutil"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/ebook"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/fileutil"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/resolve"
	"github.com/lepinkainen/libris/internal/tui"
)

// Options are the inputs of one add invocation. Exactly one of ID, ISBN,
// Title or File must be set; Author only narrows Title.
type Options struct {
	ID          string
	ISBN        string
	Title       string
	Author      string
	File        string
	Interactive bool
	Covers      bool
}

var (
	// ErrNoMetadata means the catalog has no book for the input.
	ErrNoMetadata = errors.New("no metadata found for this input")
	// ErrSkipped means the user declined every candidate.
	ErrSkipped = errors.New("selection skipped")
)

var (
	newServices                     = cmdutil.NewServices
	selectCandidate                 = tui.Select
	extractor       ebook.Extractor = ebook.EPUB{}
	output          io.Writer       = os.Stdout
)

// Run resolves and stores the book described by opts.
func Run(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	req, err := BuildRequest(opts, extractor)
	if err != nil {
		return err
	}

	s, err := newServices(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	book, err := AddBook(ctx, s, req, opts)
	if errors.Is(err, ErrSkipped) {
		_, _ = fmt.Fprintln(output, "Skipped.")
		return nil
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(output, "Added %q (goodreads id %s)\n", book.Title, book.ExternalID)
	return nil
}

// BuildRequest turns the command inputs into a resolution request. A file
// contributes its embedded title and first author.
func BuildRequest(opts Options, ex ebook.Extractor) (resolve.Request, error) {
	set := 0
	for _, v := range []string{opts.ID, opts.ISBN, opts.Title, opts.File} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of --id, --isbn, --title or --file is required")
	}
	if opts.Author != "" && opts.Title == "" {
		return nil, errors.New("--author can only be combined with --title")
	}

	switch {
	case opts.ID != "":
		return resolve.ByID(opts.ID), nil
	case opts.ISBN != "":
		return resolve.ByISBN(opts.ISBN), nil
	case opts.Title != "":
		if opts.Author != "" {
			return resolve.ByTitle(opts.Title).WithAuthor(opts.Author), nil
		}
		return resolve.ByTitle(opts.Title), nil
	}

	start := time.Now()
	info, err := ex.ExtractBasicInfo(opts.File)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.File, err)
	}
	slog.Debug("Read e-book details", "file", opts.File, "title", info.Title, "author", info.FirstAuthor(), "elapsed", time.Since(start))

	return resolve.ByTitle(info.Title).WithAuthor(info.FirstAuthor()), nil
}

// AddBook runs the pipeline: resolve, sort keys, ingest and optional cover.
func AddBook(ctx context.Context, s *cmdutil.Services, req resolve.Request, opts Options) (*metadata.BookMetadata, error) {
	if opts.Interactive && opts.Title != "" {
		picked, err := pickInteractively(ctx, s.Catalog, opts.Title, opts.Author)
		if err != nil {
			return nil, err
		}
		req = picked
	}

	start := time.Now()
	book, err := req.Execute(ctx, s.Catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resolve.Describe(req), err)
	}
	if book == nil {
		return nil, fmt.Errorf("%s: %w", resolve.Describe(req), ErrNoMetadata)
	}
	slog.Info("Resolved book", "request", resolve.Describe(req), "id", book.ExternalID, "title", book.Title, "elapsed", time.Since(start))

	keys, err := datastore.ResolveSortKeys(ctx, s.Library, book, s.Metrics)
	if err != nil {
		return nil, err
	}

	if _, err := s.Library.Ingest(ctx, datastore.NewRecord(book, keys)); err != nil {
		return nil, describeIngestError(book, err)
	}

	if opts.Covers {
		downloadCover(ctx, s, book)
	}
	return book, nil
}

func describeIngestError(book *metadata.BookMetadata, err error) error {
	switch {
	case liberrors.IsDuplicateBookError(err):
		return fmt.Errorf("%q is already in your library: %w", book.Title, err)
	case liberrors.IsDatabaseError(err):
		return fmt.Errorf("storage error: %w", err)
	case liberrors.IsInvalidRecordError(err):
		return fmt.Errorf("cannot store %q: %w", book.Title, err)
	}
	return err
}

func downloadCover(ctx context.Context, s *cmdutil.Services, book *metadata.BookMetadata) {
	if book.ImageURL == nil {
		slog.Debug("Book has no cover image", "id", book.ExternalID)
		return
	}
	_, err := fileutil.DownloadCover(ctx, s.Download, fileutil.CoverDownloadOptions{
		URL:        *book.ImageURL,
		OutputDir:  config.CoversDir,
		ExternalID: book.ExternalID,
		MaxWidth:   config.CoversMaxWidth,
	})
	if err != nil {
		slog.Warn("Failed to download cover", "id", book.ExternalID, "error", err)
	}
}

// pickInteractively collects every fuzzy match from both search passes and
// lets the user choose when there is more than one.
func pickInteractively(ctx context.Context, c *catalog.Client, title, author string) (resolve.Request, error) {
	queries := []string{title}
	if author != "" {
		queries = append(queries, title+" "+author)
	}

	seen := make(map[string]bool)
	var matches []catalog.Candidate
	for _, q := range queries {
		candidates, err := c.SearchCandidates(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		for _, cand := range catalog.Matches(candidates, title, author) {
			if cand.ExternalID == "" || seen[cand.ExternalID] {
				continue
			}
			seen[cand.ExternalID] = true
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%q: %w", title, ErrNoMetadata)
	case 1:
		return resolve.ByID(matches[0].ExternalID), nil
	}

	result, err := selectCandidate(title, matches)
	if err != nil {
		return nil, fmt.Errorf("interactive selection: %w", err)
	}
	switch result.Action {
	case tui.ActionSelected:
		return resolve.ByID(result.Selection.ExternalID), nil
	case tui.ActionStopped:
		return nil, liberrors.NewStopProcessingError("stopped by user")
	}
	return nil, ErrSkipped
}
