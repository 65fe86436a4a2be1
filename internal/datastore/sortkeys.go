package datastore

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/metrics"
	"github.com/lepinkainen/libris/internal/sortkey"
)

const sortLookupConcurrency = 4

// SortKeys are the sort keys for one book, with Authors and Series in the
// same order as the book's Contributors and Series.
type SortKeys struct {
	Title   string
	Authors []string
	Series  []string
}

// ResolveSortKeys computes every sort key for book. Authors and series
// prefer a value already stored in the library and fall back to the
// heuristic when none exists or the lookup fails. Lookups run
// concurrently; the result order never depends on completion order.
func ResolveSortKeys(ctx context.Context, lookup SortLookup, book *metadata.BookMetadata, m *metrics.Metrics) (SortKeys, error) {
	if lookup == nil {
		lookup = noStoredSorts{}
	}
	keys := SortKeys{
		Title:   sortkey.Title(book.Title),
		Authors: make([]string, len(book.Contributors)),
		Series:  make([]string, len(book.Series)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sortLookupConcurrency)

	for i, c := range book.Contributors {
		g.Go(func() error {
			keys.Authors[i] = resolveOne(gctx, m, "author", c.Name, sortkey.Name, func() (string, bool, error) {
				return lookup.AuthorSort(gctx, c.ExternalID, c.Name)
			})
			return nil
		})
	}
	for i, s := range book.Series {
		g.Go(func() error {
			keys.Series[i] = resolveOne(gctx, m, "series", s.Title, sortkey.Title, func() (string, bool, error) {
				return lookup.SeriesSort(gctx, s.ExternalID, s.Title)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return SortKeys{}, err
	}
	if err := ctx.Err(); err != nil {
		return SortKeys{}, err
	}
	return keys, nil
}

func resolveOne(ctx context.Context, m *metrics.Metrics, kind, value string, heuristic func(string) string, stored func() (string, bool, error)) string {
	if lookupAllowed(ctx) {
		sort, ok, err := stored()
		switch {
		case err != nil:
			slog.Warn("Stored sort key lookup failed, using heuristic", "kind", kind, "value", value, "error", err)
		case ok:
			m.IncSortKeyLookup(kind, "stored")
			return sort
		}
	}
	m.IncSortKeyLookup(kind, "heuristic")
	return heuristic(value)
}

func lookupAllowed(ctx context.Context) bool {
	return ctx.Err() == nil
}

type noStoredSorts struct{}

func (noStoredSorts) AuthorSort(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (noStoredSorts) SeriesSort(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
