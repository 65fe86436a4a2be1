package datastore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// SortLookup finds sort keys already stored in the library so a
// hand-edited value survives re-ingestion of another book by the same
// author or in the same series.
type SortLookup interface {
	AuthorSort(ctx context.Context, externalID, name string) (string, bool, error)
	SeriesSort(ctx context.Context, externalID, title string) (string, bool, error)
}

// AuthorSort returns the stored sort key for an author, matched by catalog
// id first and by exact name second.
func (l *Library) AuthorSort(ctx context.Context, externalID, name string) (string, bool, error) {
	return l.storedSort(ctx, "authors", externalID, name)
}

// SeriesSort returns the stored sort key for a series, matched by catalog
// id first and by exact title second.
func (l *Library) SeriesSort(ctx context.Context, externalID, title string) (string, bool, error) {
	return l.storedSort(ctx, "series", externalID, title)
}

// table is one of the two fixed names above, never user input.
func (l *Library) storedSort(ctx context.Context, table, externalID, name string) (string, bool, error) {
	if id, err := strconv.ParseInt(externalID, 10, 64); err == nil {
		sort, ok, err := l.scanSort(ctx, "SELECT sort FROM "+table+" WHERE goodreads_id = ?", id)
		if err != nil || ok {
			return sort, ok, err
		}
	}
	if name == "" {
		return "", false, nil
	}
	return l.scanSort(ctx, "SELECT sort FROM "+table+" WHERE name = ? ORDER BY id LIMIT 1", name)
}

func (l *Library) scanSort(ctx context.Context, query string, arg any) (string, bool, error) {
	var sort string
	err := l.db.QueryRowContext(ctx, query, arg).Scan(&sort)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, liberrors.NewDatabaseError("sort lookup", err)
	}
	return sort, sort != "", nil
}
