package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// AuthorRecord is an author as linked to a stored book.
type AuthorRecord struct {
	Name string `json:"name" yaml:"name"`
	Sort string `json:"sort" yaml:"sort"`
}

// SeriesRecord is a series membership of a stored book.
type SeriesRecord struct {
	Name   string  `json:"series" yaml:"series"`
	Sort   string  `json:"sort" yaml:"sort"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// BookRecord is a stored book with its authors and series.
type BookRecord struct {
	ID            int64          `json:"book_id" yaml:"book_id"`
	GoodreadsID   int64          `json:"goodreads_id" yaml:"goodreads_id"`
	Title         string         `json:"title" yaml:"title"`
	Sort          string         `json:"sort" yaml:"sort"`
	Authors       []AuthorRecord `json:"authors" yaml:"authors"`
	Series        []SeriesRecord `json:"series_and_volume" yaml:"series_and_volume"`
	NumberOfPages *int64         `json:"number_of_pages,omitempty" yaml:"number_of_pages,omitempty"`
	DateAdded     time.Time      `json:"date_added" yaml:"date_added"`
	DatePublished *time.Time     `json:"date_published,omitempty" yaml:"date_published,omitempty"`
	DateModified  time.Time      `json:"date_modified" yaml:"date_modified"`
}

const booksQuery = `
WITH series_info AS (
	SELECT book, json_group_array(json_object('series', name, 'sort', sort, 'volume', entry)) AS series_and_volume
	FROM (
		SELECT bsl.book, s.name, s.sort, bsl.entry
		FROM series AS s
		JOIN books_series_link AS bsl ON bsl.series = s.id
		ORDER BY bsl.id
	)
	GROUP BY book
),
authors_info AS (
	SELECT book, json_group_array(json_object('name', name, 'sort', sort)) AS authors
	FROM (
		SELECT bal.book, a.name, a.sort
		FROM authors AS a
		JOIN books_authors_link AS bal ON bal.author = a.id
		ORDER BY bal.id
	)
	GROUP BY book
)
SELECT books.id, books.goodreads_id, books.title, books.sort,
       books.date_added, books.date_published, books.last_modified, books.number_of_pages,
       COALESCE(authors_info.authors, '[]'),
       COALESCE(series_info.series_and_volume, '[]')
FROM books
LEFT JOIN authors_info ON authors_info.book = books.id
LEFT JOIN series_info ON series_info.book = books.id`

type rowScanner interface {
	Scan(dest ...any) error
}

// ListBooks returns every stored book, oldest first.
func (l *Library) ListBooks(ctx context.Context) ([]BookRecord, error) {
	rows, err := l.db.QueryContext(ctx, booksQuery+" ORDER BY books.date_added ASC, books.id ASC")
	if err != nil {
		return nil, liberrors.NewDatabaseError("list books", err)
	}
	defer func() { _ = rows.Close() }()

	var books []BookRecord
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, liberrors.NewDatabaseError("list books", err)
	}
	return books, nil
}

// GetBook returns the stored book with the given catalog id. The boolean is
// false when no such book exists.
func (l *Library) GetBook(ctx context.Context, externalID string) (BookRecord, bool, error) {
	id, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return BookRecord{}, false, fmt.Errorf("invalid catalog id %q", externalID)
	}

	book, err := scanBook(l.db.QueryRowContext(ctx, booksQuery+" WHERE books.goodreads_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return BookRecord{}, false, nil
	}
	if err != nil {
		return BookRecord{}, false, err
	}
	return book, true, nil
}

func scanBook(row rowScanner) (BookRecord, error) {
	var (
		book                 BookRecord
		added, modified      string
		published            sql.NullString
		pages                sql.NullInt64
		authorsJSON, seriesJ string
	)
	err := row.Scan(&book.ID, &book.GoodreadsID, &book.Title, &book.Sort,
		&added, &published, &modified, &pages, &authorsJSON, &seriesJ)
	if errors.Is(err, sql.ErrNoRows) {
		return BookRecord{}, err
	}
	if err != nil {
		return BookRecord{}, liberrors.NewDatabaseError("read book", err)
	}

	if book.DateAdded, err = parseTime(added); err != nil {
		return BookRecord{}, err
	}
	if book.DateModified, err = parseTime(modified); err != nil {
		return BookRecord{}, err
	}
	if published.Valid {
		t, err := parseTime(published.String)
		if err != nil {
			return BookRecord{}, err
		}
		book.DatePublished = &t
	}
	if pages.Valid {
		n := pages.Int64
		book.NumberOfPages = &n
	}

	if err := json.Unmarshal([]byte(authorsJSON), &book.Authors); err != nil {
		return BookRecord{}, liberrors.NewDatabaseError("decode authors", err)
	}
	if err := json.Unmarshal([]byte(seriesJ), &book.Series); err != nil {
		return BookRecord{}, liberrors.NewDatabaseError("decode series", err)
	}
	return book, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, liberrors.NewDatabaseError("parse timestamp", err)
	}
	return t, nil
}
