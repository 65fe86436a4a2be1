package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
)

var now = func() time.Time { return time.Now().UTC() }

// Record is a book ready for ingestion: the extracted metadata plus a sort
// key for the title, each contributor and each series, in the same order.
type Record struct {
	Book        *metadata.BookMetadata
	TitleSort   string
	AuthorSorts []string
	SeriesSorts []string
}

// NewRecord pairs book with resolved sort keys.
func NewRecord(book *metadata.BookMetadata, keys SortKeys) Record {
	return Record{
		Book:        book,
		TitleSort:   keys.Title,
		AuthorSorts: keys.Authors,
		SeriesSorts: keys.Series,
	}
}

func (r Record) validate() error {
	if r.Book == nil {
		return errors.New("record has no book")
	}
	if strings.TrimSpace(r.Book.Title) == "" {
		return errors.New("record has no title")
	}
	if len(r.AuthorSorts) != len(r.Book.Contributors) {
		return fmt.Errorf("got %d author sort keys for %d contributors", len(r.AuthorSorts), len(r.Book.Contributors))
	}
	if len(r.SeriesSorts) != len(r.Book.Series) {
		return fmt.Errorf("got %d series sort keys for %d series", len(r.SeriesSorts), len(r.Book.Series))
	}
	for _, a := range r.Book.Contributors {
		if _, err := parseExternalID("author", a.ExternalID); err != nil {
			return err
		}
	}
	for _, s := range r.Book.Series {
		if _, err := parseExternalID("series", s.ExternalID); err != nil {
			return err
		}
	}
	return nil
}

// check validates the record and returns the book's catalog id as an integer.
func (r Record) check() (int64, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	return parseExternalID("book", r.Book.ExternalID)
}

// parseExternalID turns a catalog id into the integer natural key.
func parseExternalID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s catalog id %q", kind, id)
	}
	return n, nil
}

// Ingest stores the record in one transaction and returns the new book's
// local id. Authors and series are upserted by catalog id; a book whose
// catalog id is already stored is rejected with DuplicateBookError and the
// library is left untouched.
func (l *Library) Ingest(ctx context.Context, rec Record) (int64, error) {
	bookID, err := rec.check()
	if err != nil {
		l.metrics.IncIngestFailure("invalid")
		slog.Warn("Refusing to ingest record", "error", err)
		return 0, liberrors.NewInvalidRecordError(err.Error())
	}

	log := slog.With("ingest_id", uuid.NewString(), "goodreads_id", bookID)
	start := time.Now()

	localID, err := l.ingestTx(ctx, rec, bookID)
	if err != nil {
		if liberrors.IsDuplicateBookError(err) {
			l.metrics.IncIngestFailure("duplicate")
			log.Info("Book already in library", "title", rec.Book.Title)
		} else {
			l.metrics.IncIngestFailure("database")
			log.Error("Ingestion failed, rolled back", "error", err)
		}
		return 0, err
	}

	l.metrics.IncIngested()
	log.Info("Added book",
		"id", localID,
		"title", rec.Book.Title,
		"authors", len(rec.Book.Contributors),
		"series", len(rec.Book.Series),
		"elapsed", time.Since(start),
	)
	l.notifier.LibraryChanged()
	return localID, nil
}

func (l *Library) ingestTx(ctx context.Context, rec Record, bookExternalID int64) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, liberrors.NewDatabaseError("begin transaction", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	book := rec.Book
	stamp := now().Format(timeLayout)

	var published, pages any
	if book.PublicationDate != nil {
		published = book.PublicationDate.UTC().Format(timeLayout)
	}
	if book.PageCount != nil {
		pages = *book.PageCount
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO books (title, sort, date_added, date_published, last_modified, number_of_pages, goodreads_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.Title, rec.TitleSort, stamp, published, stamp, pages, bookExternalID,
	)
	if err != nil {
		if isUniqueViolation(err, "books.goodreads_id") {
			return 0, liberrors.NewDuplicateBookError(book.ExternalID)
		}
		return 0, liberrors.NewDatabaseError("insert book", err)
	}

	localID, err := res.LastInsertId()
	if err != nil {
		return 0, liberrors.NewDatabaseError("read book id", err)
	}

	for i, author := range book.Contributors {
		if err := linkAuthor(ctx, tx, localID, author, rec.AuthorSorts[i]); err != nil {
			return 0, err
		}
	}

	for i, series := range book.Series {
		if err := linkSeries(ctx, tx, localID, series, rec.SeriesSorts[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, liberrors.NewDatabaseError("commit", err)
	}
	return localID, nil
}

func linkAuthor(ctx context.Context, tx *sql.Tx, bookID int64, author metadata.Contributor, sort string) error {
	externalID, err := parseExternalID("author", author.ExternalID)
	if err != nil {
		return liberrors.NewDatabaseError("upsert author", err)
	}

	var authorID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO authors (name, sort, goodreads_id) VALUES (?, ?, ?)
		 ON CONFLICT(goodreads_id) DO UPDATE SET name = excluded.name, sort = excluded.sort
		 RETURNING id`,
		author.Name, sort, externalID,
	).Scan(&authorID)
	if err != nil {
		return liberrors.NewDatabaseError("upsert author", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO books_authors_link (book, author) VALUES (?, ?)`,
		bookID, authorID,
	); err != nil {
		return liberrors.NewDatabaseError("link author", err)
	}
	return nil
}

func linkSeries(ctx context.Context, tx *sql.Tx, bookID int64, series metadata.SeriesMembership, sort string) error {
	externalID, err := parseExternalID("series", series.ExternalID)
	if err != nil {
		return liberrors.NewDatabaseError("upsert series", err)
	}

	var seriesID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO series (name, sort, goodreads_id) VALUES (?, ?, ?)
		 ON CONFLICT(goodreads_id) DO UPDATE SET name = excluded.name, sort = excluded.sort
		 RETURNING id`,
		series.Title, sort, externalID,
	).Scan(&seriesID)
	if err != nil {
		return liberrors.NewDatabaseError("upsert series", err)
	}

	// A book holds one position per series, so a repeated pair is an error.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO books_series_link (book, series, entry) VALUES (?, ?, ?)`,
		bookID, seriesID, series.Position,
	); err != nil {
		return liberrors.NewDatabaseError("link series", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE failure on column
// (given as "table.column").
func isUniqueViolation(err error, column string) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
