package datastore

import (
	"context"
	"fmt"
)

// timeLayout is how timestamps are stored: UTC, second precision.
const timeLayout = "2006-01-02 15:04:05"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		title           TEXT    NOT NULL,
		sort            TEXT    NOT NULL,
		date_added      TEXT    NOT NULL,
		date_published  TEXT,
		last_modified   TEXT    NOT NULL,
		number_of_pages INTEGER,
		goodreads_id    INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT    NOT NULL,
		sort         TEXT    NOT NULL,
		goodreads_id INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS series (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT    NOT NULL,
		sort         TEXT    NOT NULL,
		goodreads_id INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS books_authors_link (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		book   INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		author INTEGER NOT NULL REFERENCES authors(id),
		UNIQUE(book, author)
	)`,
	`CREATE TABLE IF NOT EXISTS books_series_link (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		book   INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		series INTEGER NOT NULL REFERENCES series(id),
		entry  REAL    NOT NULL,
		UNIQUE(book, series)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_authors_name ON authors(name)`,
	`CREATE INDEX IF NOT EXISTS idx_series_name ON series(name)`,
	`CREATE INDEX IF NOT EXISTS idx_books_date_added ON books(date_added)`,
}

// Migrate creates the library tables if they do not exist yet.
func (l *Library) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
