// Package datastore owns the local library database: schema, the atomic
// ingestion transaction and the read queries used by the CLI.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/libris/internal/metrics"
	"github.com/lepinkainen/libris/internal/notify"
)

const maxOpenConns = 10

// Library is the SQLite-backed book library.
type Library struct {
	db       *sql.DB
	dbPath   string
	metrics  *metrics.Metrics
	notifier notify.Notifier
}

// Option configures a Library.
type Option func(*Library)

// WithMetrics records ingestion outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Library) {
		l.metrics = m
	}
}

// WithNotifier sets who hears about committed changes.
func WithNotifier(n notify.Notifier) Option {
	return func(l *Library) {
		if n != nil {
			l.notifier = n
		}
	}
}

// NewLibrary creates a Library for the database file at dbPath.
func NewLibrary(dbPath string, opts ...Option) *Library {
	l := &Library{
		dbPath:   dbPath,
		notifier: notify.Discard,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// dsn enables foreign keys, WAL and a busy timeout, and makes every
// transaction take the write lock up front.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(path, "file:") + sep +
		"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Connect opens the database and creates missing tables.
func (l *Library) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", dsn(l.dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	l.db = db

	if err := l.Migrate(ctx); err != nil {
		_ = db.Close()
		l.db = nil
		return err
	}

	slog.Debug("Library database ready", "path", l.dbPath)
	return nil
}

// Path returns the database file path.
func (l *Library) Path() string {
	return l.dbPath
}

// Close closes the database connection
func (l *Library) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
