// Package resolve turns a loosely identified book into a catalog record.
//
// A Request is built with one of ByID, ByISBN, ByTitle or
// ByTitle(...).WithAuthor and cannot be changed afterwards.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/metadata"
)

// Catalog is the subset of the catalog client the pipeline needs.
type Catalog interface {
	Exists(ctx context.Context, id string) bool
	ResolveByISBN(ctx context.Context, isbn string) (string, error)
	ResolveByTitle(ctx context.Context, title string) (string, error)
	ResolveByTitleAndAuthor(ctx context.Context, title, author string) (string, error)
	FetchMetadata(ctx context.Context, id string) (*metadata.BookMetadata, error)
}

// Strategy names how a request identifies its book.
type Strategy int

const (
	StrategyID Strategy = iota
	StrategyISBN
	StrategyTitle
	StrategyTitleWithAuthor
)

func (s Strategy) String() string {
	switch s {
	case StrategyID:
		return "id"
	case StrategyISBN:
		return "isbn"
	case StrategyTitle:
		return "title"
	case StrategyTitleWithAuthor:
		return "title+author"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Request is an immutable resolution request.
type Request interface {
	// Strategy reports which resolution strategy the request uses.
	Strategy() Strategy
	// Execute resolves the request. A nil record with a nil error means the
	// catalog has no matching book.
	Execute(ctx context.Context, c Catalog) (*metadata.BookMetadata, error)

	resolveID(ctx context.Context, c Catalog) (string, error)
}

type idRequest struct {
	raw string
	id  string
}

type isbnRequest struct{ isbn string }

// TitleRequest resolves by title alone. Its WithAuthor method is the only
// way to build a title+author request.
type TitleRequest struct{ title string }

type titleAuthorRequest struct {
	title  string
	author string
}

// ByID builds a request for a known catalog id. Slugs and record links
// ("6137154-fire", ".../book/show/6137154-fire") are cut to their leading
// digit run.
func ByID(id string) Request {
	raw := strings.TrimSpace(id)
	return idRequest{raw: raw, id: catalog.ExtractID(raw)}
}

// ByISBN builds a request for an ISBN-10, ISBN-13 or ASIN.
func ByISBN(isbn string) Request { return isbnRequest{isbn: strings.TrimSpace(isbn)} }

// ByTitle builds a title request.
func ByTitle(title string) TitleRequest { return TitleRequest{title: strings.TrimSpace(title)} }

// WithAuthor narrows a title request with an author name.
func (r TitleRequest) WithAuthor(author string) Request {
	return titleAuthorRequest{title: r.title, author: strings.TrimSpace(author)}
}

func (idRequest) Strategy() Strategy          { return StrategyID }
func (isbnRequest) Strategy() Strategy        { return StrategyISBN }
func (TitleRequest) Strategy() Strategy       { return StrategyTitle }
func (titleAuthorRequest) Strategy() Strategy { return StrategyTitleWithAuthor }

func (r idRequest) resolveID(ctx context.Context, c Catalog) (string, error) {
	if r.id == "" {
		if r.raw != "" {
			slog.Warn("Catalog id does not start with digits", "id", r.raw)
		}
		return "", nil
	}
	if !c.Exists(ctx, r.id) {
		return "", nil
	}
	return r.id, nil
}

func (r isbnRequest) resolveID(ctx context.Context, c Catalog) (string, error) {
	if r.isbn == "" {
		return "", nil
	}
	return c.ResolveByISBN(ctx, r.isbn)
}

func (r TitleRequest) resolveID(ctx context.Context, c Catalog) (string, error) {
	if r.title == "" {
		return "", nil
	}
	return c.ResolveByTitle(ctx, r.title)
}

func (r titleAuthorRequest) resolveID(ctx context.Context, c Catalog) (string, error) {
	if r.title == "" {
		return "", nil
	}
	if r.author == "" {
		return c.ResolveByTitle(ctx, r.title)
	}
	return c.ResolveByTitleAndAuthor(ctx, r.title, r.author)
}

func (r idRequest) Execute(ctx context.Context, c Catalog) (*metadata.BookMetadata, error) {
	return execute(ctx, r, c)
}

func (r isbnRequest) Execute(ctx context.Context, c Catalog) (*metadata.BookMetadata, error) {
	return execute(ctx, r, c)
}

func (r TitleRequest) Execute(ctx context.Context, c Catalog) (*metadata.BookMetadata, error) {
	return execute(ctx, r, c)
}

func (r titleAuthorRequest) Execute(ctx context.Context, c Catalog) (*metadata.BookMetadata, error) {
	return execute(ctx, r, c)
}

func execute(ctx context.Context, r Request, c Catalog) (*metadata.BookMetadata, error) {
	id, err := r.resolveID(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", r.Strategy(), err)
	}
	if id == "" {
		slog.Info("No catalog entry found", "strategy", r.Strategy())
		return nil, nil
	}

	book, err := c.FetchMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Describe renders the request input for logs and messages.
func Describe(r Request) string {
	switch v := r.(type) {
	case idRequest:
		return "id " + v.raw
	case isbnRequest:
		return "ISBN " + v.isbn
	case TitleRequest:
		return fmt.Sprintf("%q", v.title)
	case titleAuthorRequest:
		return fmt.Sprintf("%q by %s", v.title, v.author)
	}
	return r.Strategy().String()
}
