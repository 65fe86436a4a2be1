package catalog

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/refgraph"
)

const nextDataSelector = `script[id="__NEXT_DATA__"]`

// nextData returns the JSON payload of the page data script.
func nextData(body []byte) (refgraph.Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, liberrors.WrapParseError("failed to parse page", err)
	}

	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return nil, liberrors.NewScrapeError("page data script not found")
	}

	payload, err := refgraph.Decode([]byte(script.Text()))
	if err != nil {
		return nil, liberrors.WrapParseError("failed to decode page data", err)
	}
	return payload, nil
}

// ResolveByISBN searches for isbn and reads the catalog id the search page
// redirects to from its embedded page data.
func (c *Client) ResolveByISBN(ctx context.Context, isbn string) (string, error) {
	body, err := c.get(ctx, "search", c.searchURL(isbn))
	if err != nil {
		return "", err
	}

	payload, err := nextData(body)
	if err != nil {
		c.metrics.IncError(errorType(err))
		return "", err
	}

	raw, ok := payload.String("props", "pageProps", "params", "book_id")
	if !ok {
		c.metrics.IncError("parse")
		return "", liberrors.NewParseError("failed to extract catalog id from ISBN search results")
	}

	id := leadingDigits(raw)
	if id == "" {
		slog.Warn("ISBN search returned a non-numeric book id", "isbn", isbn, "book_id", raw)
		return "", nil
	}
	return id, nil
}

func errorType(err error) string {
	switch {
	case liberrors.IsScrapeError(err):
		return "scrape"
	case liberrors.IsParseError(err):
		return "parse"
	case liberrors.IsFetchError(err):
		return "fetch"
	}
	return "other"
}
