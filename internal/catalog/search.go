package catalog

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
)

const (
	titleSelector  = `a[class="bookTitle"]`
	authorSelector = `a[class="authorName"]`
)

// Candidate is one row of a catalog search result page.
type Candidate struct {
	Title      string
	Author     string
	ExternalID string
}

func (c *Client) searchURL(query string) string {
	return c.baseURL + "/search?q=" + url.QueryEscape(query)
}

// SearchCandidates runs query against the catalog search page. Title and
// author links are paired by position.
func (c *Client) SearchCandidates(ctx context.Context, query string) ([]Candidate, error) {
	if c.searchMemo != nil {
		if cached, ok := c.searchMemo.Get(query); ok {
			slog.Debug("Search memo hit", "query", query)
			return cached, nil
		}
	}

	body, err := c.get(ctx, "search", c.searchURL(query))
	if err != nil {
		return nil, err
	}

	candidates, err := parseSearchResults(body)
	if err != nil {
		c.metrics.IncError("parse")
		return nil, err
	}

	slog.Debug("Search results", "query", query, "count", len(candidates))
	if c.searchMemo != nil {
		c.searchMemo.Add(query, candidates)
	}
	return candidates, nil
}

func parseSearchResults(body []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, liberrors.WrapParseError("failed to parse search page", err)
	}

	titles := doc.Find(titleSelector)
	authors := doc.Find(authorSelector)
	n := min(titles.Length(), authors.Length())

	candidates := make([]Candidate, 0, n)
	for i := range n {
		titleLink := titles.Eq(i)
		href, ok := titleLink.Attr("href")
		if !ok {
			return nil, liberrors.NewParseError("failed to extract link from search result")
		}

		id := ExtractID(href)
		if id == "" {
			slog.Warn("Search result link carries no numeric id, skipping", "href", href)
			continue
		}

		title, _ := metadata.Normalize(titleLink.Text())
		author, _ := metadata.Normalize(authors.Eq(i).Text())
		candidates = append(candidates, Candidate{
			Title:      title,
			Author:     author,
			ExternalID: id,
		})
	}

	return candidates, nil
}

// ExtractID returns the numeric catalog id embedded in a record link such
// as "/book/show/6137154-fire?from_search=true". It returns "" when the
// identifying path segment does not start with a digit.
func ExtractID(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	segment := segments[len(segments)-1]
	if len(segments) >= 3 && segments[0] == "book" && segments[1] == "show" {
		segment = segments[2]
	}

	return leadingDigits(segment)
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
