package catalog

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

// FuzzyEquals compares two strings ignoring case and anything that is not a
// letter or digit, and reports whether one contains the other.
// Strings with no letters or digits never match.
func FuzzyEquals(a, b string) bool {
	a, b = fold(a), fold(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func fold(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

// ResolveByTitle searches for title and returns the id of the first result
// whose title matches, or "" when none does.
func (c *Client) ResolveByTitle(ctx context.Context, title string) (string, error) {
	candidates, err := c.SearchCandidates(ctx, title)
	if err != nil {
		return "", err
	}

	if found, ok := firstMatch(candidates, title, ""); ok {
		return found.ExternalID, nil
	}

	slog.Info("No catalog match for title", "title", title)
	return "", nil
}

// ResolveByTitleAndAuthor searches by title first and then by
// "<title> <author>", each time requiring both title and author to match.
// It returns "" when neither pass finds a match.
func (c *Client) ResolveByTitleAndAuthor(ctx context.Context, title, author string) (string, error) {
	for _, query := range []string{title, title + " " + author} {
		candidates, err := c.SearchCandidates(ctx, query)
		if err != nil {
			return "", err
		}
		if found, ok := firstMatch(candidates, title, author); ok {
			slog.Debug("Matched catalog entry", "query", query, "id", found.ExternalID, "title", found.Title)
			return found.ExternalID, nil
		}
	}

	slog.Info("No catalog match for title and author", "title", title, "author", author)
	return "", nil
}

// firstMatch returns the first candidate matching title and, when author is
// set, author. Ranking stops at the first hit.
func firstMatch(candidates []Candidate, title, author string) (Candidate, bool) {
	for _, cand := range candidates {
		if !FuzzyEquals(cand.Title, title) {
			continue
		}
		if author != "" && !FuzzyEquals(cand.Author, author) {
			continue
		}
		return cand, true
	}
	return Candidate{}, false
}

// Matches returns every candidate for title (and author when set), in
// catalog order. It backs interactive selection.
func Matches(candidates []Candidate, title, author string) []Candidate {
	var out []Candidate
	for _, cand := range candidates {
		if FuzzyEquals(cand.Title, title) && (author == "" || FuzzyEquals(cand.Author, author)) {
			out = append(out, cand)
		}
	}
	return out
}
