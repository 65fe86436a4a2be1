// Package sortkey computes display sort keys for person names and titles.
//
// Name is a plain "last token first" heuristic. It cannot tell
// "Robert Louis Stevenson" from "Lois McMaster Bujold", so callers should
// prefer a sort key already stored in the library when there is one.
package sortkey

import "strings"

var articles = []string{"A", "An", "The"}

// Name returns "<last>, <rest>" for a multi-token name.
// Empty input yields "" and a single token is returned as is.
func Name(fullName string) string {
	tokens := strings.Fields(fullName)
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	}

	last := tokens[len(tokens)-1]
	return last + ", " + strings.Join(tokens[:len(tokens)-1], " ")
}

// Title moves a leading "A", "An" or "The" to the end: "The Hobbit" becomes
// "Hobbit, The". Matching is case-sensitive and only the first token counts.
// A title that is nothing but an article ("The", "A") is returned unchanged.
func Title(title string) string {
	tokens := strings.Fields(title)
	if len(tokens) < 2 {
		return title
	}

	first := tokens[0]
	for _, article := range articles {
		if first != article {
			continue
		}
		rest := strings.TrimSpace(strings.Replace(title, article, "", 1))
		return rest + ", " + article
	}

	return title
}
