package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type searchRow struct {
	href   string
	title  string
	author string
}

func searchPage(rows ...searchRow) string {
	var sb strings.Builder
	sb.WriteString("<html><body><table class=\"tableList\">")
	for _, r := range rows {
		fmt.Fprintf(&sb, `<tr><td><a class="bookTitle" itemprop="url" href="%s"><span itemprop="name">%s</span></a>`, r.href, r.title)
		fmt.Fprintf(&sb, `<span itemprop="author"><a class="authorName" itemprop="url" href="/author/show/1"><span itemprop="name">%s</span></a></span></td></tr>`, r.author)
	}
	sb.WriteString("</table></body></html>")
	return sb.String()
}

func nextDataPage(t *testing.T, payload any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal page data: %v", err)
	}
	return `<html><head><title>Book</title></head><body><div id="__next"></div>` +
		`<script id="__NEXT_DATA__" type="application/json">` + string(raw) + `</script></body></html>`
}

func isbnPage(t *testing.T, bookID string) string {
	t.Helper()
	return nextDataPage(t, map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"params": map[string]any{"book_id": bookID},
			},
		},
	})
}

func bookPage(t *testing.T, id string, state map[string]any) string {
	t.Helper()
	return nextDataPage(t, map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"apolloState": state,
			},
		},
	})
}

func ref(key string) map[string]any {
	return map[string]any{"__ref": key}
}

// lastOlympianState is a trimmed-down record graph for catalog id 4556058.
func lastOlympianState() map[string]any {
	return map[string]any{
		"ROOT_QUERY": map[string]any{
			`getBookByLegacyId({"legacyId":"4556058"})`: ref("Book:kca://book/amzn1.gr.book.v1.abc"),
		},
		"Book:kca://book/amzn1.gr.book.v1.abc": map[string]any{
			"title":       "The Last Olympian:  Percy Jackson and the Olympians",
			"imageUrl":    "https://images.example.test/4556058.jpg",
			"description": "  All year the half-bloods have been preparing  for battle. ",
			"details": map[string]any{
				"publisher":       "Disney Hyperion Books",
				"isbn":            nil,
				"isbn13":          "9781423101475",
				"asin":            "B001XYZ",
				"numPages":        381,
				"publicationTime": 1241506800000,
				"language":        map[string]any{"name": "English"},
			},
			"bookGenres": []any{
				map[string]any{"genre": map[string]any{"name": "Fantasy"}},
				map[string]any{"genre": map[string]any{"name": "Young Adult"}},
				map[string]any{"genre": map[string]any{}},
			},
			"primaryContributorEdge": map[string]any{
				"role": "Author",
				"node": ref("Contributor:kca://author/rick"),
			},
			"secondaryContributorEdges": []any{
				map[string]any{"role": "Narrator", "node": ref("Contributor:kca://author/missing")},
				map[string]any{"role": "Author", "node": ref("Contributor:kca://author/unknown")},
				map[string]any{"role": "Author", "node": ref("Contributor:kca://author/coauthor")},
			},
			"bookSeries": []any{
				map[string]any{"userPosition": "5", "series": ref("Series:kca://series/pjo")},
				map[string]any{"userPosition": "1-3", "series": ref("Series:kca://series/box")},
				map[string]any{"userPosition": "", "series": ref("Series:kca://series/pjo")},
				map[string]any{"userPosition": "2", "series": ref("Series:kca://series/missing")},
			},
		},
		"Contributor:kca://author/rick": map[string]any{
			"name":     "Rick  Riordan",
			"legacyId": 15872,
			"webUrl":   "https://www.goodreads.com/author/show/15872.Rick_Riordan",
		},
		"Contributor:kca://author/unknown": map[string]any{
			"name":     "Unknown Author",
			"legacyId": 4699102,
		},
		"Contributor:kca://author/coauthor": map[string]any{
			"name":   "Co Author",
			"webUrl": "https://www.goodreads.com/author/show/777.Co_Author",
		},
		"Series:kca://series/pjo": map[string]any{
			"title":  "Percy Jackson and the Olympians",
			"webUrl": "https://www.goodreads.com/series/40736-percy-jackson-and-the-olympians",
		},
		"Series:kca://series/box": map[string]any{
			"title":  "Percy Jackson Boxed Set",
			"webUrl": "https://www.goodreads.com/series/183923-percy-jackson-boxed-set",
		},
	}
}

// minimalState carries only the mandatory title.
func minimalState(id, title string) map[string]any {
	return map[string]any{
		"ROOT_QUERY": map[string]any{
			`getBookByLegacyId({"legacyId":"` + id + `"})`: ref("Book:" + id),
		},
		"Book:" + id: map[string]any{"title": title},
	}
}
