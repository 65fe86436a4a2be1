package add

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type searchRow struct {
	id     string
	title  string
	author string
}

// fakeCatalog serves search pages, ISBN lookups, book pages and covers.
type fakeCatalog struct {
	*httptest.Server

	mu       sync.Mutex
	searches map[string][]searchRow
	isbns    map[string]string
	books    map[string]map[string]any
	requests []string
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	t.Helper()

	fc := &fakeCatalog{
		searches: make(map[string][]searchRow),
		isbns:    make(map[string]string),
		books:    make(map[string]map[string]any),
	}
	fc.Server = httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(fc.Close)
	return fc
}

func (fc *fakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.requests = append(fc.requests, r.URL.RequestURI())

	switch {
	case r.URL.Path == "/search":
		q := r.URL.Query().Get("q")
		if id, ok := fc.isbns[q]; ok {
			writeHTML(w, nextDataPage(map[string]any{
				"props": map[string]any{"pageProps": map[string]any{"params": map[string]any{"book_id": id}}},
			}))
			return
		}
		writeHTML(w, searchPage(fc.searches[q]))
	case strings.HasPrefix(r.URL.Path, "/book/show/"):
		id := strings.TrimPrefix(r.URL.Path, "/book/show/")
		state, ok := fc.books[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeHTML(w, nextDataPage(map[string]any{
			"props": map[string]any{"pageProps": map[string]any{"apolloState": state}},
		}))
	case strings.HasPrefix(r.URL.Path, "/covers/"):
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(coverPNG(80, 120))
	default:
		http.NotFound(w, r)
	}
}

func (fc *fakeCatalog) requestCount(prefix string) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	n := 0
	for _, r := range fc.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func searchPage(rows []searchRow) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><table class="tableList">`)
	for _, r := range rows {
		fmt.Fprintf(&sb, `<tr><td><a class="bookTitle" href="/book/show/%s"><span>%s</span></a>`, r.id, r.title)
		fmt.Fprintf(&sb, `<a class="authorName" href="/author/show/1"><span>%s</span></a></td></tr>`, r.author)
	}
	sb.WriteString(`</table></body></html>`)
	return sb.String()
}

func nextDataPage(payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return `<html><body><script id="__NEXT_DATA__" type="application/json">` + string(raw) + `</script></body></html>`
}

func coverPNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func ref(key string) map[string]any {
	return map[string]any{"__ref": key}
}

// fireState is the record graph of "Fire" by Kristin Cashore.
func fireState(imageURL string) map[string]any {
	return map[string]any{
		"ROOT_QUERY": map[string]any{
			`getBookByLegacyId({"legacyId":"6137154"})`: ref("Book:fire"),
		},
		"Book:fire": map[string]any{
			"title":    "Fire",
			"imageUrl": imageURL,
			"details": map[string]any{
				"numPages":        461,
				"publicationTime": 1254726000000,
				"isbn13":          "9780803734616",
			},
			"primaryContributorEdge": map[string]any{
				"role": "Author",
				"node": ref("Contributor:cashore"),
			},
			"bookSeries": []any{
				map[string]any{"userPosition": "2", "series": ref("Series:graceling")},
			},
		},
		"Contributor:cashore": map[string]any{
			"name":     "Kristin Cashore",
			"legacyId": 1516,
		},
		"Series:graceling": map[string]any{
			"title":  "Graceling Realm",
			"webUrl": "https://www.goodreads.com/series/51562-graceling-realm",
		},
	}
}

func minimalState(id, title string) map[string]any {
	return map[string]any{
		"ROOT_QUERY": map[string]any{
			`getBookByLegacyId({"legacyId":"` + id + `"})`: ref("Book:" + id),
		},
		"Book:" + id: map[string]any{"title": title},
	}
}

// fireCatalog knows two books called Fire; the first search row is by a
// different author.
func fireCatalog(t *testing.T) *fakeCatalog {
	t.Helper()

	fc := newFakeCatalog(t)
	rows := []searchRow{
		{id: "11084.Fire", title: "Fire", author: "Sebastian Junger"},
		{id: "6137154-fire", title: "Fire (Graceling Realm, #2)", author: "Kristin Cashore"},
	}
	fc.searches["Fire"] = rows
	fc.searches["Fire Kristin Cashore"] = rows[1:]
	fc.isbns["9780803734616"] = "6137154-fire"
	fc.books["6137154"] = fireState(fc.URL + "/covers/fire.png")
	fc.books["11084"] = minimalState("11084", "Fire")
	return fc
}
