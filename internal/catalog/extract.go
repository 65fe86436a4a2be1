package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/refgraph"
)

const (
	rootQueryKey     = "ROOT_QUERY"
	authorPathMarker = "/author/show/"
	seriesPathMarker = "/series/"
)

// FetchMetadata downloads the record page for id and extracts its book record.
func (c *Client) FetchMetadata(ctx context.Context, id string) (*metadata.BookMetadata, error) {
	body, err := c.get(ctx, "book", c.bookURL(id))
	if err != nil {
		return nil, err
	}

	book, err := ExtractMetadata(body, id)
	if err != nil {
		c.metrics.IncError(errorType(err))
		return nil, fmt.Errorf("extract book %s: %w", id, err)
	}
	return book, nil
}

// ExtractMetadata reads the book record for id out of a record page.
// Only the primary book entity and its title are required; every other
// field is left empty when missing or malformed.
func ExtractMetadata(body []byte, id string) (*metadata.BookMetadata, error) {
	payload, err := nextData(body)
	if err != nil {
		return nil, err
	}

	state, ok := payload.Object("props", "pageProps", "apolloState")
	if !ok {
		return nil, liberrors.NewScrapeError("page data carries no reference graph")
	}

	return extractBook(refgraph.New(state), id)
}

func bookQueryField(id string) string {
	return `getBookByLegacyId({"legacyId":"` + id + `"})`
}

func extractBook(g *refgraph.Graph, id string) (*metadata.BookMetadata, error) {
	slog.Debug("Reference graph loaded", "id", id, "nodes", g.Len())

	root, err := g.Lookup(rootQueryKey)
	if err != nil {
		return nil, liberrors.NewScrapeError("failed to resolve primary book entity: " + err.Error())
	}
	node, err := g.Follow(root, bookQueryField(id))
	if err != nil {
		return nil, liberrors.NewScrapeError("failed to resolve primary book entity: " + err.Error())
	}

	rawTitle, _ := node.String("title")
	title, subtitle := splitTitle(rawTitle)
	if title == "" {
		return nil, liberrors.NewScrapeError("book title not found")
	}

	x := extractor{graph: g, node: node, id: id}
	book := &metadata.BookMetadata{
		Title:           title,
		Subtitle:        subtitle,
		ExternalID:      id,
		Description:     x.optionalString("description"),
		ImageURL:        x.optionalString("imageUrl"),
		Publisher:       x.optionalString("details", "publisher"),
		Language:        x.optionalString("details", "language", "name"),
		ISBN:            x.isbn(),
		PageCount:       x.pageCount(),
		PublicationDate: x.publicationDate(),
		Genres:          x.genres(),
		Contributors:    x.contributors(),
		Series:          x.series(),
	}

	return book, nil
}

// splitTitle splits "Title: Subtitle" on the first colon.
func splitTitle(raw string) (string, *string) {
	head, tail, found := strings.Cut(raw, ":")
	title, _ := metadata.Normalize(head)
	if !found {
		return title, nil
	}
	if sub, ok := metadata.Normalize(tail); ok {
		return title, &sub
	}
	return title, nil
}

type extractor struct {
	graph *refgraph.Graph
	node  refgraph.Node
	id    string
}

func (x extractor) warn(msg string, args ...any) {
	slog.Warn(msg, append([]any{"id", x.id}, args...)...)
}

func (x extractor) optionalString(path ...string) *string {
	value, ok := x.node.Get(path...)
	if !ok {
		return nil
	}
	s, isString := value.(string)
	if !isString {
		x.warn("Unexpected field type", "field", strings.Join(path, "."))
		return nil
	}
	if normalized, ok := metadata.Normalize(s); ok {
		return &normalized
	}
	return nil
}

func (x extractor) isbn() *string {
	for _, field := range []string{"isbn", "isbn13", "asin"} {
		if v := x.optionalString("details", field); v != nil {
			return v
		}
	}
	return nil
}

func (x extractor) pageCount() *int64 {
	if _, ok := x.node.Get("details", "numPages"); !ok {
		return nil
	}
	pages, ok := x.node.Int("details", "numPages")
	if !ok {
		x.warn("Failed to parse page count")
		return nil
	}
	if pages <= 0 {
		return nil
	}
	return &pages
}

// publicationDate accepts only a numeric epoch-milliseconds value.
func (x extractor) publicationDate() *time.Time {
	value, ok := x.node.Get("details", "publicationTime")
	if !ok {
		return nil
	}
	ms, isNumber := x.node.Number("details", "publicationTime")
	if !isNumber {
		x.warn("Publication date is not a timestamp", "value", value)
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

func (x extractor) genres() []string {
	list, ok := x.node.Array("bookGenres")
	if !ok {
		return nil
	}

	var genres []string
	for _, entry := range list {
		obj, ok := x.object(entry)
		if !ok {
			x.warn("Failed to parse genre entry")
			continue
		}
		genre, ok := obj.Get("genre")
		if !ok {
			x.warn("Failed to parse genre name")
			continue
		}
		genreNode, ok := x.object(genre)
		if !ok {
			x.warn("Failed to parse genre name")
			continue
		}
		raw, _ := genreNode.String("name")
		if name, ok := metadata.Normalize(raw); ok {
			genres = append(genres, name)
		} else {
			x.warn("Failed to parse genre name")
		}
	}
	return genres
}

// object returns value as a node, following one reference hop if needed.
func (x extractor) object(value any) (refgraph.Node, bool) {
	if _, isRef := refgraph.RefOf(value); isRef {
		node, err := x.graph.Resolve(value)
		return node, err == nil
	}
	switch v := value.(type) {
	case map[string]any:
		return refgraph.Node(v), true
	case refgraph.Node:
		return v, true
	}
	return nil, false
}

type contributorEdge struct {
	role string
	ref  string
}

func (x extractor) edge(value any) (contributorEdge, bool) {
	obj, ok := x.object(value)
	if !ok {
		return contributorEdge{}, false
	}
	role, hasRole := obj.String("role")
	nodeValue, hasNode := obj.Get("node")
	ref, isRef := refgraph.RefOf(nodeValue)
	if !hasRole || !hasNode || !isRef {
		return contributorEdge{}, false
	}
	return contributorEdge{role: role, ref: ref}, true
}

func (x extractor) contributors() []metadata.Contributor {
	var found []metadata.Contributor

	if primary, ok := x.node.Get("primaryContributorEdge"); ok {
		if edge, ok := x.edge(primary); ok {
			if c, ok := x.contributor(edge); ok {
				found = append(found, c)
			}
		} else {
			x.warn("Failed to parse primary contributor")
		}
	}

	secondary, _ := x.node.Array("secondaryContributorEdges")
	for _, value := range secondary {
		edge, ok := x.edge(value)
		if !ok {
			x.warn("Failed to parse contributor")
			continue
		}
		if edge.role != metadata.RoleAuthor {
			slog.Debug("Skipping non-author contributor", "id", x.id, "role", edge.role)
			continue
		}
		if c, ok := x.contributor(edge); ok {
			found = append(found, c)
		}
	}

	contributors := found[:0]
	for _, c := range found {
		if !metadata.IsUnknownAuthor(c.Name) {
			contributors = append(contributors, c)
		}
	}
	return contributors
}

func (x extractor) contributor(edge contributorEdge) (metadata.Contributor, bool) {
	person, err := x.graph.Lookup(edge.ref)
	if err != nil {
		x.warn("Contributor node missing", "ref", edge.ref)
		return metadata.Contributor{}, false
	}

	raw, _ := person.String("name")
	name, ok := metadata.Normalize(raw)
	if !ok {
		x.warn("Failed to parse contributor name", "ref", edge.ref)
		return metadata.Contributor{}, false
	}

	externalID := ""
	if legacyID, ok := person.Int("legacyId"); ok {
		externalID = strconv.FormatInt(legacyID, 10)
	} else if webURL, ok := person.String("webUrl"); ok {
		externalID = idAfter(webURL, authorPathMarker, ".")
	}
	if externalID == "" {
		x.warn("Failed to parse contributor id", "ref", edge.ref, "name", name)
		return metadata.Contributor{}, false
	}

	return metadata.Contributor{Name: name, Role: edge.role, ExternalID: externalID}, true
}

func (x extractor) series() []metadata.SeriesMembership {
	list, ok := x.node.Array("bookSeries")
	if !ok {
		return nil
	}

	var memberships []metadata.SeriesMembership
	for _, value := range list {
		entry, ok := x.object(value)
		if !ok {
			x.warn("Failed to parse series entry")
			continue
		}

		rawPosition, _ := entry.String("userPosition")
		head, _, _ := strings.Cut(rawPosition, "-")
		position, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
		if err != nil {
			x.warn("Failed to parse series number", "value", rawPosition)
			continue
		}

		seriesNode, err := x.graph.Follow(entry, "series")
		if err != nil {
			x.warn("Failed to parse series key", "error", err)
			continue
		}

		rawTitle, _ := seriesNode.String("title")
		title, ok := metadata.Normalize(rawTitle)
		if !ok {
			x.warn("Failed to parse series title")
			continue
		}

		webURL, _ := seriesNode.String("webUrl")
		externalID := idAfter(webURL, seriesPathMarker, "-")
		if externalID == "" {
			x.warn("Failed to parse series id", "series", title)
			continue
		}

		memberships = append(memberships, metadata.SeriesMembership{
			Title:      title,
			Position:   position,
			ExternalID: externalID,
		})
	}
	return memberships
}

// idAfter takes the part of webURL following marker, cuts it at sep and
// requires what is left to be a run of digits.
func idAfter(webURL, marker, sep string) string {
	i := strings.Index(webURL, marker)
	if i < 0 {
		return ""
	}
	rest := webURL[i+len(marker):]
	segment, _, _ := strings.Cut(rest, sep)
	if digits := leadingDigits(segment); digits != "" && digits == segment {
		return digits
	}
	return ""
}
