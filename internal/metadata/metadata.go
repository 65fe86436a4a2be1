// Package metadata holds the book record extracted from the catalog.
package metadata

import (
	"regexp"
	"strings"
	"time"
)

// RoleAuthor is the only secondary contributor role kept on a record.
const RoleAuthor = "Author"

// BookMetadata is the flat record extracted from one catalog book page.
// Fields beyond the title are optional; ExternalID is the catalog's book id.
type BookMetadata struct {
	Title           string
	Subtitle        *string
	PublicationDate *time.Time
	PageCount       *int64
	ImageURL        *string
	Publisher       *string
	ISBN            *string
	Language        *string
	Description     *string
	Genres          []string
	ExternalID      string
	Contributors    []Contributor
	Series          []SeriesMembership
}

// Contributor is a person credited on the book.
type Contributor struct {
	Name       string
	Role       string
	ExternalID string
}

// SeriesMembership places the book at Position within a series.
type SeriesMembership struct {
	Title      string
	Position   float64
	ExternalID string
}

// Separators like NBSP and em space count as whitespace.
var multiSpace = regexp.MustCompile(`[\s\p{Z}]{2,}`)

// Normalize trims s and collapses runs of whitespace to a single space.
// The second return value is false when nothing is left.
func Normalize(s string) (string, bool) {
	s = multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return "", false
	}
	return s, true
}

// IsUnknownAuthor reports whether name is the catalog's placeholder author.
func IsUnknownAuthor(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "unknown author")
}
