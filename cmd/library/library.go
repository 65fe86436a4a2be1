// Package library implements the read-only commands: list, show and export.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/libris/internal/cmdutil"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/fileutil"
)

const dateLayout = "2006-01-02"

var (
	newServices           = cmdutil.NewServices
	output      io.Writer = os.Stdout
)

func withLibrary(fn func(ctx context.Context, lib *datastore.Library) error) error {
	ctx := context.Background()
	s, err := newServices(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s.Library)
}

// List prints every stored book, as a table or as JSON.
func List(asJSON bool) error {
	return withLibrary(func(ctx context.Context, lib *datastore.Library) error {
		books, err := lib.ListBooks(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			if books == nil {
				books = []datastore.BookRecord{}
			}
			enc := json.NewEncoder(output)
			enc.SetIndent("", "  ")
			return enc.Encode(books)
		}
		return writeTable(output, books)
	})
}

// Show prints one book by catalog id.
func Show(externalID string, asYAML bool) error {
	return withLibrary(func(ctx context.Context, lib *datastore.Library) error {
		book, found, err := lib.GetBook(ctx, externalID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no book with goodreads id %s in the library", externalID)
		}
		if asYAML {
			enc := yaml.NewEncoder(output)
			enc.SetIndent(2)
			if err := enc.Encode(book); err != nil {
				return err
			}
			return enc.Close()
		}
		return writeDetails(output, book)
	})
}

// Export writes the whole library to path as YAML, or JSON for a .json path.
func Export(path string, overwrite bool) error {
	return withLibrary(func(ctx context.Context, lib *datastore.Library) error {
		books, err := lib.ListBooks(ctx)
		if err != nil {
			return err
		}
		if books == nil {
			books = []datastore.BookRecord{}
		}

		var written bool
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			written, err = fileutil.WriteJSONFile(books, path, overwrite)
		} else {
			written, err = fileutil.WriteYAMLFile(books, path, overwrite)
		}
		if err != nil {
			return err
		}
		if !written {
			return fmt.Errorf("%s already exists, use --overwrite to replace it", path)
		}

		_, _ = fmt.Fprintf(output, "Exported %d books to %s\n", len(books), path)
		return nil
	})
}

func writeTable(w io.Writer, books []datastore.BookRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tAUTHORS\tSERIES\tADDED")
	for _, b := range books {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			b.GoodreadsID, b.Title, authorNames(b), seriesLabel(b), b.DateAdded.Format(dateLayout))
	}
	return tw.Flush()
}

func writeDetails(w io.Writer, b datastore.BookRecord) error {
	_, _ = fmt.Fprintf(w, "%s\n", b.Title)
	_, _ = fmt.Fprintf(w, "  Sort:         %s\n", b.Sort)
	_, _ = fmt.Fprintf(w, "  Goodreads ID: %d\n", b.GoodreadsID)
	for _, a := range b.Authors {
		_, _ = fmt.Fprintf(w, "  Author:       %s (%s)\n", a.Name, a.Sort)
	}
	for _, s := range b.Series {
		_, _ = fmt.Fprintf(w, "  Series:       %s #%s\n", s.Name, formatVolume(s.Volume))
	}
	if b.NumberOfPages != nil {
		_, _ = fmt.Fprintf(w, "  Pages:        %d\n", *b.NumberOfPages)
	}
	if b.DatePublished != nil {
		_, _ = fmt.Fprintf(w, "  Published:    %s\n", b.DatePublished.Format(dateLayout))
	}
	_, err := fmt.Fprintf(w, "  Added:        %s\n", b.DateAdded.Format(dateLayout))
	return err
}

func authorNames(b datastore.BookRecord) string {
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func seriesLabel(b datastore.BookRecord) string {
	labels := make([]string, len(b.Series))
	for i, s := range b.Series {
		labels[i] = s.Name + " #" + formatVolume(s.Volume)
	}
	return strings.Join(labels, "; ")
}

func formatVolume(v float64) string {
	return fmt.Sprintf("%g", v)
}
