// Package ebook reads the basic identifying details out of e-book files.
package ebook

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/libris/internal/metadata"
)

const (
	containerPath = "META-INF/container.xml"
	// Package documents are small; anything bigger is not one.
	maxPackageSize = 4 << 20
)

// ErrUnsupportedFormat is returned for files that are not EPUB.
var ErrUnsupportedFormat = errors.New("unsupported e-book format")

// BasicInfo is what an e-book says about itself.
type BasicInfo struct {
	Title   string
	Authors []string
}

// FirstAuthor returns the first listed author or "".
func (b BasicInfo) FirstAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// Extractor reads BasicInfo from a file on disk.
type Extractor interface {
	ExtractBasicInfo(path string) (BasicInfo, error)
}

// EPUB extracts BasicInfo from EPUB 2 and 3 files.
type EPUB struct{}

var _ Extractor = EPUB{}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDocument struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []struct {
			Name string `xml:",chardata"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
	} `xml:"metadata"`
}

// ExtractBasicInfo reads the title and authors from the EPUB package
// document. A missing title is an error; missing authors are not.
func (EPUB) ExtractBasicInfo(path string) (BasicInfo, error) {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return BasicInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return BasicInfo{}, fmt.Errorf("open epub %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	var c container
	if err := decodeEntry(&r.Reader, containerPath, &c); err != nil {
		return BasicInfo{}, err
	}

	opfPath := ""
	for _, rf := range c.Rootfiles {
		if rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml" {
			opfPath = rf.FullPath
			break
		}
	}
	if opfPath == "" {
		return BasicInfo{}, errors.New("epub container lists no package document")
	}

	var pkg packageDocument
	if err := decodeEntry(&r.Reader, opfPath, &pkg); err != nil {
		return BasicInfo{}, err
	}

	return basicInfo(pkg)
}

func basicInfo(pkg packageDocument) (BasicInfo, error) {
	var info BasicInfo
	for _, t := range pkg.Metadata.Titles {
		if title, ok := metadata.Normalize(t); ok {
			info.Title = title
			break
		}
	}
	if info.Title == "" {
		return BasicInfo{}, errors.New("epub has no title")
	}

	for _, c := range pkg.Metadata.Creators {
		if c.Role != "" && c.Role != "aut" {
			continue
		}
		if name, ok := metadata.Normalize(c.Name); ok {
			info.Authors = append(info.Authors, name)
		}
	}
	return info, nil
}

func decodeEntry(r *zip.Reader, name string, v any) error {
	f, err := r.Open(name)
	if err != nil {
		return fmt.Errorf("epub entry %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if err := xml.NewDecoder(io.LimitReader(f, maxPackageSize)).Decode(v); err != nil {
		return fmt.Errorf("decode epub entry %s: %w", name, err)
	}
	return nil
}
