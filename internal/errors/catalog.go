package errors

import (
	"errors"
	"fmt"
)

// FetchError represents a transport or HTTP status failure talking to the catalog.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s failed", e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps a transport failure for url.
func NewFetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Err: err}
}

// NewFetchStatusError reports a non-2xx response for url.
func NewFetchStatusError(url string, statusCode int) *FetchError {
	return &FetchError{URL: url, StatusCode: statusCode}
}

// IsFetchError reports whether err is a FetchError (even when wrapped).
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// ParseError represents malformed HTML, JSON or an unexpected value shape.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError with the given message.
func NewParseError(message string) *ParseError {
	return &ParseError{Message: message}
}

// WrapParseError creates a ParseError carrying the underlying decode error.
func WrapParseError(message string, err error) *ParseError {
	return &ParseError{Message: message, Err: err}
}

// IsParseError reports whether err is a ParseError (even when wrapped).
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// ScrapeError means a structural element the page must carry was not there.
type ScrapeError struct {
	Message string
}

func (e *ScrapeError) Error() string {
	return e.Message
}

// NewScrapeError creates a ScrapeError with the given message.
func NewScrapeError(message string) *ScrapeError {
	return &ScrapeError{Message: message}
}

// IsScrapeError reports whether err is a ScrapeError (even when wrapped).
func IsScrapeError(err error) bool {
	var scrapeErr *ScrapeError
	return errors.As(err, &scrapeErr)
}
