package forms

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an identifier that matched nothing in the catalog.
// Absence is expected for mistyped or retired identifiers, not an error
// condition worth alarming on.
var ErrNotFound = errors.New("form not found in catalog")

// ErrNotFoundForRange marks an identifier that matched the catalog but has
// no entries inside the requested year range.
var ErrNotFoundForRange = errors.New("no catalog entries in requested year range")

// StatusError reports a non-2xx response from the catalog.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// FetchError is the terminal network failure for one identifier after the
// retry policy is exhausted.
type FetchError struct {
	Identifier string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q: status %d from %s", e.Identifier, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %q: %v", e.Identifier, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError signals that a catalog page no longer matches the expected
// structure. It indicates a breaking change upstream and is never retried.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse catalog page %s: %s", e.URL, e.Reason)
}

// Classify maps a resolution error onto its outcome kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindSuccess
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotFoundForRange):
		return KindNotFoundForRange
	default:
		var pe *ParseError
		if errors.As(err, &pe) {
			return KindParseError
		}
		return KindFetchError
	}
}
