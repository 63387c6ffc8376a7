// Package forms holds the domain types shared across the resolution pipeline.
package forms

import "strings"

// Entry is one row recovered from a catalog listing page: a single
// year/revision of a form together with its document link.
type Entry struct {
	FormNumber   string
	Year         int
	Title        string
	DocumentLink string
}

// Summary is the aggregated year-range view of all entries for one form.
type Summary struct {
	FormNumber string `json:"form_number"`
	FormTitle  string `json:"form_title"`
	MinYear    int    `json:"min_year"`
	MaxYear    int    `json:"max_year"`
}

// DownloadTask describes one binary payload to retrieve.
type DownloadTask struct {
	FormNumber      string
	Year            int
	DocumentLink    string
	DestinationPath string
}

// DownloadResult is a DownloadTask with its completion status.
type DownloadResult struct {
	Task  DownloadTask
	Bytes int64
	Err   error
}

// Kind tags the outcome of resolving one identifier.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindNotFound         Kind = "not_found"
	KindNotFoundForRange Kind = "not_found_for_range"
	KindFetchError       Kind = "fetch_error"
	KindParseError       Kind = "parse_error"
)

// Resolution is the per-identifier outcome. Exactly one of Summary or
// Downloads is populated on success; Err carries the failure otherwise.
type Resolution struct {
	Identifier string
	Kind       Kind
	Summary    *Summary
	Downloads  []DownloadResult
	Err        error
}

// Normalize canonicalizes a caller-supplied identifier for catalog lookup:
// surrounding whitespace trimmed, interior runs collapsed, case folded.
func Normalize(identifier string) string {
	return strings.ToLower(strings.Join(strings.Fields(identifier), " "))
}
