// Package catalog knows the remote document index: how to build search
// requests against it and how to parse its listing pages.
package catalog

import (
	"net/url"
	"strconv"
)

// SearchURL builds the picklist search request for one results page.
// Offsets are row-based: page N starts at N*resultsPerPage.
func SearchURL(baseURL, query string, indexOfFirstRow, resultsPerPage int) string {
	v := url.Values{}
	v.Set("indexOfFirstRow", strconv.Itoa(indexOfFirstRow))
	v.Set("sortColumn", "sortOrder")
	v.Set("value", query)
	v.Set("criteria", "formNumber")
	v.Set("resultsPerPage", strconv.Itoa(resultsPerPage))
	v.Set("isDescending", "false")
	return baseURL + "?" + v.Encode()
}
