package catalog

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
)

// Page is the structured content of one catalog listing page.
type Page struct {
	// Entries holds every row with a recoverable year and document link,
	// in catalog order. Duplicates are kept; aggregation is idempotent
	// under min/max.
	Entries []forms.Entry
	// TotalRows is the result count advertised by the page header, 0 when
	// the header is absent or unreadable.
	TotalRows int
	// DroppedRows counts rows that could not contribute an entry.
	DroppedRows int
}

// rowKind classifies a table row before any extraction happens, so a
// malformed row degrades to zero entries instead of undefined behavior.
type rowKind int

const (
	rowHeader rowKind = iota
	rowData
	rowUnrecognized
)

var (
	yearRangePattern = regexp.MustCompile(`(\d{4})\s*[-–]\s*(\d{4})`)
	yearPattern      = regexp.MustCompile(`\b(\d{4})\b`)
)

// maxRangeSpan caps range-cell inflation; anything wider is a misread cell,
// not a revision span.
const maxRangeSpan = 100

// ParsePage extracts the entry set from one listing page in a single pass.
// Per-row anomalies (no link, no recoverable year) drop the row and count
// it; only a missing results table is a parse failure, since that means the
// catalog format itself changed.
func ParsePage(r io.Reader, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, &forms.ParseError{URL: pageURL, Reason: err.Error()}
	}

	table := doc.Find("table.picklist-dataTable")
	if table.Length() == 0 {
		return Page{}, &forms.ParseError{URL: pageURL, Reason: "results table not found"}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var page Page
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		switch classifyRow(row) {
		case rowHeader:
			if total, ok := totalFromHeader(row); ok {
				page.TotalRows = total
			}
		case rowData:
			entries := entriesFromRow(row, base)
			if len(entries) == 0 {
				page.DroppedRows++
				return
			}
			page.Entries = append(page.Entries, entries...)
		case rowUnrecognized:
			page.DroppedRows++
		}
	})

	return page, nil
}

func classifyRow(row *goquery.Selection) rowKind {
	if row.Find("th").Length() > 0 {
		return rowHeader
	}
	if !row.HasClass("even") && !row.HasClass("odd") {
		return rowUnrecognized
	}
	if row.Find("td").Length() == 0 {
		return rowUnrecognized
	}
	return rowData
}

// totalFromHeader reads the advertised result count out of the header cell,
// e.g. "Results: 1 - 200 of 1,234 files" -> 1234.
func totalFromHeader(row *goquery.Selection) (int, bool) {
	cell := row.Find("th.ShowByColumn")
	if cell.Length() == 0 {
		return 0, false
	}
	fields := strings.Fields(cell.Text())
	if len(fields) < 2 {
		return 0, false
	}
	raw := strings.ReplaceAll(fields[len(fields)-2], ",", "")
	total, err := strconv.Atoi(raw)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

// entriesFromRow recovers zero or more entries from one data row. A row
// contributes iff both a document link and a year token are recoverable;
// a range-style year cell inflates into one entry per covered year.
func entriesFromRow(row *goquery.Selection, base *url.URL) []forms.Entry {
	anchor := row.Find("a").First()
	href, ok := anchor.Attr("href")
	if !ok || href == "" {
		return nil
	}
	link := resolveLink(base, href)
	if link == "" {
		return nil
	}

	number := strings.Join(strings.Fields(anchor.Text()), " ")
	if number == "" {
		return nil
	}

	title := strings.TrimSpace(row.Find("td.MiddleCellSpacer").First().Text())
	years := yearsFromCell(row.Find("td.EndCellSpacer").First().Text())
	if len(years) == 0 {
		return nil
	}

	entries := make([]forms.Entry, 0, len(years))
	for _, year := range years {
		entries = append(entries, forms.Entry{
			FormNumber:   number,
			Year:         year,
			Title:        title,
			DocumentLink: link,
		})
	}
	return entries
}

func yearsFromCell(text string) []int {
	if m := yearRangePattern.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		if hi-lo > maxRangeSpan {
			return nil
		}
		years := make([]int, 0, hi-lo+1)
		for y := lo; y <= hi; y++ {
			years = append(years, y)
		}
		return years
	}
	if m := yearPattern.FindString(text); m != "" {
		year, _ := strconv.Atoi(m)
		return []int{year}
	}
	return nil
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
