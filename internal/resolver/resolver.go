// Package resolver maps one form identifier to its set of catalog entries.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/borshchevsky/tax-forms-scraper/internal/catalog"
	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
	"github.com/borshchevsky/tax-forms-scraper/internal/telemetry"
)

// PageFetcher retrieves one catalog page body.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Config controls catalog addressing.
type Config struct {
	BaseURL        string
	ResultsPerPage int
}

// Resolver issues the catalog search for an identifier, walks every results
// page, and keeps the rows whose displayed form number matches the query
// exactly (case-insensitive, whitespace-normalized).
type Resolver struct {
	fetcher PageFetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Resolver.
func New(fetcher PageFetcher, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 200
	}
	return &Resolver{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Resolve returns the matching entries for one identifier in catalog order.
// Zero matches is forms.ErrNotFound; a network failure after retries is a
// forms.FetchError carrying the identifier and last status.
func (r *Resolver) Resolve(ctx context.Context, identifier string) ([]forms.Entry, error) {
	query := forms.Normalize(identifier)

	first, err := r.fetchAndParse(ctx, identifier, catalog.SearchURL(r.cfg.BaseURL, query, 0, r.cfg.ResultsPerPage))
	if err != nil {
		return nil, err
	}

	pageCount := 1
	if first.TotalRows > r.cfg.ResultsPerPage {
		pageCount = (first.TotalRows + r.cfg.ResultsPerPage - 1) / r.cfg.ResultsPerPage
	}

	// Index-addressed so concatenation keeps catalog order no matter which
	// page fetch finishes first.
	perPage := make([][]forms.Entry, pageCount)
	perPage[0] = matchEntries(first.Entries, query)

	if pageCount > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i := 1; i < pageCount; i++ {
			i := i
			g.Go(func() error {
				url := catalog.SearchURL(r.cfg.BaseURL, query, i*r.cfg.ResultsPerPage, r.cfg.ResultsPerPage)
				page, err := r.fetchAndParse(gctx, identifier, url)
				if err != nil {
					return err
				}
				perPage[i] = matchEntries(page.Entries, query)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var entries []forms.Entry
	for _, pageEntries := range perPage {
		entries = append(entries, pageEntries...)
	}
	if len(entries) == 0 {
		r.logger.Info("identifier not found in catalog", zap.String("identifier", identifier))
		return nil, fmt.Errorf("resolve %q: %w", identifier, forms.ErrNotFound)
	}

	r.logger.Debug("identifier resolved",
		zap.String("identifier", identifier),
		zap.Int("entries", len(entries)),
		zap.Int("pages", pageCount))
	return entries, nil
}

func (r *Resolver) fetchAndParse(ctx context.Context, identifier, url string) (catalog.Page, error) {
	body, err := r.fetcher.FetchPage(ctx, url)
	if err != nil {
		var se *forms.StatusError
		status := 0
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return catalog.Page{}, &forms.FetchError{
			Identifier: identifier,
			URL:        url,
			StatusCode: status,
			Err:        err,
		}
	}

	page, err := catalog.ParsePage(bytes.NewReader(body), url)
	if err != nil {
		// ParseError passes through untouched: it signals an upstream
		// format change and must not be mistaken for a network failure.
		r.logger.Error("catalog page structure unrecognized",
			zap.String("identifier", identifier),
			zap.String("url", url),
			zap.Error(err))
		return catalog.Page{}, err
	}

	telemetry.ObserveDroppedRows(page.DroppedRows)
	if page.DroppedRows > 0 {
		r.logger.Debug("dropped unparseable listing rows",
			zap.String("url", url),
			zap.Int("rows", page.DroppedRows))
	}
	return page, nil
}

func matchEntries(entries []forms.Entry, query string) []forms.Entry {
	var matched []forms.Entry
	for _, e := range entries {
		if forms.Normalize(e.FormNumber) == query {
			matched = append(matched, e)
		}
	}
	return matched
}
