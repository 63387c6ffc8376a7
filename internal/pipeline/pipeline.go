// Package pipeline is the façade over the concurrent resolution pipeline:
// it owns the HTTP client lifecycle and exposes the two public operations,
// resolve-for-summary and resolve-for-download.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/download"
	collyfetcher "github.com/borshchevsky/tax-forms-scraper/internal/fetcher/colly"
	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
	"github.com/borshchevsky/tax-forms-scraper/internal/ratelimit"
	"github.com/borshchevsky/tax-forms-scraper/internal/resolver"
	"github.com/borshchevsky/tax-forms-scraper/internal/telemetry"
)

// EntryResolver maps one identifier to its catalog entries.
type EntryResolver interface {
	Resolve(ctx context.Context, identifier string) ([]forms.Entry, error)
}

// Downloader executes a set of download tasks.
type Downloader interface {
	Run(ctx context.Context, tasks []forms.DownloadTask) []forms.DownloadResult
}

// Config collects every knob the pipeline needs.
type Config struct {
	CatalogBaseURL string
	ResultsPerPage int
	UserAgent      string
	RespectRobots  bool
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxInFlight    int
	RateRPS        float64
	RateBurst      int
}

// Pipeline wires the resolver and downloader over one shared client. Each
// identifier resolves independently; the only shared resource is the
// client's admission gate.
type Pipeline struct {
	resolver   EntryResolver
	downloader Downloader
	client     *collyfetcher.Client
	logger     *zap.Logger
}

// New builds a Pipeline. Every invocation gets a run ID on its log fields.
// The caller must Close it to release connections.
func New(cfg Config, logger *zap.Logger) *Pipeline {
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateRPS,
		DefaultBurst: cfg.RateBurst,
	})
	retry := forms.NewExponentialRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax)
	client := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
		Timeout:       cfg.Timeout,
		MaxInFlight:   cfg.MaxInFlight,
	}, limiter, retry, logger)

	return &Pipeline{
		resolver: resolver.New(client, resolver.Config{
			BaseURL:        cfg.CatalogBaseURL,
			ResultsPerPage: cfg.ResultsPerPage,
		}, logger),
		downloader: download.NewFetcher(client, logger),
		client:     client,
		logger:     logger,
	}
}

// Close releases the pipeline's network resources.
func (p *Pipeline) Close() {
	p.client.Close()
}

// ResolveSummaries resolves a year-range summary per identifier with
// bounded parallelism. The result slice preserves input order and covers
// every input exactly once; one identifier's failure never affects another.
func (p *Pipeline) ResolveSummaries(ctx context.Context, identifiers []string) []forms.Resolution {
	results := make([]forms.Resolution, len(identifiers))

	var wg sync.WaitGroup
	for i, identifier := range identifiers {
		i, identifier := i, identifier
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.resolveSummary(ctx, identifier)
		}()
	}
	wg.Wait()

	return results
}

func (p *Pipeline) resolveSummary(ctx context.Context, identifier string) forms.Resolution {
	entries, err := p.resolver.Resolve(ctx, identifier)
	if err != nil {
		return p.failure(identifier, err)
	}
	summary, err := forms.Summarize(entries)
	if err != nil {
		return p.failure(identifier, err)
	}
	telemetry.ObserveOutcome(string(forms.KindSuccess))
	return forms.Resolution{
		Identifier: identifier,
		Kind:       forms.KindSuccess,
		Summary:    &summary,
	}
}

// ResolveDownloads resolves one identifier, keeps the entries inside the
// closed [startYear, endYear] interval, and fetches each selected document.
// Callers guarantee startYear <= endYear. An unknown identifier short
// circuits before any range work; an empty intersection is
// NotFoundForRange with no download issued.
func (p *Pipeline) ResolveDownloads(
	ctx context.Context,
	identifier string,
	startYear, endYear int,
	paths download.PathResolver,
) forms.Resolution {
	entries, err := p.resolver.Resolve(ctx, identifier)
	if err != nil {
		return p.failure(identifier, err)
	}

	tasks, err := download.SelectTasks(entries, startYear, endYear, paths)
	if err != nil {
		return p.failure(identifier, err)
	}

	telemetry.ObserveOutcome(string(forms.KindSuccess))
	return forms.Resolution{
		Identifier: identifier,
		Kind:       forms.KindSuccess,
		Downloads:  p.downloader.Run(ctx, tasks),
	}
}

func (p *Pipeline) failure(identifier string, err error) forms.Resolution {
	kind := forms.Classify(err)
	telemetry.ObserveOutcome(string(kind))
	return forms.Resolution{Identifier: identifier, Kind: kind, Err: err}
}
