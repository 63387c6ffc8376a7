// Package collyfetcher implements the catalog HTTP client using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
	"github.com/borshchevsky/tax-forms-scraper/internal/telemetry"
)

// Config controls client behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxInFlight   int
}

// RateLimiter paces requests to one host.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Client fetches catalog pages through a Colly collector and binary
// payloads through the shared transport. Every request passes the rate
// limiter and the admission gate first; the gate is the global in-flight
// ceiling shared by both request kinds.
type Client struct {
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
	httpClient    *http.Client
	gate          *gate
	limiter       RateLimiter
	retry         forms.RetryPolicy
	logger        *zap.Logger
}

// New builds a Client. The caller owns the lifecycle and must Close it.
func New(cfg Config, limiter RateLimiter, retry forms.RetryPolicy, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := newHTTPTransport()
	// Revisits are routine here: retries refetch the same URL and duplicate
	// identifiers resolve independently. The collector stays synchronous
	// (the default); colly v2.1.0's Async option ignores its argument, so
	// Async(false) would actually enable async mode.
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.WithTransport(transport)
	// The collector is configured once: clones share the underlying HTTP
	// backend, so per-request mutation would race with sibling requests.
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		httpClient:    &http.Client{Transport: transport},
		gate:          newGate(cfg.MaxInFlight),
		limiter:       limiter,
		retry:         retry,
		logger:        logger,
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// FetchPage executes a single HTTP GET for a catalog page, retrying per the
// policy. A non-2xx status after retries surfaces as a forms.StatusError.
func (c *Client) FetchPage(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	for {
		body, err := c.fetchPageOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if !c.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		telemetry.ObserveRetry()
		c.logger.Warn("retrying catalog fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if werr := sleep(ctx, c.retry.Backoff(attempt)); werr != nil {
			return nil, werr
		}
		attempt++
	}
}

// pageResult is owned by the visit goroutine until it lands on the done
// channel; after an abandoned visit nothing else may touch it.
type pageResult struct {
	body   []byte
	status int
	err    error
}

func (c *Client) fetchPageOnce(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}
	if err := c.gate.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.release()

	start := time.Now()
	done := make(chan pageResult, 1)
	go func() {
		var res pageResult
		collector := c.baseCollector.Clone()
		collector.OnResponse(func(r *colly.Response) {
			res.status = r.StatusCode
			res.body = append([]byte(nil), r.Body...)
		})
		collector.OnError(func(r *colly.Response, err error) {
			if r != nil {
				res.status = r.StatusCode
			}
			res.err = fmt.Errorf("colly response failed: %w", err)
		})
		if err := collector.Visit(url); err != nil && res.err == nil {
			res.err = fmt.Errorf("colly visit failed: %w", err)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		telemetry.ObserveCatalogPage("canceled", time.Since(start))
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case res := <-done:
		telemetry.ObserveCatalogPage(pageStatusLabel(res.status, res.err), time.Since(start))
		if res.err != nil {
			if res.status != 0 && (res.status < 200 || res.status >= 300) {
				return nil, &forms.StatusError{URL: url, StatusCode: res.status}
			}
			return nil, res.err
		}
		return res.body, nil
	}
}

// FetchBinary streams one document payload into dst. Retries only apply
// before the first byte is written; a failure mid-copy is terminal and the
// caller discards whatever reached dst.
func (c *Client) FetchBinary(ctx context.Context, url string, dst io.Writer) (int64, error) {
	attempt := 0
	for {
		written, err := c.fetchBinaryOnce(ctx, url, dst)
		if err == nil {
			return written, nil
		}
		if written > 0 || !c.retry.ShouldRetry(err, attempt) {
			return written, err
		}
		telemetry.ObserveRetry()
		c.logger.Warn("retrying document fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if werr := sleep(ctx, c.retry.Backoff(attempt)); werr != nil {
			return 0, werr
		}
		attempt++
	}
}

func (c *Client) fetchBinaryOnce(ctx context.Context, url string, dst io.Writer) (int64, error) {
	if err := c.limiter.Wait(ctx, url); err != nil {
		return 0, err
	}
	if err := c.gate.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.gate.release()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveDownload("error", 0, time.Since(start))
		return 0, fmt.Errorf("fetch document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.ObserveDownload(strconv.Itoa(resp.StatusCode), 0, time.Since(start))
		return 0, &forms.StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		telemetry.ObserveDownload("error", written, time.Since(start))
		return written, fmt.Errorf("stream document: %w", err)
	}
	telemetry.ObserveDownload("ok", written, time.Since(start))
	return written, nil
}

func pageStatusLabel(status int, err error) string {
	if status != 0 {
		return strconv.Itoa(status)
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
