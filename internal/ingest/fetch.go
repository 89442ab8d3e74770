package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

const (
	defaultMaxBodySize = 10 << 20 // 10MB
	defaultTimeout     = 30 * time.Second
	defaultParallelism = 2
	defaultDelay       = 500 * time.Millisecond
	defaultUserAgent   = "simplechat/1.0 (+https://github.com/pokhrel-dev/simplechat)"

	// resultKey carries the per-request result through colly's context so
	// the shared handlers can hand responses back to the Fetch caller.
	resultKey = "fetch_result"
)

// urlValidator defines the SSRF validation behavior required by Fetcher.
type urlValidator interface {
	Validate(rawURL string) error
	SafeTransport() *http.Transport
	ValidateRedirect(req *http.Request, via []*http.Request) error
}

// Page is a fetched HTTP document.
type Page struct {
	// URL is the final URL after redirects, which becomes the source
	// location so re-ingesting a moved page converges on one identity.
	URL         string
	ContentType string
	Body        []byte
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithMaxBodySize caps the response body size in bytes.
func WithMaxBodySize(n int) FetchOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetchOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithLimits bounds concurrent requests per domain and the pause between
// consecutive requests to the same domain.
func WithLimits(parallelism int, delay time.Duration) FetchOption {
	return func(f *Fetcher) {
		if parallelism > 0 {
			f.parallelism = parallelism
		}
		if delay >= 0 {
			f.delay = delay
		}
	}
}

// fetchResult is the mutable slot a single Fetch call shares with the
// collector handlers.
type fetchResult struct {
	page *Page
	err  error
}

// Fetcher downloads pages politely. Robots.txt is honored, per-domain
// parallelism and delay are limited, and every connection goes through
// the validator's SSRF-checking transport, including redirect targets.
//
// A Fetcher is safe for concurrent use; the per-domain limits apply
// across all concurrent Fetch calls.
type Fetcher struct {
	collector *colly.Collector
	validator urlValidator
	logger    log.Logger

	maxBodySize int
	timeout     time.Duration
	userAgent   string
	parallelism int
	delay       time.Duration
}

var _ PageFetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher that validates every URL with validator
// before and during the request.
func NewFetcher(validator urlValidator, logger log.Logger, opts ...FetchOption) (*Fetcher, error) {
	if validator == nil {
		return nil, errors.New("url validator is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	f := &Fetcher{
		validator:   validator,
		logger:      logger,
		maxBodySize: defaultMaxBodySize,
		timeout:     defaultTimeout,
		userAgent:   defaultUserAgent,
		parallelism: defaultParallelism,
		delay:       defaultDelay,
	}
	for _, opt := range opts {
		opt(f)
	}

	c := colly.NewCollector(
		colly.MaxBodySize(f.maxBodySize),
		colly.UserAgent(f.userAgent),
		// Re-ingesting a source fetches the same URL again.
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.timeout)
	c.WithTransport(validator.SafeTransport())
	c.SetRedirectHandler(validator.ValidateRedirect)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.parallelism,
		Delay:       f.delay,
	}); err != nil {
		return nil, fmt.Errorf("configure fetch limits: %w", err)
	}

	c.OnResponse(func(r *colly.Response) {
		res, ok := r.Ctx.GetAny(resultKey).(*fetchResult)
		if !ok {
			return
		}
		res.page = &Page{
			URL:         r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if res, ok := r.Ctx.GetAny(resultKey).(*fetchResult); ok {
			res.err = err
		}
	})

	f.collector = c
	return f, nil
}

// Fetch downloads a single page.
//
// The URL is validated before any connection is opened and ctx is checked
// before dispatch; the request itself is bounded by the configured
// timeout. Responses larger than the body cap arrive truncated by colly,
// and non-2xx statuses surface as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.validator.Validate(rawURL); err != nil {
		return nil, fmt.Errorf("validate url: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &fetchResult{}
	cctx := colly.NewContext()
	cctx.Put(resultKey, res)

	start := time.Now()
	if err := f.collector.Request(http.MethodGet, rawURL, nil, cctx, nil); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if res.err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, res.err)
	}
	if res.page == nil {
		return nil, fmt.Errorf("fetch %s: no response received", rawURL)
	}

	f.logger.Debug("page fetched",
		"url", res.page.URL,
		"bytes", len(res.page.Body),
		"duration", time.Since(start))
	return res.page, nil
}
