// Package collyfetcher loads listing pages over plain HTTP with gocolly. It is
// the fallback when the headless browser is disabled; no script runs, so image
// sizes come only from declared attributes.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// BlockDetector recognizes challenge pages.
type BlockDetector interface {
	Detect(page harvest.Page) (string, bool)
}

// Fetcher implements harvest.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	detector      BlockDetector
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState is filled in by the collector callbacks.
type fetchState struct {
	page       harvest.Page
	statusCode int
	err        error
}

// New builds a Fetcher.
func New(cfg Config, detector BlockDetector) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		detector:      detector,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET of the listing page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	state := &fetchState{}
	collector := f.buildCollector(rawURL, time.Now(), state)

	if err := f.runCollector(ctx, collector, rawURL); err != nil {
		return harvest.Page{}, &harvest.NavigationError{URL: rawURL, StatusCode: state.statusCode, Err: err}
	}
	if state.err != nil {
		return harvest.Page{}, &harvest.NavigationError{URL: rawURL, StatusCode: state.statusCode, Err: state.err}
	}

	page := state.page
	if f.detector != nil {
		if reason, blocked := f.detector.Detect(page); blocked {
			return harvest.Page{}, &harvest.BlockedError{URL: rawURL, Reason: reason}
		}
	}
	if page.StatusCode >= http.StatusBadRequest {
		return harvest.Page{}, &harvest.NavigationError{URL: rawURL, StatusCode: page.StatusCode}
	}
	return page, nil
}

func (f *Fetcher) buildCollector(rawURL string, start time.Time, state *fetchState) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	f.configureCollectorHooks(collector, rawURL, start, state)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, rawURL string, start time.Time, state *fetchState) {
	hooks.OnResponse(func(r *colly.Response) {
		state.statusCode = r.StatusCode
		state.page = harvest.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			state.statusCode = r.StatusCode
		}
		state.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
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
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
