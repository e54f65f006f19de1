// Package headless loads listing pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultSettleDelay       = 2500 * time.Millisecond
)

// imageMetricsJS lists every <img> with the size the browser decoded it at.
const imageMetricsJS = `Array.from(document.images).map(function (img) {
	return {
		src: img.currentSrc || img.src || "",
		srcset: img.getAttribute("srcset") || "",
		width: img.naturalWidth || 0,
		height: img.naturalHeight || 0
	};
})`

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	// Headful disables headless mode, which helps when debugging challenges.
	Headful bool
}

// BlockDetector recognizes challenge pages.
type BlockDetector interface {
	Detect(page harvest.Page) (string, bool)
}

// Fetcher implements harvest.PageFetcher with one browser shared across the
// run and a fresh tab per page.
type Fetcher struct {
	cfg           Config
	detector      BlockDetector
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedp starts the browser. Close must be called to shut it down.
func NewChromedp(cfg Config, detector BlockDetector, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	logger.Info("headless browser started", zap.Duration("nav_timeout", cfg.NavigationTimeout))

	return &Fetcher{
		cfg:           cfg,
		detector:      detector,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts down the browser and its allocator.
func (f *Fetcher) Close() {
	if f == nil {
		return
	}
	f.browserCancel()
	f.allocCancel()
}

// Fetch opens a tab, loads rawURL, waits for the page to settle and snapshots it.
// The tab is closed before returning.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.navTimeout())
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	snap, err := f.runHeadless(taskCtx, rawURL)
	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("navigation timed out after %s: %w", f.navTimeout(), context.DeadlineExceeded)
		}
		return harvest.Page{}, &harvest.NavigationError{URL: rawURL, Err: err}
	}

	status, responseURL := meta.snapshotWithFallbacks(rawURL, snap.finalURL)
	page := harvest.Page{
		URL:          rawURL,
		FinalURL:     responseURL,
		StatusCode:   status,
		HTML:         []byte(snap.html),
		Images:       snap.images,
		UsedHeadless: true,
		Duration:     time.Since(start),
	}
	if f.detector != nil {
		if reason, blocked := f.detector.Detect(page); blocked {
			return harvest.Page{}, &harvest.BlockedError{URL: rawURL, Reason: reason}
		}
	}
	if status >= http.StatusBadRequest {
		return harvest.Page{}, &harvest.NavigationError{URL: rawURL, StatusCode: status}
	}
	f.logger.Debug("page loaded",
		zap.String("url", rawURL),
		zap.String("final_url", page.FinalURL),
		zap.Int("status", status),
		zap.Int("images", len(page.Images)),
		zap.Duration("dur", page.Duration),
	)
	return page, nil
}

type snapshot struct {
	html     string
	finalURL string
	images   []harvest.ImageInfo
}

func (f *Fetcher) runHeadless(ctx context.Context, rawURL string) (snapshot, error) {
	var snap snapshot
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.SettleDelay))
	}
	actions = append(actions,
		chromedp.Location(&snap.finalURL),
		chromedp.OuterHTML("html", &snap.html, chromedp.ByQuery),
		chromedp.Evaluate(imageMetricsJS, &snap.images),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return snapshot{}, fmt.Errorf("chromedp run: %w", err)
	}
	return snap, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// forwardCancel cancels the task when the caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// responseMeta keeps the last document response seen in the tab, so a
// redirect chain reports the status of the page actually shown.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()
	switch {
	case finalURL != "":
		url = finalURL
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
