package harvest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options controls pipeline behavior.
type Options struct {
	DefaultFolder string
	Overwrite     bool
	RunID         string
}

// Pipeline runs listings through fetch, resolve, download and write, one at a time.
type Pipeline struct {
	fetcher    PageFetcher
	resolver   ImageResolver
	downloader Downloader
	store      BlobStore
	results    ResultStore
	retry      RetryPolicy
	observer   Observer
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline wires the stages together. results, retry and observer are optional.
func NewPipeline(
	fetcher PageFetcher,
	resolver ImageResolver,
	downloader Downloader,
	store BlobStore,
	results ResultStore,
	retry RetryPolicy,
	observer Observer,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultFolder == "" {
		opts.DefaultFolder = DefaultFolder
	}
	return &Pipeline{
		fetcher:    fetcher,
		resolver:   resolver,
		downloader: downloader,
		store:      store,
		results:    results,
		retry:      retry,
		observer:   observer,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes listings in order and appends one record per saved image to acc.
// Item failures are logged and skipped. The only error returned is the
// context's, when the run is interrupted between items.
func (p *Pipeline) Run(ctx context.Context, listings []ListingRecord, acc *Accumulator) error {
	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run interrupted",
				zap.Int("processed", i),
				zap.Int("remaining", len(listings)-i),
				zap.Error(err),
			)
			return fmt.Errorf("run interrupted: %w", err)
		}

		start := time.Now()
		logger := p.logger.With(zap.String("id", listing.ID), zap.String("ebay_url", listing.URL))
		logger.Info("processing listing", zap.Int("index", i), zap.Int("total", len(listings)))

		record, err := p.processListing(ctx, listing, logger)
		outcome := Outcome(err)
		p.observeItem(outcome, time.Since(start))
		if err != nil {
			logger.Warn("listing skipped", zap.String("outcome", outcome), zap.Error(err))
			continue
		}
		acc.Append(record)
	}
	return nil
}

func (p *Pipeline) processListing(ctx context.Context, listing ListingRecord, logger *zap.Logger) (ResultRecord, error) {
	page, err := p.fetchPage(ctx, listing.URL, logger)
	if err != nil {
		return ResultRecord{}, err
	}

	resolved, err := p.resolver.Resolve(page)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("resolve image: %w", err)
	}
	logger.Info("image resolved", zap.String("strategy", resolved.Strategy), zap.String("image_url", resolved.URL))
	if p.observer != nil {
		p.observer.ObserveStrategy(resolved.Strategy)
	}

	asset, err := p.download(ctx, resolved.URL, page.BaseURL(), logger)
	if err != nil {
		return ResultRecord{}, err
	}

	objectPath := ObjectPath(listing, p.opts.DefaultFolder, ExtensionFor(asset.ContentType, resolved.URL))
	savedPath, err := p.write(ctx, objectPath, asset, logger)
	if err != nil {
		return ResultRecord{}, err
	}

	digest := digestOf(asset.Body)
	record := ResultRecord{
		ID:        listing.ID,
		URL:       listing.URL,
		SavedPath: savedPath,
		ImageURL:  resolved.URL,
	}
	logger.Info("image saved",
		zap.String("saved_path", savedPath),
		zap.String("sha256", digest),
		zap.Int("bytes", len(asset.Body)),
	)
	p.storeResult(ctx, record, resolved.Strategy, digest, len(asset.Body), logger)
	return record, nil
}

func (p *Pipeline) fetchPage(ctx context.Context, rawURL string, logger *zap.Logger) (Page, error) {
	var page Page
	err := p.withRetry(ctx, "fetch", logger, func(ctx context.Context) error {
		fetched, err := p.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return asNavigationError(rawURL, err)
		}
		page = fetched
		return nil
	})
	return page, err
}

func (p *Pipeline) download(ctx context.Context, imageURL, referer string, logger *zap.Logger) (Asset, error) {
	var asset Asset
	err := p.withRetry(ctx, "download", logger, func(ctx context.Context) error {
		downloaded, err := p.downloader.Download(ctx, imageURL, referer)
		if err != nil {
			var downloadErr *DownloadError
			if errors.As(err, &downloadErr) {
				return err
			}
			return &DownloadError{URL: imageURL, Err: err}
		}
		asset = downloaded
		return nil
	})
	if err == nil && p.observer != nil {
		p.observer.ObserveBytes(len(asset.Body))
	}
	return asset, err
}

func (p *Pipeline) write(ctx context.Context, objectPath string, asset Asset, logger *zap.Logger) (string, error) {
	if !p.opts.Overwrite {
		uri, exists, err := p.store.Exists(ctx, objectPath)
		if err != nil {
			return "", &WriteError{Path: objectPath, Err: err}
		}
		if exists {
			logger.Info("keeping existing image", zap.String("saved_path", uri))
			return uri, nil
		}
	}
	uri, err := p.store.PutObject(ctx, objectPath, asset.ContentType, bytes.NewReader(asset.Body))
	if err != nil {
		return "", &WriteError{Path: objectPath, Err: err}
	}
	return uri, nil
}

func (p *Pipeline) storeResult(
	ctx context.Context,
	record ResultRecord,
	strategy string,
	digest string,
	size int,
	logger *zap.Logger,
) {
	if p.results == nil {
		return
	}
	stored := StoredResult{
		ResultRecord: record,
		Strategy:     strategy,
		SHA256:       digest,
		Bytes:        size,
		RunID:        p.opts.RunID,
		HarvestedAt:  p.now(),
	}
	if err := p.results.StoreResult(ctx, stored); err != nil {
		logger.Warn("store result failed", zap.Error(err))
	}
}

// withRetry runs op until it succeeds or the retry policy gives up.
func (p *Pipeline) withRetry(ctx context.Context, stage string, logger *zap.Logger, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.retry == nil || ctx.Err() != nil || !p.retry.ShouldRetry(err, attempt) {
			return err
		}
		wait := p.retry.Backoff(attempt)
		logger.Info("retrying stage",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (p *Pipeline) observeItem(outcome string, duration time.Duration) {
	if p.observer != nil {
		p.observer.ObserveItem(outcome, duration)
	}
}

func asNavigationError(rawURL string, err error) error {
	var (
		navErr     *NavigationError
		blockedErr *BlockedError
	)
	if errors.As(err, &navErr) || errors.As(err, &blockedErr) {
		return err
	}
	return &NavigationError{URL: rawURL, Err: err}
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
