package harvest

import (
	"context"
	"io"
	"time"
)

// PageFetcher loads a listing page and returns its snapshot.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// ImageResolver picks the primary image of a loaded page.
type ImageResolver interface {
	Resolve(page Page) (ResolvedImage, error)
}

// Downloader fetches image bytes.
type Downloader interface {
	Download(ctx context.Context, imageURL, referer string) (Asset, error)
}

// BlobStore persists image bytes and reports where they landed.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	Exists(ctx context.Context, path string) (string, bool, error)
}

// ResultStore records successful items outside the summary file.
type ResultStore interface {
	StoreResult(ctx context.Context, result StoredResult) error
}

// RetryPolicy decides whether and when a failed stage is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Observer receives per-item accounting.
type Observer interface {
	ObserveItem(outcome string, duration time.Duration)
	ObserveStrategy(strategy string)
	ObserveBytes(n int)
}
