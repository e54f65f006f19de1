// Package download fetches resolved image URLs with resty.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// DefaultMaxBytes caps an image body at 25 MiB.
const DefaultMaxBytes int64 = 25 << 20

var errTooLarge = errors.New("image exceeds size limit")

// Config controls the image client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	// CloudflareBypass wraps the transport with browser-like TLS and headers.
	CloudflareBypass bool
}

// Downloader implements harvest.Downloader.
type Downloader struct {
	client   *resty.Client
	maxBytes int64
	logger   *zap.Logger
}

// New builds a Downloader.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	client := resty.New()
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.SetHeader("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	client.SetTimeout(cfg.Timeout)

	return &Downloader{client: client, maxBytes: cfg.MaxBytes, logger: logger}
}

// Download GETs imageURL and returns its body. Non-2xx statuses, transport
// failures, empty bodies and oversized bodies are reported as DownloadError.
func (d *Downloader) Download(ctx context.Context, imageURL, referer string) (harvest.Asset, error) {
	req := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}

	start := time.Now()
	res, err := req.Get(imageURL)
	if err != nil {
		return harvest.Asset{}, &harvest.DownloadError{URL: imageURL, Err: fmt.Errorf("get image: %w", err)}
	}
	body := res.RawBody()
	defer func() {
		if body != nil {
			_ = body.Close()
		}
	}()

	if !res.IsSuccess() {
		return harvest.Asset{}, &harvest.DownloadError{URL: imageURL, StatusCode: res.StatusCode()}
	}

	data, err := d.readBody(body)
	if err != nil {
		return harvest.Asset{}, &harvest.DownloadError{URL: imageURL, StatusCode: res.StatusCode(), Err: err}
	}
	if len(data) == 0 {
		return harvest.Asset{}, &harvest.DownloadError{URL: imageURL, StatusCode: res.StatusCode(), Err: errors.New("empty body")}
	}

	asset := harvest.Asset{
		Body:        data,
		ContentType: contentType(res.Header()),
		FinalURL:    finalURL(res, imageURL),
	}
	d.logger.Debug("image downloaded",
		zap.String("image_url", imageURL),
		zap.String("content_type", asset.ContentType),
		zap.Int("bytes", len(data)),
		zap.Duration("dur", time.Since(start)),
	)
	return asset, nil
}

func (d *Downloader) readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, d.maxBytes)
	}
	return data, nil
}

func contentType(h http.Header) string {
	ct := h.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func finalURL(res *resty.Response, fallback string) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL.String()
	}
	return fallback
}
