// Package app builds the long-lived services of a harvest run from
// configuration, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/config"
	"github.com/JakeFAU/listing-image-harvester/internal/download"
	collyfetcher "github.com/JakeFAU/listing-image-harvester/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/listing-image-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
	"github.com/JakeFAU/listing-image-harvester/internal/headless/detector"
	"github.com/JakeFAU/listing-image-harvester/internal/id/uuid"
	"github.com/JakeFAU/listing-image-harvester/internal/logging"
	"github.com/JakeFAU/listing-image-harvester/internal/metrics"
	"github.com/JakeFAU/listing-image-harvester/internal/resolver"
	"github.com/JakeFAU/listing-image-harvester/internal/results/postgres"
	"github.com/JakeFAU/listing-image-harvester/internal/retry"
	"github.com/JakeFAU/listing-image-harvester/internal/storage/gcs"
	"github.com/JakeFAU/listing-image-harvester/internal/storage/local"
)

// App holds the services shared by every listing in a run. It is built once
// before the loop and closed once after it.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	RunID      string
	Fetcher    harvest.PageFetcher
	Resolver   harvest.ImageResolver
	Downloader harvest.Downloader
	Store      harvest.BlobStore
	// Results is nil unless db.dsn is set.
	Results harvest.ResultStore
	Retry   harvest.RetryPolicy
	Metrics *metrics.Collectors

	closers []func()
}

// New creates and initializes an App. It fails fast if any service that the
// run cannot do without, such as the browser or the image store, cannot start.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	l := logging.ForRun(logger, runID)
	a := &App{
		Config:   cfg,
		Logger:   l,
		RunID:    runID,
		Resolver: resolver.NewDefault(cfg.Resolver.MinDimension),
		Metrics:  metrics.New(),
	}
	baseDelay, maxDelay := cfg.RetryDelays()
	a.Retry = retry.NewExponentialPolicy(cfg.Retry.MaxAttempts, baseDelay, maxDelay)
	a.Downloader = download.New(download.Config{
		UserAgent:        cfg.Browser.UserAgent,
		Timeout:          cfg.DownloadTimeout(),
		MaxBytes:         cfg.Download.MaxBytes,
		CloudflareBypass: cfg.Download.CloudflareBypass,
	}, l.Named("download"))

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initResults(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initFetcher(); err != nil {
		a.Close()
		return nil, err
	}

	l.Info("application services initialized",
		zap.Bool("headless", cfg.Browser.Enabled),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("results_table", a.Results != nil),
	)
	return a, nil
}

func (a *App) initFetcher() error {
	cfg := a.Config
	detect := detector.NewHeuristic()
	if !cfg.Browser.Enabled {
		a.Logger.Info("headless browser disabled, using static fetcher")
		a.Fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   cfg.NavTimeout(),
		}, detect)
		return nil
	}
	fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		SettleDelay:       cfg.SettleDelay(),
		Headful:           !cfg.Browser.Headless,
	}, detect, a.Logger.Named("headless"))
	if err != nil {
		return fmt.Errorf("start headless browser: %w", err)
	}
	a.Fetcher = fetcher
	a.closers = append(a.closers, fetcher.Close)
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			_ = client.Close()
			return err
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close gcs client", zap.Error(err))
			}
		})
		a.Store = store
	default:
		store, err := local.New(local.Config{BaseDir: cfg.Output.ImageRoot})
		if err != nil {
			return fmt.Errorf("open image root: %w", err)
		}
		a.Store = store
	}
	return nil
}

func (a *App) initResults(ctx context.Context) error {
	if a.Config.DB.DSN == "" {
		return nil
	}
	store, err := postgres.NewResultStore(ctx, postgres.Config{
		DSN:      a.Config.DB.DSN,
		Table:    a.Config.DB.Table,
		MaxConns: a.Config.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	a.Results = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// Pipeline wires the services into a harvest pipeline.
func (a *App) Pipeline() *harvest.Pipeline {
	return harvest.NewPipeline(
		a.Fetcher,
		a.Resolver,
		a.Downloader,
		a.Store,
		a.Results,
		a.Retry,
		a.Metrics,
		harvest.Options{
			DefaultFolder: a.Config.Output.DefaultFolder,
			Overwrite:     a.Config.Storage.Overwrite,
			RunID:         a.RunID,
		},
		a.Logger,
	)
}

// PushMetrics sends the run's metrics when a Pushgateway is configured.
func (a *App) PushMetrics(ctx context.Context) error {
	if a.Config.Metrics.PushgatewayURL == "" {
		return nil
	}
	return a.Metrics.Push(ctx, a.Config.Metrics.PushgatewayURL, a.Config.Metrics.Job, a.RunID)
}

// Close shuts services down in reverse start order. It is safe to call twice.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
