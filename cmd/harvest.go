package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/catalog"
	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
	"github.com/JakeFAU/listing-image-harvester/internal/report"
)

const metricsPushTimeout = 10 * time.Second

// newHarvestCmd creates the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Download the primary image of every listing in the catalog",
		Long: `Loads the catalog, processes every listing in order and writes the summary.
Listings that fail are logged and skipped; the command still exits 0. It exits
non-zero when the catalog cannot be read, a service cannot start, or the
summary cannot be written.`,
		Args: cobra.NoArgs,
		RunE: runHarvestCommand,
	}
	cmd.Flags().String("input", "", "listing catalog JSON (default gallery.json)")
	cmd.Flags().String("output", "", "summary JSON path (default gallery_summary.json)")
	cmd.Flags().String("img-root", "", "image output root (default ebay_by_title)")
	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	// PersistentPostRun is skipped when RunE fails; Close is idempotent.
	defer appInstance.Close()
	cfg := appInstance.Config
	logger := appInstance.Logger

	cat, err := catalog.Load(cfg.Input.Path, cfg.Output.DefaultFolder, logger.Named("catalog"))
	if err != nil {
		return err
	}
	appInstance.Metrics.ObserveSkipped(cat.Skipped)
	logger.Info("starting harvest",
		zap.Int("listings", len(cat.Listings)),
		zap.Bool("overwrite", cfg.Storage.Overwrite),
	)

	acc := harvest.NewAccumulator()
	runErr := appInstance.Pipeline().Run(cmd.Context(), cat.Listings, acc)

	// The partial summary is still written when the run is interrupted.
	if err := report.Write(cfg.Output.SummaryPath, acc.Records()); err != nil {
		return err
	}
	logger.Info("summary written",
		zap.String("output", cfg.Output.SummaryPath),
		zap.Int("saved", acc.Len()),
		zap.Int("listings", len(cat.Listings)),
	)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), metricsPushTimeout)
	defer cancel()
	if err := appInstance.PushMetrics(pushCtx); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("harvest: %w", runErr)
	}
	return runErr
}
