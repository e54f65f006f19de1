// Package metrics exposes Prometheus collectors for a harvest run and pushes
// them to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// Collectors holds the run's collectors on a private registry so that runs
// and tests never share state.
type Collectors struct {
	registry     *prometheus.Registry
	itemsTotal   *prometheus.CounterVec
	strategies   *prometheus.CounterVec
	bytesTotal   prometheus.Counter
	itemDuration prometheus.Histogram
}

// New registers the harvester collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collectors{
		registry: reg,
		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Listings processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		strategies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_strategy_total",
				Help: "Images resolved, labeled by the strategy that found them.",
			},
			[]string{"strategy"},
		),
		bytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_image_bytes_total",
				Help: "Total image bytes downloaded.",
			},
		),
		itemDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_item_duration_seconds",
				Help:    "Histogram of per-listing processing time.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveItem records one processed listing.
func (c *Collectors) ObserveItem(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.itemsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.itemDuration.Observe(duration.Seconds())
	}
}

// ObserveSkipped counts catalog entries dropped before the run started.
func (c *Collectors) ObserveSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.itemsTotal.WithLabelValues(harvest.OutcomeSkippedInput).Add(float64(n))
}

// ObserveStrategy increments the strategy counter.
func (c *Collectors) ObserveStrategy(strategy string) {
	if c == nil {
		return
	}
	c.strategies.WithLabelValues(strategy).Inc()
}

// ObserveBytes adds downloaded image bytes.
func (c *Collectors) ObserveBytes(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesTotal.Add(float64(n))
}

// Push sends every collector to the Pushgateway at url under job.
func (c *Collectors) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(c.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
