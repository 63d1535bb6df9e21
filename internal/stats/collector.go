// Package stats periodically surfaces audit-log health onto Prometheus.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/metrics"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
)

// Collector polls the audit log on an interval and updates the stuck-pending
// gauge. Pending entries older than the threshold indicate a batch that never
// reached a terminal status; the core never auto-resolves them, it only makes
// them alertable.
type Collector struct {
	repo      repository.Repository
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a background collector.
func NewCollector(repo repository.Repository, interval, threshold time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		repo:      repo,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *Collector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	stuck, err := c.repo.CountStuckPending(ctx, c.threshold)
	if err != nil {
		c.logger.Warn("Failed to count stuck pending batches", slog.String("error", err.Error()))
		return
	}

	metrics.StuckPendingBatches.Set(float64(stuck))
	if stuck > 0 {
		c.logger.Warn("Stuck pending batches detected",
			slog.Int64("count", stuck),
			slog.Duration("threshold", c.threshold),
		)
	}
}

// Stop terminates the collector and waits for the loop to exit.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}
