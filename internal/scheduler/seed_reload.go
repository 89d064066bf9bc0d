package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
	"github.com/MrSnakeDoc/textsync/internal/sources/seed"
)

// SeedReloader applies the seed file at startup, on every tick and whenever
// a value arrives on the manual trigger channel.
type SeedReloader struct {
	loader        *seed.Loader
	applier       *seed.Applier
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewSeedReloader creates a seed reloader. A non-positive interval disables
// periodic reloads; manual triggers still work.
func NewSeedReloader(
	seedFile string,
	target seed.Target,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		applier:       seed.NewApplier(target, nil),
		logger:        log.With(logger.String("worker", "seed_reloader")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start applies the seed once and returns its error, then keeps reloading
// in the background.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if err := sr.Reload(ctx); err != nil {
		close(sr.done)
		return fmt.Errorf("initial seed failed: %w", err)
	}

	go func() {
		defer close(sr.done)

		var tick <-chan time.Time
		if sr.interval > 0 {
			ticker := time.NewTicker(sr.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload seed", logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual seed reload triggered")
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload seed", logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader and waits for an in-flight reload to finish.
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
	<-sr.done
}

// Reload loads the seed file and applies it.
func (sr *SeedReloader) Reload(ctx context.Context) error {
	f, err := sr.loader.Load()
	if err != nil {
		metrics.IncSeedApply(false)
		return fmt.Errorf("failed to load seed: %w", err)
	}

	res, err := sr.applier.Apply(ctx, f)
	if err != nil {
		metrics.IncSeedApply(false)
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	metrics.IncSeedApply(true)

	sr.logger.Info("seed applied",
		logger.Int("users", res.Users),
		logger.Int("sets", res.Sets),
		logger.Int("shortcuts", res.Shortcuts),
		logger.Int("shortcuts_changed", res.ShortcutsChanged),
		logger.Int("shortcuts_removed", res.ShortcutsRemoved))
	return nil
}
