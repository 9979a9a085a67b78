package bootstrap

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
)

const actionLogRetention = 30 * 24 * time.Hour

// Run loads guild configurations and runs every component until ctx is
// cancelled or one of them fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	c := b.Components

	if _, err := c.ConfigSync.Reload(ctx); err != nil {
		return fmt.Errorf("guild config load failed: %w", err)
	}
	if n, err := c.Database.PruneActions(ctx, time.Now().Add(-actionLogRetention)); err != nil {
		logging.Warn("[BOOT] Failed to prune moderation log: %v", err)
	} else if n > 0 {
		logging.Info("[BOOT] Pruned %d moderation log row(s)", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	c.Session.SetupEventHandlers(gctx, c.Engine, c.ConfigSync)

	g.Go(func() error { return c.Dispatcher.Run(gctx) })
	g.Go(func() error { return c.Sweep.Run(gctx) })
	g.Go(func() error {
		return c.ConfigSync.Run(gctx, b.Config.Moderation.ConfigPollInterval.Std(),
			func() { c.Watchdog.Heartbeat(configSyncComponent) })
	})
	g.Go(func() error { return c.Watchdog.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, b.Config.Metrics.Addr) })
	g.Go(func() error { return c.Session.Run(gctx) })

	logging.Info("[BOOT] All components started")
	return g.Wait()
}

// Shutdown releases what Run leaves open after it returns.
func (b *Bootstrap) Shutdown() error {
	logging.Info("[BOOT] Starting graceful shutdown...")
	var err error
	if b.Components != nil {
		if pending := b.Components.Registry.Len(); pending > 0 {
			logging.Warn("[BOOT] %d scheduled reversal(s) are lost on shutdown", pending)
		}
		err = b.Components.Database.Close()
	}
	logging.Info("[BOOT] Graceful shutdown complete")
	logging.Close()
	return err
}
