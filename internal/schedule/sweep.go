package schedule

import (
	"context"
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/detectors"
	"go-modguard/internal/dispatcher"
	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
	"go-modguard/internal/state"
)

const DefaultSweepInterval = 2 * time.Second

// SweepStats summarises one sweep pass.
type SweepStats struct {
	Reversals int
	Flushes   int
	Refills   int
	Pruned    int
}

// Sweep is the single periodic driver for scheduled work. It only decides
// what is due; the platform calls run on the dispatcher.
type Sweep struct {
	registry  *Registry
	debouncer *Debouncer
	slowmode  *detectors.SlowmodeLimiter
	trackers  *state.Trackers
	configs   *config.Store
	actions   dispatcher.Actions
	interval  time.Duration
	now       func() time.Time
	heartbeat func(time.Time)
}

type SweepOptions struct {
	Interval time.Duration
	Now      func() time.Time
	// Heartbeat is called after every pass.
	Heartbeat func(time.Time)
}

func NewSweep(registry *Registry, debouncer *Debouncer, trackers *state.Trackers, configs *config.Store, actions dispatcher.Actions, opts SweepOptions) *Sweep {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweep{
		registry:  registry,
		debouncer: debouncer,
		slowmode:  detectors.NewSlowmodeLimiter(trackers),
		trackers:  trackers,
		configs:   configs,
		actions:   actions,
		interval:  opts.Interval,
		now:       opts.Now,
		heartbeat: opts.Heartbeat,
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweep) Run(ctx context.Context) error {
	logging.Info("[SWEEP] Started with interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("[SWEEP] Stopped")
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one pass at the current time.
func (s *Sweep) Tick() SweepStats {
	start := time.Now()
	now := s.now()
	var stats SweepStats

	for _, e := range s.registry.TakeDue(now) {
		logging.Debug("[SWEEP] Reversing %s for %s in guild %s (entry %s)",
			e.Punishment.Kind, e.Key.MemberID, e.Key.GuildID, e.ID)
		s.actions.ReversePunishment(e.Key.GuildID, e.Key.MemberID, e.Punishment)
		stats.Reversals++
	}

	for _, b := range s.debouncer.TakeDue(now) {
		stats.Flushes++
		metrics.RecordBatchFlush(b.Size())
		cfg, ok := s.configs.Lookup(b.Key.GuildID)
		if !ok || cfg.ReportChannelID == "" {
			logging.Debug("[SWEEP] Dropping deletion batch of %d for guild %s: no report channel", b.Size(), b.Key.GuildID)
			continue
		}
		s.actions.PostReport(b.Key.GuildID, cfg.ReportChannelID, BatchReport(b, now))
	}

	stats.Refills = s.slowmode.Sweep(now, s.configs.Lookup)
	stats.Pruned = s.trackers.Prune(now)

	metrics.SetRegistryEntries(s.registry.Len())
	metrics.SetTrackedMembers(s.trackers.MemberCount())
	metrics.ObserveSweep(start)
	if s.heartbeat != nil {
		s.heartbeat(now)
	}
	return stats
}
