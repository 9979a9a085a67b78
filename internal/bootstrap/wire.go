package bootstrap

import (
	"time"

	"go-modguard/internal/bot"
	"go-modguard/internal/config"
	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/dispatcher"
	"go-modguard/internal/logging"
	"go-modguard/internal/schedule"
	"go-modguard/internal/state"
	"go-modguard/internal/watchdog"
)

const (
	sweepComponent      = "sweep"
	configSyncComponent = "config_sync"
)

type Components struct {
	Database   *database.Database
	ConfigSync *database.ConfigSync
	Configs    *config.Store

	Session    *bot.Session
	Dispatcher *dispatcher.Dispatcher

	Trackers  *state.Trackers
	Registry  *schedule.Registry
	Debouncer *schedule.Debouncer
	Engine    *decision.Engine
	Sweep     *schedule.Sweep

	Watchdog *watchdog.Watchdog
}

func Wire(b *Bootstrap, db *database.Database) error {
	logging.Info("[BOOT] Wiring components...")
	cfg := b.Config

	session, err := bot.New(cfg.Bot)
	if err != nil {
		return err
	}

	httpPool := dispatcher.NewHTTPPool(cfg.Network.WorkerCount, cfg.Network.ActionTimeout.Std())
	rateLimiter := dispatcher.NewRateLimitMonitor()
	bans := dispatcher.NewBanRequestExecutor(httpPool, rateLimiter, cfg.Network.APIBaseURL, cfg.Bot.Token)
	platform := dispatcher.NewDiscordPlatform(session.Discord(), bans)

	opts := dispatcher.OptionsFromConfig(cfg.Network)
	opts.Recorder = db
	dispatch := dispatcher.New(platform, opts)

	configs := config.NewStore()
	trackers := state.NewTrackers()
	registry := schedule.NewRegistry()
	debouncer := schedule.NewDebouncer(cfg.Moderation.QuietPeriod.Std())

	engine := decision.NewEngine(configs, trackers, registry, debouncer, dispatch,
		decision.OptionsFromConfig(cfg.Moderation))

	wd := watchdog.NewWatchdog(cfg.Moderation.WatchdogInterval.Std())
	sweepInterval := cfg.Moderation.SweepInterval.Std()
	wd.RegisterComponent(sweepComponent, 5*max(sweepInterval, schedule.DefaultSweepInterval))
	wd.RegisterComponent(configSyncComponent,
		5*max(cfg.Moderation.ConfigPollInterval.Std(), database.DefaultConfigPollInterval))

	sweep := schedule.NewSweep(registry, debouncer, trackers, configs, dispatch, schedule.SweepOptions{
		Interval:  sweepInterval,
		Heartbeat: func(time.Time) { wd.Heartbeat(sweepComponent) },
	})

	b.Components = &Components{
		Database:   db,
		ConfigSync: database.NewConfigSync(db, configs),
		Configs:    configs,
		Session:    session,
		Dispatcher: dispatch,
		Trackers:   trackers,
		Registry:   registry,
		Debouncer:  debouncer,
		Engine:     engine,
		Sweep:      sweep,
		Watchdog:   wd,
	}

	logging.Info("[BOOT] Component wiring complete")
	return nil
}
