package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"go-modguard/internal/bootstrap"
	"go-modguard/internal/config"
	"go-modguard/internal/database"
	"go-modguard/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "modguard",
		Usage: "chat moderation enforcement bot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.json", Usage: "path to the JSON config file"},
			&cli.StringFlag{Name: "database", EnvVars: []string{"DATABASE_PATH"}, Usage: "SQLite database path"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to Discord and enforce moderation rules",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "metrics-addr", Usage: "address for the /metrics endpoint"}},
				Action: runBot,
			},
			{
				Name:      "guild-set",
				Usage:     "store a guild moderation config from a JSON file",
				ArgsUsage: "<file>",
				Action:    setGuild,
			},
			{
				Name:  "guild-edit",
				Usage: "change individual settings of a guild's stored moderation config",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "guild", Required: true},
					&cli.BoolFlag{Name: "enabled"},
					&cli.StringFlag{Name: "report-channel"},
					&cli.StringFlag{Name: "mute-role"},
					&cli.StringSliceFlag{Name: "privileged-role"},
				},
				Action: editGuild,
			},
			{
				Name:  "actions",
				Usage: "print recent moderation actions for a guild",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "guild", Required: true},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: listActions,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if path := c.String("database"); path != "" {
		cfg.Storage.DatabasePath = path
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	return cfg, nil
}

func runBot(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	b := bootstrap.New(cfg)
	if err := b.Initialize(); err != nil {
		return err
	}
	defer b.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = b.Run(ctx)
	logging.Info("[MAIN] Shutdown signal received")
	return err
}

func setGuild(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: modguard guild-set <file>", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	g := config.DefaultGuildModeration("")
	if err := json.Unmarshal(data, g); err != nil {
		return fmt.Errorf("decode guild config: %w", err)
	}
	if g.GuildID == "" {
		return cli.Exit("guild_id is required", 2)
	}

	db, err := database.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SaveGuild(c.Context, g); err != nil {
		return err
	}
	fmt.Printf("stored moderation config for guild %s\n", g.GuildID)
	return nil
}

func editGuild(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	guildID := c.String("guild")
	sync := database.NewConfigSync(db, config.NewStore())
	if err := sync.EnsureGuild(c.Context, guildID); err != nil {
		return err
	}
	g, err := sync.Update(c.Context, guildID, func(g *config.GuildModeration) {
		if c.IsSet("enabled") {
			g.Enabled = c.Bool("enabled")
		}
		if c.IsSet("report-channel") {
			g.ReportChannelID = c.String("report-channel")
		}
		if c.IsSet("mute-role") {
			g.MuteRoleID = c.String("mute-role")
		}
		if c.IsSet("privileged-role") {
			g.PrivilegedRoles = c.StringSlice("privileged-role")
		}
	})
	if err != nil {
		return fmt.Errorf("guild %s: %w", guildID, err)
	}
	fmt.Printf("updated moderation config for guild %s (enabled=%t, report channel %q)\n",
		g.GuildID, g.Enabled, g.ReportChannelID)
	return nil
}

func listActions(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	logs, err := db.RecentActions(ctx, c.String("guild"), c.Int("limit"))
	if err != nil {
		return err
	}
	for _, l := range logs {
		verb := "apply"
		if l.Reversal {
			verb = "reverse"
		}
		line := fmt.Sprintf("%s  %-7s %-10s member=%s", time.UnixMilli(l.CreatedAt).Format(time.RFC3339), verb, l.Kind, l.MemberID)
		if l.DurationMS > 0 {
			line += " for " + (time.Duration(l.DurationMS) * time.Millisecond).String()
		}
		if l.Error != "" {
			line += " error=" + l.Error
		}
		fmt.Println(line)
	}
	return nil
}
