package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Bot        BotConfig        `json:"bot"`
	Moderation ModerationConfig `json:"moderation"`
	Network    NetworkConfig    `json:"network"`
	Storage    StorageConfig    `json:"storage"`
	Metrics    MetricsConfig    `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
}

type BotConfig struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
	// MessageCache bounds the per-channel message cache used to build
	// deletion snapshots.
	MessageCache int `json:"message_cache"`
}

type ModerationConfig struct {
	SweepInterval    Duration `json:"sweep_interval"`
	QuietPeriod      Duration `json:"quiet_period"`
	StaleAfter       Duration `json:"stale_after"`
	RegexCacheSize   int      `json:"regex_cache_size"`
	WatchdogInterval Duration `json:"watchdog_interval"`
	// ConfigPollInterval is how often stored guild configs are checked for
	// changes made while the bot runs.
	ConfigPollInterval Duration `json:"config_poll_interval"`
}

type NetworkConfig struct {
	WorkerCount   int      `json:"worker_count"`
	QueueSize     int      `json:"queue_size"`
	ActionTimeout Duration `json:"action_timeout"`
	// GuildRate is the sustained outbound actions per second per guild.
	GuildRate  float64 `json:"guild_rate"`
	GuildBurst int     `json:"guild_burst"`
	APIBaseURL string  `json:"api_base_url"`
}

type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

type MetricsConfig struct {
	Addr string `json:"addr"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Load reads path (when present), then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if clientID := os.Getenv("CLIENT_ID"); clientID != "" {
		cfg.Bot.ClientID = clientID
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Storage.DatabasePath = dbPath
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if workers := os.Getenv("WORKER_COUNT"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Network.WorkerCount = n
		}
	}
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			MessageCache: 200,
		},
		Moderation: ModerationConfig{
			SweepInterval:      Duration(2 * time.Second),
			QuietPeriod:        Duration(3 * time.Second),
			StaleAfter:         Duration(time.Hour),
			RegexCacheSize:     512,
			WatchdogInterval:   Duration(30 * time.Second),
			ConfigPollInterval: Duration(5 * time.Second),
		},
		Network: NetworkConfig{
			WorkerCount:   8,
			QueueSize:     4096,
			ActionTimeout: Duration(5 * time.Second),
			GuildRate:     5,
			GuildBurst:    10,
			APIBaseURL:    "https://discord.com/api/v10",
		},
		Storage: StorageConfig{
			DatabasePath: "modguard.db",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  "modguard.log",
		},
	}
}

// Duration is a time.Duration that reads and writes "10m" style strings.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
