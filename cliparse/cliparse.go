// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

const (
	DefaultPort         = 3318
	DefaultCircleLimit  = 10
	DefaultScheduleTime = "17:00"
	DefaultTimezone     = "America/New_York"
	DefaultOpenDelay    = 10 * time.Second
	DefaultResetTimeout = 30 * time.Second
	DefaultDMRate       = 5.0
	DefaultArtifactDir  = "artifacts"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// Messaging bridge
	BridgeURL    string
	BridgeSecret string
	ChannelID    string
	ScopeID      string
	DMRate       float64

	// Game
	CircleLimit  int
	ScheduleTime string
	Timezone     string
	OpenDelay    time.Duration
	ResetTimeout time.Duration
	PromptsFile  string
	ArtifactDir  string
	RedisAddr    string

	LogLevel  string
	LogFormat string
}

// ParseFlags validates flags and fills unset values from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("circle-sketch", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.BridgeURL, "bridge-url", "", "Messaging bridge base URL (empty logs messages instead)")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address for the scheduled fire guard")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.BridgeSecret, "bridge-secret", "", "Bridge signing secret (prefer env)")

	// Game
	fs.StringVar(&cfg.ChannelID, "channel", "", "Channel for game announcements")
	fs.StringVar(&cfg.ScopeID, "scope", "", "Roster scope (server or guild id)")
	fs.IntVar(&cfg.CircleLimit, "limit", 0, "Maximum circle size")
	fs.StringVar(&cfg.ScheduleTime, "time", "", "Daily close time, HH:MM")
	fs.StringVar(&cfg.Timezone, "tz", "", "IANA time zone of the schedule")
	fs.DurationVar(&cfg.OpenDelay, "open-delay", 0, "Delay between scheduled close and open")
	fs.DurationVar(&cfg.ResetTimeout, "reset-timeout", 0, "How long a reset confirmation stays valid")
	fs.StringVar(&cfg.PromptsFile, "prompts", "", "YAML file with drawing themes")
	fs.StringVar(&cfg.ArtifactDir, "artifacts", "", "Directory for cached drawings")
	fs.Float64Var(&cfg.DMRate, "dm-rate", 0, "Outbound bridge requests per second")

	fs.StringVar(&cfg.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", DefaultPort)
		if err != nil {
			return Config{}, errors.New("invalid PORT env variable")
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	envString(&cfg.DatabaseType, "DATABASE_TYPE", "sqlite")

	envString(&cfg.BridgeURL, "BRIDGE_URL", "")
	envString(&cfg.RedisAddr, "REDIS_ADDR", "")

	// Secrets - MUST be provided
	envString(&cfg.BridgeSecret, "BRIDGE_SECRET", "")
	if cfg.BridgeSecret == "" {
		return Config{}, errors.New("BRIDGE_SECRET required")
	}

	envString(&cfg.ChannelID, "GAME_CHANNEL_ID", "")
	if cfg.ChannelID == "" {
		return Config{}, errors.New("GAME_CHANNEL_ID required")
	}
	envString(&cfg.ScopeID, "SCOPE_ID", "default")

	if cfg.CircleLimit == 0 {
		limit, err := envInt("CIRCLE_LIMIT", DefaultCircleLimit)
		if err != nil || limit < 1 {
			return Config{}, errors.New("invalid CIRCLE_LIMIT env variable")
		}
		cfg.CircleLimit = limit
	}
	if cfg.CircleLimit < 1 {
		return Config{}, errors.New("circle limit must be positive")
	}

	envString(&cfg.ScheduleTime, "SCHEDULED_GAME_TIME", DefaultScheduleTime)
	envString(&cfg.Timezone, "TIMEZONE", DefaultTimezone)

	if cfg.OpenDelay == 0 {
		d, err := envDuration("OPEN_DELAY", DefaultOpenDelay)
		if err != nil {
			return Config{}, errors.New("invalid OPEN_DELAY env variable")
		}
		cfg.OpenDelay = d
	}
	if cfg.ResetTimeout == 0 {
		d, err := envDuration("RESET_TIMEOUT", DefaultResetTimeout)
		if err != nil {
			return Config{}, errors.New("invalid RESET_TIMEOUT env variable")
		}
		cfg.ResetTimeout = d
	}
	if cfg.OpenDelay <= 0 || cfg.ResetTimeout <= 0 {
		return Config{}, errors.New("durations must be positive")
	}

	envString(&cfg.PromptsFile, "PROMPTS_FILE", "")
	envString(&cfg.ArtifactDir, "ARTIFACT_DIR", DefaultArtifactDir)

	if cfg.DMRate == 0 {
		if s := os.Getenv("DM_RATE"); s != "" {
			r, err := strconv.ParseFloat(s, 64)
			if err != nil || r <= 0 {
				return Config{}, errors.New("invalid DM_RATE env variable")
			}
			cfg.DMRate = r
		} else {
			cfg.DMRate = DefaultDMRate
		}
	}

	envString(&cfg.LogLevel, "LOG_LEVEL", "info")
	envString(&cfg.LogFormat, "LOG_FORMAT", "text")

	return cfg, nil
}

// envString fills an unset value from the environment, then the default.
func envString(dst *string, key, def string) {
	if *dst != "" {
		return
	}
	*dst = os.Getenv(key)
	if *dst == "" {
		*dst = def
	}
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
