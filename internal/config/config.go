// Package config defines process configuration and how it is loaded.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CampaignTag is the keyword that marks campaign posts.
	CampaignTag string `koanf:"campaign_tag"`

	// ChannelID restricts the campaign search to one channel.
	ChannelID string `koanf:"channel_id"`

	// BotFID is the bot's account id; replies mentioning it are nominations.
	BotFID    int64  `koanf:"bot_fid"`
	BotHandle string `koanf:"bot_handle"`

	PollInterval        time.Duration `koanf:"poll_interval"`
	ErrorBackoff        time.Duration `koanf:"error_backoff"`
	LeaderboardInterval time.Duration `koanf:"leaderboard_interval"`
	HighlightInterval   time.Duration `koanf:"highlight_interval"`

	// CallTimeout bounds every fetch and publish call.
	CallTimeout time.Duration `koanf:"call_timeout"`

	// LeaderboardSize is how many entries the published leaderboard shows.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Timezone is the IANA zone that defines the campaign day.
	Timezone string `koanf:"timezone"`

	// StoreDriver is memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`

	// DedupeBackend is memory or redis.
	DedupeBackend string `koanf:"dedupe_backend"`
	DedupeSize    int    `koanf:"dedupe_size"`
	RedisAddr     string `koanf:"redis_addr"`

	OutboxSize       int `koanf:"outbox_size"`
	PublisherWorkers int `koanf:"publisher_workers"`

	FeedBaseURL  string        `koanf:"feed_base_url"`
	FeedAPIKey   string        `koanf:"feed_api_key"`
	FeedLookback time.Duration `koanf:"feed_lookback"`
	SignerUUID   string        `koanf:"signer_uuid"`

	// DryRun logs outbound messages instead of publishing them.
	DryRun bool `koanf:"dry_run"`

	// QuietStart delays the first leaderboard and highlight by a full
	// interval after startup.
	QuietStart bool `koanf:"quiet_start"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		CampaignTag:         "Today on Base I created...",
		ChannelID:           "base",
		BotHandle:           "theo",
		PollInterval:        time.Hour,
		ErrorBackoff:        time.Minute,
		LeaderboardInterval: 4 * time.Hour,
		HighlightInterval:   24 * time.Hour,
		CallTimeout:         30 * time.Second,
		LeaderboardSize:     10,
		MaxLeaderboardLimit: 100,
		Timezone:            "UTC",
		StoreDriver:         "sqlite",
		StoreDSN:            "creatorboard.db",
		DedupeBackend:       "memory",
		DedupeSize:          50_000,
		RedisAddr:           "localhost:6379",
		OutboxSize:          1024,
		PublisherWorkers:    2,
		FeedBaseURL:         "https://api.neynar.com",
		FeedLookback:        24 * time.Hour,
		DryRun:              true,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks values that would otherwise fail later at wiring time.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CampaignTag == "":
		return fmt.Errorf("%w: campaign_tag must not be empty", ErrInvalidConfig)
	case c.PollInterval <= 0, c.ErrorBackoff <= 0, c.LeaderboardInterval <= 0, c.HighlightInterval <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	case c.CallTimeout <= 0:
		return fmt.Errorf("%w: call_timeout must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.LeaderboardSize < 1 || c.LeaderboardSize > c.MaxLeaderboardLimit:
		return fmt.Errorf("%w: leaderboard_size must be between 1 and %d", ErrInvalidConfig, c.MaxLeaderboardLimit)
	case c.OutboxSize < 1:
		return fmt.Errorf("%w: outbox_size must be at least 1", ErrInvalidConfig)
	case c.PublisherWorkers < 1:
		return fmt.Errorf("%w: publisher_workers must be at least 1", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch c.DedupeBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis dedupe backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dedupe_backend %q", ErrInvalidConfig, c.DedupeBackend)
	}
	if !c.DryRun && c.SignerUUID == "" {
		return fmt.Errorf("%w: signer_uuid is required unless dry_run is set", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
