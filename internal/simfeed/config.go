package simfeed

import (
	"fmt"
	"time"
)

// Config controls the synthetic campaign.
type Config struct {
	Users    int     // accounts taking part
	Posts    int     // top-level posts, tagged or not
	Mentions int     // replies that nominate a post's author
	Tagged   float64 // share of posts carrying the campaign tag

	Tag       string // campaign tag placed at the start of tagged posts
	BotFID    int64  // account id mentions are addressed to
	BotHandle string

	Seed   uint64        // same seed, same dataset
	Now    time.Time     // newest possible timestamp
	Window time.Duration // posts are spread over [Now-Window, Now)
}

// DefaultConfig returns a small campaign that fits in one feed page.
func DefaultConfig() Config {
	return Config{
		Users:     12,
		Posts:     60,
		Mentions:  40,
		Tagged:    0.7,
		Tag:       "Today on Base I created...",
		BotFID:    9000,
		BotHandle: "theo",
		Seed:      1,
		Now:       time.Now().UTC().Truncate(time.Second),
		Window:    12 * time.Hour,
	}
}

// Validate checks the generator can honor the config.
func (c Config) Validate() error {
	switch {
	case c.Users < 1:
		return fmt.Errorf("%w: users must be at least 1", ErrInvalidConfig)
	case c.Posts < 1:
		return fmt.Errorf("%w: posts must be at least 1", ErrInvalidConfig)
	case c.Mentions < 0:
		return fmt.Errorf("%w: mentions must not be negative", ErrInvalidConfig)
	case c.Tagged < 0 || c.Tagged > 1:
		return fmt.Errorf("%w: tagged must be within [0,1]", ErrInvalidConfig)
	case c.Tag == "":
		return fmt.Errorf("%w: tag must not be empty", ErrInvalidConfig)
	case c.BotFID <= 0:
		return fmt.Errorf("%w: bot fid must be positive", ErrInvalidConfig)
	case c.Now.IsZero() || c.Window <= 0:
		return fmt.Errorf("%w: now and window must be set", ErrInvalidConfig)
	}
	return nil
}
