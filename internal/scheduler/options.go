package scheduler

import (
	"time"

	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithCampaignTag sets the keyword passed to the post search.
func WithCampaignTag(tag string) Option {
	return func(s *Scheduler) {
		if tag != "" {
			s.tag = tag
		}
	}
}

// WithAccountID sets the bot account whose mentions are polled.
func WithAccountID(id int64) Option {
	return func(s *Scheduler) { s.accountID = id }
}

// WithPollInterval sets the sleep between successful cycles.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithErrorBackoff sets the sleep after a failed cycle.
func WithErrorBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.errorBackoff = d
		}
	}
}

// WithLeaderboardInterval sets how often the leaderboard is published.
func WithLeaderboardInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.leaderboardInterval = d
		}
	}
}

// WithHighlightInterval sets how often the daily highlight is published.
func WithHighlightInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.highlightInterval = d
		}
	}
}

// WithCallTimeout bounds each fetch call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithLeaderboardSize sets how many entries the published leaderboard shows.
func WithLeaderboardSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithQuietStart treats both announcements as just published when the
// scheduler is built, so a restart waits a full interval before posting.
func WithQuietStart(quiet bool) Option {
	return func(s *Scheduler) { s.quietStart = quiet }
}

// WithFormatter sets the message formatter.
func WithFormatter(f *announce.Formatter) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.formatter = f
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}
