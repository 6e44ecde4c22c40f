package ingest

import (
	"time"

	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/internal/domain/dedupe"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithCampaignTag sets the phrase that marks campaign posts.
func WithCampaignTag(tag string) Option {
	return func(p *Pipeline) {
		p.tags = NewTagMatcher(tag)
	}
}

// WithDeduper sets the mention delivery deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.dedupe = d
		}
	}
}

// WithFormatter sets the message formatter.
func WithFormatter(f *announce.Formatter) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.formatter = f
		}
	}
}

// WithClock sets the clock used to decide the current day.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithCallTimeout bounds each resolver call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}
