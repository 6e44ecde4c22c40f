package service

import (
	"github.com/okian/creatorboard/internal/adapters/mq/worker"
	"github.com/okian/creatorboard/internal/adapters/repository"
	"github.com/okian/creatorboard/internal/domain/dedupe"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock injects the time source used by the pipeline and scheduler.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStore uses st instead of opening the configured store.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithFeed uses f instead of the HTTP feed client.
func WithFeed(f Feed) Option {
	return func(s *Service) { s.feed = f }
}

// WithPublisher uses p for outbound messages regardless of dry_run.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDeduper uses d instead of the configured dedupe backend.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) { s.deduper = d }
}
