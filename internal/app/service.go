// Package service wires the store, pipeline, scheduler and publisher into
// the operations the CLI and HTTP API expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/creatorboard/internal/adapters/feed"
	"github.com/okian/creatorboard/internal/adapters/mq/queue"
	"github.com/okian/creatorboard/internal/adapters/mq/worker"
	"github.com/okian/creatorboard/internal/adapters/repository"
	"github.com/okian/creatorboard/internal/config"
	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/internal/domain/dedupe"
	"github.com/okian/creatorboard/internal/domain/ingest"
	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/internal/domain/scoring"
	"github.com/okian/creatorboard/internal/scheduler"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

// Feed is everything the bot reads from the platform.
type Feed interface {
	scheduler.Fetcher
	ingest.Resolver
}

// Stats is the GET /stats payload.
type Stats struct {
	Store     model.Stats      `json:"store"`
	Scheduler scheduler.Status `json:"scheduler"`
	Outbox    int              `json:"outbox_length"`
	Dedupe    int64            `json:"dedupe_size"`
	DryRun    bool             `json:"dry_run"`
}

// Service implements the bot's operations.
type Service struct {
	mu sync.Mutex

	cfg    *config.Config
	clock  clock.Clock
	logger logger.Logger

	// Core components
	store     repository.Store
	feed      Feed
	publisher worker.Publisher
	deduper   dedupe.Deduper
	redis     *redis.Client
	engine    *scoring.Engine
	outbox    *queue.InMemoryQueue
	pool      *worker.Pool
	pipeline  *ingest.Pipeline
	scheduler *scheduler.Scheduler

	ownsStore bool
	started   bool
}

// New builds a Service from cfg. Components not injected via options are
// created from the configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg, clock: clock.Real(), logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		s.store, err = repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN,
			repository.WithLogger(s.logger.Named("store")))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		s.ownsStore = true
	}
	if s.feed == nil {
		s.feed = s.feedClient()
	}
	if s.publisher == nil {
		if cfg.DryRun {
			s.publisher = feed.NewLogPublisher(s.logger.Named("dry-run"))
		} else {
			s.publisher = s.feedClient()
		}
	}
	if s.deduper == nil {
		s.deduper = s.newDeduper()
	}

	formatter := announce.NewFormatter(announce.WithBotHandle(cfg.BotHandle))
	s.engine = scoring.NewEngine(s.store,
		scoring.WithLocation(loc),
		scoring.WithDefaultLimit(cfg.LeaderboardSize),
		scoring.WithMaxLimit(cfg.MaxLeaderboardLimit))
	s.outbox = queue.NewInMemoryQueue(queue.WithCapacity(cfg.OutboxSize))
	s.pool = worker.NewPool(cfg.PublisherWorkers, s.outbox, s.publisher,
		worker.WithCallTimeout(cfg.CallTimeout),
		worker.WithLogger(s.logger))
	s.pipeline = ingest.NewPipeline(s.store, s.engine, s.feed, s.outbox,
		ingest.WithCampaignTag(cfg.CampaignTag),
		ingest.WithDeduper(s.deduper),
		ingest.WithFormatter(formatter),
		ingest.WithClock(s.clock),
		ingest.WithCallTimeout(cfg.CallTimeout),
		ingest.WithLogger(s.logger.Named("ingest")))
	s.scheduler = scheduler.New(s.feed, s.pipeline, s.engine, s.outbox,
		scheduler.WithClock(s.clock),
		scheduler.WithCampaignTag(cfg.CampaignTag),
		scheduler.WithAccountID(cfg.BotFID),
		scheduler.WithPollInterval(cfg.PollInterval),
		scheduler.WithErrorBackoff(cfg.ErrorBackoff),
		scheduler.WithLeaderboardInterval(cfg.LeaderboardInterval),
		scheduler.WithHighlightInterval(cfg.HighlightInterval),
		scheduler.WithCallTimeout(cfg.CallTimeout),
		scheduler.WithLeaderboardSize(cfg.LeaderboardSize),
		scheduler.WithQuietStart(cfg.QuietStart),
		scheduler.WithFormatter(formatter),
		scheduler.WithLogger(s.logger.Named("scheduler")))
	return s, nil
}

func (s *Service) feedClient() *feed.Client {
	return feed.NewClient(
		feed.WithBaseURL(s.cfg.FeedBaseURL),
		feed.WithAPIKey(s.cfg.FeedAPIKey),
		feed.WithChannel(s.cfg.ChannelID),
		feed.WithSignerUUID(s.cfg.SignerUUID),
		feed.WithTimeout(s.cfg.CallTimeout),
		feed.WithLookback(s.cfg.FeedLookback),
		feed.WithLogger(s.logger.Named("feed")),
	)
}

func (s *Service) newDeduper() dedupe.Deduper {
	if s.cfg.DedupeBackend == "redis" {
		s.redis = redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
		return dedupe.NewRedisDeduper(s.redis, dedupe.WithLogger(s.logger.Named("dedupe")))
	}
	return dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
}

// Start launches the publisher pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "creatorboard service started",
		logger.String("store", s.cfg.StoreDriver),
		logger.String("dedupe", s.cfg.DedupeBackend),
		logger.Int("publishers", s.cfg.PublisherWorkers),
		logger.Bool("dry_run", s.cfg.DryRun))
	return nil
}

// Run drives the polling loop until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return s.scheduler.Run(ctx)
}

// Stop drains queued messages, then releases the store and redis client.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(ctx, "stopping creatorboard service...")
	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain outbox: %w", err))
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.ownsStore = false
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		s.redis = nil
	}
	s.started = false
	s.logger.Info(ctx, "creatorboard service stopped")
	return errors.Join(errs...)
}

// RunIngestionCycle runs one polling pass now. It is queued behind any
// pass already in flight.
func (s *Service) RunIngestionCycle(ctx context.Context) (scheduler.Report, error) {
	return s.scheduler.RunIngestionCycle(ctx)
}

// GetLeaderboard returns the top nominees; limit is clamped to the
// configured bounds.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return s.engine.Leaderboard(ctx, limit)
}

// GetHighlights returns the most engaging posts since the given time.
func (s *Service) GetHighlights(ctx context.Context, since time.Time, limit int) ([]model.Post, error) {
	return s.engine.Trending(ctx, since, limit)
}

// DailyWinner returns the recorded winner for day with its post. An empty
// day means today.
func (s *Service) DailyWinner(ctx context.Context, day string) (model.Highlight, bool, error) {
	d := s.engine.Today(s.clock.Now())
	if day != "" {
		parsed, err := model.ParseDay(day)
		if err != nil {
			return model.Highlight{}, false, fmt.Errorf("%w: %w", ErrInvalidDay, err)
		}
		d = parsed
	}
	return s.engine.DailyHighlight(ctx, d)
}

// GetStats returns store counts and scheduler state.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	outboxLen := s.outbox.Len()
	metrics.UpdateOutboxSize(outboxLen)
	return Stats{
		Store:     st,
		Scheduler: s.scheduler.Status(),
		Outbox:    outboxLen,
		Dedupe:    s.deduper.Size(),
		DryRun:    s.cfg.DryRun,
	}, nil
}

// Today returns the current campaign day.
func (s *Service) Today() model.Day { return s.engine.Today(s.clock.Now()) }
