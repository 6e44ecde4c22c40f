// Package scheduler drives polling cycles and timed announcements.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/internal/domain/ingest"
	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

const (
	defaultPollInterval        = time.Hour
	defaultErrorBackoff        = time.Minute
	defaultLeaderboardInterval = 4 * time.Hour
	defaultHighlightInterval   = 24 * time.Hour
	defaultCallTimeout         = 30 * time.Second
	defaultLeaderboardSize     = 10
	defaultCampaignTag         = "Today on Base I created..."
)

// State is the scheduler's position in a cycle.
type State int32

// Scheduler states.
const (
	Idle State = iota
	Fetching
	Ingesting
	Leaderboard
	Highlight
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ingesting:
		return "ingesting"
	case Leaderboard:
		return "leaderboard"
	case Highlight:
		return "highlight"
	case Sleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Fetcher reads the feed.
type Fetcher interface {
	FetchCampaignPosts(ctx context.Context, tag, cursor string) ([]model.RawPost, string, error)
	FetchMentions(ctx context.Context, accountID int64, cursor string) ([]model.RawMention, string, error)
}

// Ingester applies a fetched batch.
type Ingester interface {
	Ingest(ctx context.Context, batch ingest.Batch) (ingest.Result, error)
}

// Scorer provides what the timed announcements publish.
type Scorer interface {
	Today(now time.Time) model.Day
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	DailyHighlight(ctx context.Context, day model.Day) (model.Highlight, bool, error)
}

// Outbox accepts messages for publishing.
type Outbox interface {
	Enqueue(ctx context.Context, msg model.Message) bool
}

// Report describes one cycle.
type Report struct {
	ID          uuid.UUID     `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Result      ingest.Result `json:"result"`
	Leaderboard bool          `json:"leaderboard_published"`
	Highlight   bool          `json:"highlight_published"`
	Err         error         `json:"-"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State           string    `json:"state"`
	PostCursor      string    `json:"post_cursor"`
	MentionCursor   string    `json:"mention_cursor"`
	LastLeaderboard time.Time `json:"last_leaderboard"`
	LastHighlight   time.Time `json:"last_highlight"`
	LastCycle       time.Time `json:"last_cycle"`
	LastError       string    `json:"last_error,omitempty"`
}

type request struct {
	reply chan Report
}

const (
	loopNotStarted int32 = iota
	loopRunning
	loopStopped
)

// Scheduler runs one ingestion pass at a time. Timing state lives in its
// fields and is driven by the injected clock.
type Scheduler struct {
	fetcher   Fetcher
	ingester  Ingester
	scorer    Scorer
	outbox    Outbox
	formatter *announce.Formatter
	clock     clock.Clock
	log       logger.Logger

	tag                 string
	accountID           int64
	pollInterval        time.Duration
	errorBackoff        time.Duration
	leaderboardInterval time.Duration
	highlightInterval   time.Duration
	callTimeout         time.Duration
	leaderboardSize     int
	quietStart          bool

	state    atomic.Int32
	loop     atomic.Int32
	requests chan request
	stopped  chan struct{}

	// cycleMu serializes passes; mu guards the fields below.
	cycleMu         sync.Mutex
	mu              sync.RWMutex
	postCursor      string
	mentionCursor   string
	lastLeaderboard time.Time
	lastHighlight   time.Time
	lastCycle       time.Time
	lastErr         error
}

// New wires a scheduler.
func New(fetcher Fetcher, ingester Ingester, scorer Scorer, outbox Outbox, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:             fetcher,
		ingester:            ingester,
		scorer:              scorer,
		outbox:              outbox,
		formatter:           announce.NewFormatter(),
		clock:               clock.Real(),
		log:                 logger.Discard(),
		tag:                 defaultCampaignTag,
		pollInterval:        defaultPollInterval,
		errorBackoff:        defaultErrorBackoff,
		leaderboardInterval: defaultLeaderboardInterval,
		highlightInterval:   defaultHighlightInterval,
		callTimeout:         defaultCallTimeout,
		leaderboardSize:     defaultLeaderboardSize,
		requests:            make(chan request),
		stopped:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quietStart {
		now := s.clock.Now()
		s.lastLeaderboard, s.lastHighlight = now, now
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

// Status returns cursors and emission times.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		State:           s.State().String(),
		PostCursor:      s.postCursor,
		MentionCursor:   s.mentionCursor,
		LastLeaderboard: s.lastLeaderboard,
		LastHighlight:   s.lastHighlight,
		LastCycle:       s.lastCycle,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Run cycles until ctx ends. Failed cycles are logged and followed by the
// shorter backoff; Run only returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.loop.CompareAndSwap(loopNotStarted, loopRunning) {
		return errors.New("scheduler: Run called twice")
	}
	defer func() {
		s.loop.Store(loopStopped)
		close(s.stopped)
		s.setState(Idle)
	}()

	for {
		report := s.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := s.pollInterval
		if report.Err != nil {
			wait = s.errorBackoff
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// sleep waits for d, serving on-demand cycle requests meanwhile.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	s.setState(Sleeping)
	timer := s.clock.After(d)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer:
			return nil
		case req := <-s.requests:
			req.reply <- s.cycle(ctx)
			s.setState(Sleeping)
		}
	}
}

// RunIngestionCycle runs a pass on demand. While Run is active the request
// is handed to the loop so it never overlaps a scheduled pass.
func (s *Scheduler) RunIngestionCycle(ctx context.Context) (Report, error) {
	switch s.loop.Load() {
	case loopNotStarted:
		r := s.cycle(ctx)
		return r, r.Err
	case loopStopped:
		return Report{}, ErrStopped
	}
	req := request{reply: make(chan Report, 1)}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return Report{}, ErrStopped
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, r.Err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// RunOnce runs a single pass outside the loop.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	r := s.cycle(ctx)
	return r, r.Err
}

func (s *Scheduler) cycle(ctx context.Context) Report {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	defer s.setState(Idle)

	r := Report{ID: uuid.New(), StartedAt: s.clock.Now()}
	ctx = logger.ContextWith(ctx, logger.String("cycle_id", r.ID.String()))
	start := time.Now()

	r.Err = s.pass(ctx, &r)
	r.FinishedAt = s.clock.Now()
	ms := float64(time.Since(start).Milliseconds())

	s.mu.Lock()
	s.lastCycle = r.FinishedAt
	s.lastErr = r.Err
	s.mu.Unlock()

	if r.Err != nil {
		metrics.RecordCycle("error", ms)
		metrics.RecordErrorByComponent("scheduler", "cycle")
		s.log.Error(ctx, "cycle failed", logger.Error(r.Err))
		return r
	}
	metrics.RecordCycle("ok", ms)
	s.log.Info(ctx, "cycle finished",
		logger.Int("posts_upserted", r.Result.PostsUpserted),
		logger.Int("nominations", r.Result.Nominations),
		logger.Int("queued", r.Result.Queued),
		logger.Bool("leaderboard", r.Leaderboard),
		logger.Bool("highlight", r.Highlight))
	return r
}

func (s *Scheduler) pass(ctx context.Context, r *Report) error {
	s.setState(Fetching)
	batch, postCursor, mentionCursor, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	s.setState(Ingesting)
	r.Result, err = s.ingester.Ingest(ctx, batch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIngest, err)
	}
	s.mu.Lock()
	s.postCursor, s.mentionCursor = postCursor, mentionCursor
	s.mu.Unlock()

	now := s.clock.Now()
	if r.Result.Winner != nil {
		// The pipeline already queued the new winner's highlight.
		s.mu.Lock()
		s.lastHighlight = now
		s.mu.Unlock()
	}
	if s.due(&s.lastLeaderboard, s.leaderboardInterval, now) {
		s.setState(Leaderboard)
		ok, err := s.emitLeaderboard(ctx)
		s.afterEmission(ctx, "leaderboard", &s.lastLeaderboard, now, ok, err)
		r.Leaderboard = ok
	}
	if s.due(&s.lastHighlight, s.highlightInterval, now) {
		s.setState(Highlight)
		ok, err := s.emitHighlight(ctx, now)
		s.afterEmission(ctx, "highlight", &s.lastHighlight, now, ok, err)
		r.Highlight = ok
	}
	return nil
}

// fetch reads posts then mentions from the committed cursors. The new
// cursors are only committed after the batch is ingested.
func (s *Scheduler) fetch(ctx context.Context) (ingest.Batch, string, string, error) {
	s.mu.RLock()
	postCursor, mentionCursor := s.postCursor, s.mentionCursor
	s.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	posts, nextPosts, err := s.fetcher.FetchCampaignPosts(callCtx, s.tag, postCursor)
	cancel()
	if err != nil {
		return ingest.Batch{}, "", "", fmt.Errorf("campaign posts: %w", err)
	}
	callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
	mentions, nextMentions, err := s.fetcher.FetchMentions(callCtx, s.accountID, mentionCursor)
	cancel()
	if err != nil {
		return ingest.Batch{}, "", "", fmt.Errorf("mentions: %w", err)
	}
	return ingest.Batch{Posts: posts, Mentions: mentions}, nextPosts, nextMentions, nil
}

func (s *Scheduler) due(last *time.Time, interval time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return last.IsZero() || now.Sub(*last) >= interval
}

// afterEmission advances the emission time when something was published or
// there was nothing to publish; failures are retried on the next cycle.
func (s *Scheduler) afterEmission(ctx context.Context, kind string, last *time.Time, now time.Time, published bool, err error) {
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", kind)
		s.log.Warn(ctx, kind+" emission failed", logger.Error(err))
		return
	}
	if published {
		metrics.RecordEmission(kind)
	}
	if published || kind == "leaderboard" {
		s.mu.Lock()
		*last = now
		s.mu.Unlock()
	}
}

// emitLeaderboard queues the current leaderboard. An empty board counts
// as emitted without queueing anything.
func (s *Scheduler) emitLeaderboard(ctx context.Context) (bool, error) {
	entries, err := s.scorer.Leaderboard(ctx, s.leaderboardSize)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	msg := model.NewMessage(model.MessageLeaderboard, s.formatter.Leaderboard(entries), "")
	if !s.outbox.Enqueue(ctx, msg) {
		return false, errors.New("outbox rejected leaderboard")
	}
	return true, nil
}

// emitHighlight re-publishes today's recorded winner. Without a winner the
// highlight stays due.
func (s *Scheduler) emitHighlight(ctx context.Context, now time.Time) (bool, error) {
	h, ok, err := s.scorer.DailyHighlight(ctx, s.scorer.Today(now))
	if err != nil || !ok {
		return false, err
	}
	msg := model.NewMessage(model.MessageHighlight, s.formatter.Highlight(h.Post.AuthorHandle, h.Post.Body), "")
	if !s.outbox.Enqueue(ctx, msg) {
		return false, errors.New("outbox rejected highlight")
	}
	return true, nil
}
