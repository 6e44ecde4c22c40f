// Package scoring derives rankings and daily winners from store state.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultLimit    = 10
	defaultMaxLimit = 100
)

// Reader is the read side of the entity store used for scoring.
type Reader interface {
	GetPost(ctx context.Context, id string) (model.Post, bool, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	DailyWinner(ctx context.Context, day model.Day) (model.DailyWinner, bool, error)
	TopPostsSince(ctx context.Context, since time.Time, limit int) ([]model.Post, error)
	CampaignPostsBetween(ctx context.Context, start, end time.Time) ([]model.Post, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLocation sets the zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithDefaultLimit sets the limit used when callers pass zero.
func WithDefaultLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// WithMaxLimit caps caller-supplied limits.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// Engine computes derived views. It holds no state of its own; every answer
// comes from the store at call time.
type Engine struct {
	store        Reader
	loc          *time.Location
	defaultLimit int
	maxLimit     int
}

// NewEngine creates a scoring engine over store.
func NewEngine(store Reader, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		loc:          time.UTC,
		defaultLimit: defaultLimit,
		maxLimit:     defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxLimit < e.defaultLimit {
		e.maxLimit = e.defaultLimit
	}
	return e
}

// Location returns the zone used for calendar days.
func (e *Engine) Location() *time.Location { return e.loc }

// Today returns the calendar day containing now.
func (e *Engine) Today(now time.Time) model.Day { return model.DayOf(now, e.loc) }

func (e *Engine) clamp(limit int) int {
	if limit <= 0 {
		return e.defaultLimit
	}
	if limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

// Leaderboard ranks nominees by points desc, user id asc.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	entries, err := e.store.Leaderboard(ctx, e.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

// Trending returns posts created since start by engagement desc, newest first on ties.
func (e *Engine) Trending(ctx context.Context, since time.Time, limit int) ([]model.Post, error) {
	posts, err := e.store.TopPostsSince(ctx, since, e.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	return posts, nil
}

// DailyCandidate returns the leading campaign post of day: highest engagement,
// then earliest, then lowest id.
func (e *Engine) DailyCandidate(ctx context.Context, day model.Day) (model.Post, bool, error) {
	start, end, err := day.Bounds(e.loc)
	if err != nil {
		return model.Post{}, false, err
	}
	posts, err := e.store.CampaignPostsBetween(ctx, start, end)
	if err != nil {
		return model.Post{}, false, fmt.Errorf("daily candidate: %w", err)
	}
	if len(posts) == 0 {
		return model.Post{}, false, nil
	}
	return posts[0], true, nil
}

// DailyHighlight returns the recorded winner of day with its post.
func (e *Engine) DailyHighlight(ctx context.Context, day model.Day) (model.Highlight, bool, error) {
	w, ok, err := e.store.DailyWinner(ctx, day)
	if err != nil || !ok {
		return model.Highlight{}, false, wrapIf("daily highlight", err)
	}
	p, ok, err := e.store.GetPost(ctx, w.PostID)
	if err != nil || !ok {
		return model.Highlight{}, false, wrapIf("daily highlight", err)
	}
	return model.Highlight{Winner: w, Post: p}, true, nil
}

func wrapIf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
