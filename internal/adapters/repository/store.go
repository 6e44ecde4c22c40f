// Package repository defines the entity store and its implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
)

// Store owns users, posts, nominations and daily winners. Every write is
// atomic with respect to its own unique keys; reads never see a partial write.
type Store interface {
	// UpsertUser returns the existing user for id, refreshing the handle when
	// the new one is valid and free. New users fail with model.ErrInvalidHandle
	// or model.ErrHandleTaken.
	UpsertUser(ctx context.Context, id int64, handle string) (model.User, error)
	// UpsertPost inserts p or raises the stored engagement to max(old, new).
	// All other fields keep their first-seen values.
	UpsertPost(ctx context.Context, p model.Post) (model.Post, error)
	// RecordNomination stores n unless it is a self-nomination or a duplicate
	// (nominator, post) pair.
	RecordNomination(ctx context.Context, n model.Nomination) (model.NominationOutcome, error)
	// MarkDailyWinner records w unless the day already has a winner or the
	// user already won a day.
	MarkDailyWinner(ctx context.Context, w model.DailyWinner) (model.WinnerOutcome, error)

	GetUser(ctx context.Context, id int64) (model.User, bool, error)
	// UserByHandle returns the user currently holding handle.
	UserByHandle(ctx context.Context, handle string) (model.User, bool, error)
	GetPost(ctx context.Context, id string) (model.Post, bool, error)
	// Leaderboard ranks nominees by nomination count desc, user id asc.
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	DailyWinner(ctx context.Context, day model.Day) (model.DailyWinner, bool, error)
	// TopPostsSince returns posts created at or after since by engagement desc,
	// created_at desc.
	TopPostsSince(ctx context.Context, since time.Time, limit int) ([]model.Post, error)
	// CampaignPostsBetween returns campaign posts created in [start, end) by
	// engagement desc, created_at asc, id asc.
	CampaignPostsBetween(ctx context.Context, start, end time.Time) ([]model.Post, error)
	Stats(ctx context.Context) (model.Stats, error)

	Close() error
}

// normalizeTime keeps millisecond precision in UTC so every backend stores
// the same instant.
func normalizeTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
