package repository

import (
	"errors"
	"sort"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/metrics"
)

// sortLeaderboard orders by points desc, then user id asc.
func sortLeaderboard(entries []model.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// assignRanksWithTies gives equal points the same rank; ranks are consecutive.
func assignRanksWithTies(entries []model.LeaderboardEntry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Points != entries[i-1].Points {
			rank++
		}
		entries[i].Rank = rank
	}
}

// sortTrending orders by engagement desc, created_at desc, id asc.
func sortTrending(posts []model.Post) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// sortCandidates orders by engagement desc, created_at asc, id asc.
func sortCandidates(posts []model.Post) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// observe starts timing op; the returned func records latency and counts
// persistence failures found in *errp.
func observe(op string, errp *error) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
		if errors.Is(*errp, ErrStore) {
			metrics.RecordStoreError(op)
		}
	}
}
