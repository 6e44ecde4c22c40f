package simfeed

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
)

type nominationKey struct {
	nominator int64
	post      string
}

// ExpectedLeaderboard is the board the bot must show after ingesting the
// whole dataset: one point per distinct (nominator, post) pair, self
// nominations excluded, dense ranks, ties by user id.
func (d *Dataset) ExpectedLeaderboard(limit int) []model.LeaderboardEntry {
	seen := make(map[nominationKey]struct{})
	points := make(map[int64]int)
	handles := make(map[int64]string)
	for _, m := range d.Mentions {
		parent, ok := d.Cast(m.Parent)
		if !ok || parent.Author.FID == m.Author.FID {
			continue
		}
		key := nominationKey{nominator: m.Author.FID, post: parent.Hash}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		points[parent.Author.FID]++
		handles[parent.Author.FID] = parent.Author.Username
	}

	entries := make([]model.LeaderboardEntry, 0, len(points))
	for id, p := range points {
		entries = append(entries, model.LeaderboardEntry{UserID: id, Handle: handles[id], Points: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Points != entries[i-1].Points {
			rank++
		}
		entries[i].Rank = rank
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// ExpectedWinner is the tagged post created in [start, end) with the most
// likes, oldest first on ties.
func (d *Dataset) ExpectedWinner(start, end time.Time) (Cast, bool) {
	var (
		best  Cast
		found bool
	)
	for _, p := range d.Posts {
		if !d.Tagged(p) || p.Timestamp.Before(start) || !p.Timestamp.Before(end) {
			continue
		}
		if !found || better(p, best) {
			best, found = p, true
		}
	}
	return best, found
}

// Tagged reports whether c carries the campaign tag.
func (d *Dataset) Tagged(c Cast) bool {
	tag := strings.ToLower(strings.TrimSpace(strings.TrimRight(d.Config.Tag, ".…")))
	return strings.Contains(strings.ToLower(c.Text), tag)
}

func better(a, b Cast) bool {
	if a.Likes != b.Likes {
		return a.Likes > b.Likes
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Hash < b.Hash
}
