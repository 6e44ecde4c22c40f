package repository

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

type nominationKey struct {
	nominatorID int64
	postID      string
}

// snapshot is immutable once published.
type snapshot struct {
	users       map[int64]model.User
	handles     map[string]int64
	posts       map[string]model.Post
	nominations map[nominationKey]model.Nomination
	winners     map[model.Day]model.DailyWinner
}

// MemoryStore keeps all entities in process. Writers serialize on mu and
// publish a new snapshot; readers load the current snapshot without locking.
type MemoryStore struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
	log  logger.Logger
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := newSettings(opts)
	s := &MemoryStore{log: cfg.log}
	s.snap.Store(&snapshot{
		users:       map[int64]model.User{},
		handles:     map[string]int64{},
		posts:       map[string]model.Post{},
		nominations: map[nominationKey]model.Nomination{},
		winners:     map[model.Day]model.DailyWinner{},
	})
	return s
}

func (s *MemoryStore) load() *snapshot { return s.snap.Load() }

func (s *MemoryStore) UpsertUser(ctx context.Context, id int64, handle string) (u model.User, err error) {
	defer observe("upsert_user", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	if existing, ok := cur.users[id]; ok {
		if handle == existing.Handle || model.ValidateHandle(handle) != nil {
			return existing, nil
		}
		if _, taken := cur.handles[handle]; taken {
			return existing, nil
		}
		next := *cur
		next.users = maps.Clone(cur.users)
		next.handles = maps.Clone(cur.handles)
		delete(next.handles, existing.Handle)
		existing.Handle = handle
		next.users[id] = existing
		next.handles[handle] = id
		s.snap.Store(&next)
		s.log.Debug(ctx, "user handle refreshed", logger.Int64("user_id", id), logger.String("handle", handle))
		return existing, nil
	}

	if err := model.ValidateHandle(handle); err != nil {
		return model.User{}, err
	}
	if _, taken := cur.handles[handle]; taken {
		return model.User{}, fmt.Errorf("%w: %q", model.ErrHandleTaken, handle)
	}
	u = model.User{ID: id, Handle: handle}
	next := *cur
	next.users = maps.Clone(cur.users)
	next.handles = maps.Clone(cur.handles)
	next.users[id] = u
	next.handles[handle] = id
	s.snap.Store(&next)
	return u, nil
}

func (s *MemoryStore) UpsertPost(_ context.Context, p model.Post) (out model.Post, err error) {
	defer observe("upsert_post", &err)()
	if p.ID == "" {
		return model.Post{}, fmt.Errorf("%w: empty post id", model.ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	if existing, ok := cur.posts[p.ID]; ok {
		if p.Engagement <= existing.Engagement {
			return existing, nil
		}
		existing.Engagement = p.Engagement
		next := *cur
		next.posts = maps.Clone(cur.posts)
		next.posts[p.ID] = existing
		s.snap.Store(&next)
		return existing, nil
	}
	if _, ok := cur.users[p.AuthorID]; !ok {
		return model.Post{}, fmt.Errorf("%w: post %s author %d", model.ErrUnknownReference, p.ID, p.AuthorID)
	}
	p.CreatedAt = normalizeTime(p.CreatedAt)
	next := *cur
	next.posts = maps.Clone(cur.posts)
	next.posts[p.ID] = p
	s.snap.Store(&next)
	return p, nil
}

func (s *MemoryStore) RecordNomination(_ context.Context, n model.Nomination) (out model.NominationOutcome, err error) {
	defer observe("record_nomination", &err)()
	if n.NominatorID == n.NomineeID {
		return model.NominationSelf, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	key := nominationKey{nominatorID: n.NominatorID, postID: n.PostID}
	if _, ok := cur.nominations[key]; ok {
		return model.NominationDuplicate, nil
	}
	_, okNominator := cur.users[n.NominatorID]
	_, okNominee := cur.users[n.NomineeID]
	_, okPost := cur.posts[n.PostID]
	if !okNominator || !okNominee || !okPost {
		return 0, fmt.Errorf("%w: nomination %d->%d on %s", model.ErrUnknownReference, n.NominatorID, n.NomineeID, n.PostID)
	}
	n.CreatedAt = normalizeTime(n.CreatedAt)
	next := *cur
	next.nominations = maps.Clone(cur.nominations)
	next.nominations[key] = n
	s.snap.Store(&next)
	return model.NominationRecorded, nil
}

func (s *MemoryStore) MarkDailyWinner(_ context.Context, w model.DailyWinner) (out model.WinnerOutcome, err error) {
	defer observe("mark_daily_winner", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	if _, ok := cur.winners[w.Day]; ok {
		return model.WinnerAlreadySet, nil
	}
	for _, prev := range cur.winners {
		if prev.UserID == w.UserID {
			return model.WinnerAlreadySet, nil
		}
	}
	if _, ok := cur.users[w.UserID]; !ok {
		return 0, fmt.Errorf("%w: winner user %d", model.ErrUnknownReference, w.UserID)
	}
	if _, ok := cur.posts[w.PostID]; !ok {
		return 0, fmt.Errorf("%w: winner post %s", model.ErrUnknownReference, w.PostID)
	}
	w.CreatedAt = normalizeTime(w.CreatedAt)
	next := *cur
	next.winners = maps.Clone(cur.winners)
	next.winners[w.Day] = w
	s.snap.Store(&next)
	return model.WinnerRecorded, nil
}

func (s *MemoryStore) UserByHandle(_ context.Context, handle string) (model.User, bool, error) {
	cur := s.load()
	id, ok := cur.handles[handle]
	if !ok {
		return model.User{}, false, nil
	}
	return cur.users[id], true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (model.User, bool, error) {
	u, ok := s.load().users[id]
	return u, ok, nil
}

func (s *MemoryStore) GetPost(_ context.Context, id string) (model.Post, bool, error) {
	p, ok := s.load().posts[id]
	return p, ok, nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) (out []model.LeaderboardEntry, err error) {
	defer observe("leaderboard", &err)()
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	cur := s.load()
	points := make(map[int64]int)
	for _, n := range cur.nominations {
		points[n.NomineeID]++
	}
	out = make([]model.LeaderboardEntry, 0, len(points))
	for id, p := range points {
		out = append(out, model.LeaderboardEntry{UserID: id, Handle: cur.users[id].Handle, Points: p})
	}
	sortLeaderboard(out)
	if len(out) > limit {
		out = out[:limit]
	}
	assignRanksWithTies(out)
	return out, nil
}

func (s *MemoryStore) DailyWinner(_ context.Context, day model.Day) (model.DailyWinner, bool, error) {
	w, ok := s.load().winners[day]
	return w, ok, nil
}

func (s *MemoryStore) TopPostsSince(_ context.Context, since time.Time, limit int) (out []model.Post, err error) {
	defer observe("top_posts_since", &err)()
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	since = normalizeTime(since)
	out = []model.Post{}
	for _, p := range s.load().posts {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	sortTrending(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CampaignPostsBetween(_ context.Context, start, end time.Time) ([]model.Post, error) {
	start, end = normalizeTime(start), normalizeTime(end)
	out := []model.Post{}
	for _, p := range s.load().posts {
		if p.Campaign && !p.CreatedAt.Before(start) && p.CreatedAt.Before(end) {
			out = append(out, p)
		}
	}
	sortCandidates(out)
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (model.Stats, error) {
	cur := s.load()
	st := model.Stats{
		Users:        len(cur.users),
		Posts:        len(cur.posts),
		Nominations:  len(cur.nominations),
		DailyWinners: len(cur.winners),
	}
	recordStats(st)
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }

func recordStats(st model.Stats) {
	metrics.UpdateStoreRecords("users", st.Users)
	metrics.UpdateStoreRecords("posts", st.Posts)
	metrics.UpdateStoreRecords("nominations", st.Nominations)
	metrics.UpdateStoreRecords("daily_winners", st.DailyWinners)
}
