package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creatorboard/internal/domain/model"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"memory", func(*testing.T) Store { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) Store {
			s, err := Open(context.Background(), DriverSQLite, ":memory:")
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		}},
	}
}

func seedUsers(ctx context.Context, s Store, users map[int64]string) {
	for id, h := range users {
		_, err := s.UpsertUser(ctx, id, h)
		So(err, ShouldBeNil)
	}
}

func post(id string, author int64, handle string, engagement int64, at time.Time) model.Post {
	return model.Post{ID: id, AuthorID: author, AuthorHandle: handle, Body: "Today on Base I created " + id, Engagement: engagement, Campaign: true, CreatedAt: at}
}

func TestStoreUsers(t *testing.T) {
	for _, f := range storeFactories() {
		Convey("Given an empty "+f.name+" store", t, func() {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()

			Convey("When a user is inserted", func() {
				u, err := s.UpsertUser(ctx, 1, "alice")
				So(err, ShouldBeNil)
				So(u, ShouldResemble, model.User{ID: 1, Handle: "alice"})

				Convey("Then it can be read back", func() {
					got, ok, err := s.GetUser(ctx, 1)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(got.Handle, ShouldEqual, "alice")
				})

				Convey("Then a second upsert with a new valid handle refreshes it", func() {
					u, err := s.UpsertUser(ctx, 1, "alice2")
					So(err, ShouldBeNil)
					So(u.Handle, ShouldEqual, "alice2")
					_, err = s.UpsertUser(ctx, 2, "alice")
					So(err, ShouldBeNil)
				})

				Convey("Then an invalid refresh keeps the existing record", func() {
					u, err := s.UpsertUser(ctx, 1, "Not Valid")
					So(err, ShouldBeNil)
					So(u.Handle, ShouldEqual, "alice")
				})

				Convey("Then another id cannot take the handle", func() {
					_, err := s.UpsertUser(ctx, 2, "alice")
					So(errors.Is(err, model.ErrHandleTaken), ShouldBeTrue)
					So(model.IsValidation(err), ShouldBeTrue)
					_, ok, _ := s.GetUser(ctx, 2)
					So(ok, ShouldBeFalse)
				})
			})

			Convey("When a new user has a malformed handle", func() {
				_, err := s.UpsertUser(ctx, 3, "-bad-")

				Convey("Then it fails validation and nothing is stored", func() {
					So(errors.Is(err, model.ErrInvalidHandle), ShouldBeTrue)
					st, _ := s.Stats(ctx)
					So(st.Users, ShouldEqual, 0)
				})
			})

			Convey("When an unknown user is read", func() {
				_, ok, err := s.GetUser(ctx, 99)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	}
}

func TestStorePosts(t *testing.T) {
	for _, f := range storeFactories() {
		Convey("Given a "+f.name+" store with one author", t, func() {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()
			seedUsers(ctx, s, map[int64]string{1: "alice"})

			Convey("When a post is re-observed with different engagement", func() {
				_, err := s.UpsertPost(ctx, post("p1", 1, "alice", 10, t0))
				So(err, ShouldBeNil)
				up, err := s.UpsertPost(ctx, post("p1", 1, "alice", 25, t0.Add(time.Hour)))
				So(err, ShouldBeNil)
				down, err := s.UpsertPost(ctx, post("p1", 1, "alice", 3, t0))
				So(err, ShouldBeNil)

				Convey("Then engagement only grows and other fields stay put", func() {
					So(up.Engagement, ShouldEqual, 25)
					So(down.Engagement, ShouldEqual, 25)
					So(down.CreatedAt.Equal(t0), ShouldBeTrue)
					st, _ := s.Stats(ctx)
					So(st.Posts, ShouldEqual, 1)
				})
			})

			Convey("When the author is unknown", func() {
				_, err := s.UpsertPost(ctx, post("p2", 42, "ghost", 1, t0))
				So(errors.Is(err, model.ErrUnknownReference), ShouldBeTrue)
			})

			Convey("When posts are queried by time", func() {
				seedUsers(ctx, s, map[int64]string{2: "bob"})
				for _, p := range []model.Post{
					post("a", 1, "alice", 5, t0),
					post("b", 2, "bob", 9, t0.Add(time.Hour)),
					post("c", 1, "alice", 9, t0.Add(2*time.Hour)),
					post("old", 2, "bob", 100, t0.Add(-48*time.Hour)),
				} {
					_, err := s.UpsertPost(ctx, p)
					So(err, ShouldBeNil)
				}
				other := post("x", 2, "bob", 50, t0.Add(30*time.Minute))
				other.Campaign = false
				_, err := s.UpsertPost(ctx, other)
				So(err, ShouldBeNil)

				Convey("Then trending orders engagement desc, newest first on ties", func() {
					got, err := s.TopPostsSince(ctx, t0, 3)
					So(err, ShouldBeNil)
					So(ids(got), ShouldResemble, []string{"x", "c", "b"})
				})

				Convey("Then campaign candidates order engagement desc, earliest first on ties", func() {
					got, err := s.CampaignPostsBetween(ctx, t0, t0.Add(24*time.Hour))
					So(err, ShouldBeNil)
					So(ids(got), ShouldResemble, []string{"b", "c", "a"})
				})

				Convey("Then a non-positive limit is rejected", func() {
					_, err := s.TopPostsSince(ctx, t0, 0)
					So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
				})
			})
		})
	}
}

func ids(posts []model.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestStoreNominations(t *testing.T) {
	for _, f := range storeFactories() {
		Convey("Given a "+f.name+" store with posts by alice and bob", t, func() {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()
			seedUsers(ctx, s, map[int64]string{1: "alice", 2: "bob", 3: "carol", 4: "dave"})
			for _, p := range []model.Post{post("p1", 1, "alice", 10, t0), post("p2", 2, "bob", 25, t0)} {
				_, err := s.UpsertPost(ctx, p)
				So(err, ShouldBeNil)
			}

			Convey("When carol nominates alice twice for the same post", func() {
				first, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 3, NomineeID: 1, PostID: "p1", CreatedAt: t0})
				So(err, ShouldBeNil)
				second, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 3, NomineeID: 1, PostID: "p1", CreatedAt: t0.Add(time.Minute)})
				So(err, ShouldBeNil)

				Convey("Then only the first is recorded", func() {
					So(first, ShouldEqual, model.NominationRecorded)
					So(second, ShouldEqual, model.NominationDuplicate)
					board, err := s.Leaderboard(ctx, 10)
					So(err, ShouldBeNil)
					So(board, ShouldResemble, []model.LeaderboardEntry{{Rank: 1, UserID: 1, Handle: "alice", Points: 1}})
				})
			})

			Convey("When alice nominates herself", func() {
				out, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 1, NomineeID: 1, PostID: "p1", CreatedAt: t0})

				Convey("Then nothing is stored", func() {
					So(err, ShouldBeNil)
					So(out, ShouldEqual, model.NominationSelf)
					st, _ := s.Stats(ctx)
					So(st.Nominations, ShouldEqual, 0)
				})
			})

			Convey("When the post is unknown", func() {
				_, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 3, NomineeID: 1, PostID: "nope", CreatedAt: t0})
				So(errors.Is(err, model.ErrUnknownReference), ShouldBeTrue)
			})

			Convey("When nominees tie on points", func() {
				for _, n := range []model.Nomination{
					{NominatorID: 3, NomineeID: 2, PostID: "p2"},
					{NominatorID: 3, NomineeID: 1, PostID: "p1"},
					{NominatorID: 4, NomineeID: 1, PostID: "p1"},
					{NominatorID: 4, NomineeID: 2, PostID: "p2"},
				} {
					n.CreatedAt = t0
					_, err := s.RecordNomination(ctx, n)
					So(err, ShouldBeNil)
				}

				Convey("Then they share a rank ordered by user id, repeatably", func() {
					board, err := s.Leaderboard(ctx, 10)
					So(err, ShouldBeNil)
					So(board, ShouldResemble, []model.LeaderboardEntry{
						{Rank: 1, UserID: 1, Handle: "alice", Points: 2},
						{Rank: 1, UserID: 2, Handle: "bob", Points: 2},
					})
					again, _ := s.Leaderboard(ctx, 10)
					So(again, ShouldResemble, board)
					top, _ := s.Leaderboard(ctx, 1)
					So(len(top), ShouldEqual, 1)
					So(top[0].UserID, ShouldEqual, 1)
				})

				Convey("Then a further nomination breaks the tie", func() {
					_, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 1, NomineeID: 2, PostID: "p2", CreatedAt: t0})
					So(err, ShouldBeNil)
					board, _ := s.Leaderboard(ctx, 10)
					So(board[0], ShouldResemble, model.LeaderboardEntry{Rank: 1, UserID: 2, Handle: "bob", Points: 3})
					So(board[1].Rank, ShouldEqual, 2)
				})
			})
		})
	}
}

func TestStoreDailyWinner(t *testing.T) {
	for _, f := range storeFactories() {
		Convey("Given a "+f.name+" store with two candidates", t, func() {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()
			seedUsers(ctx, s, map[int64]string{1: "alice", 2: "bob"})
			for _, p := range []model.Post{post("p1", 1, "alice", 10, t0), post("p2", 2, "bob", 25, t0)} {
				_, err := s.UpsertPost(ctx, p)
				So(err, ShouldBeNil)
			}
			day := model.DayOf(t0, nil)

			Convey("When a winner is marked and then challenged", func() {
				first, err := s.MarkDailyWinner(ctx, model.DailyWinner{Day: day, UserID: 2, PostID: "p2", CreatedAt: t0})
				So(err, ShouldBeNil)
				second, err := s.MarkDailyWinner(ctx, model.DailyWinner{Day: day, UserID: 1, PostID: "p1", CreatedAt: t0})
				So(err, ShouldBeNil)

				Convey("Then the first decision stands", func() {
					So(first, ShouldEqual, model.WinnerRecorded)
					So(second, ShouldEqual, model.WinnerAlreadySet)
					w, ok, err := s.DailyWinner(ctx, day)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(w.UserID, ShouldEqual, 2)
					So(w.PostID, ShouldEqual, "p2")
				})

				Convey("Then the same user cannot win another day", func() {
					out, err := s.MarkDailyWinner(ctx, model.DailyWinner{Day: "2024-05-02", UserID: 2, PostID: "p2", CreatedAt: t0})
					So(err, ShouldBeNil)
					So(out, ShouldEqual, model.WinnerAlreadySet)
					_, ok, err := s.DailyWinner(ctx, "2024-05-02")
					So(err, ShouldBeNil)
					So(ok, ShouldBeFalse)
					st, err := s.Stats(ctx)
					So(err, ShouldBeNil)
					So(st.DailyWinners, ShouldEqual, 1)
				})

				Convey("Then another user may win another day", func() {
					out, err := s.MarkDailyWinner(ctx, model.DailyWinner{Day: "2024-05-02", UserID: 1, PostID: "p1", CreatedAt: t0})
					So(err, ShouldBeNil)
					So(out, ShouldEqual, model.WinnerRecorded)
				})
			})

			Convey("When no winner exists", func() {
				_, ok, err := s.DailyWinner(ctx, "1999-01-01")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	}
}

func TestStoreUserByHandle(t *testing.T) {
	for _, f := range storeFactories() {
		Convey("Given a "+f.name+" store where dave renamed", t, func() {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()
			seedUsers(ctx, s, map[int64]string{7: "dave"})
			_, err := s.UpsertUser(ctx, 7, "dave-old")
			So(err, ShouldBeNil)

			Convey("Then the old handle is free and the new one resolves", func() {
				_, ok, err := s.UserByHandle(ctx, "dave")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				u, ok, err := s.UserByHandle(ctx, "dave-old")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(u.ID, ShouldEqual, 7)
				fresh, err := s.UpsertUser(ctx, 8, "dave")
				So(err, ShouldBeNil)
				So(fresh.ID, ShouldEqual, 8)
			})
		})
	}
}

func TestSQLiteReadsDuringWrite(t *testing.T) {
	Convey("Given a file-backed sqlite store with an open write transaction", t, func() {
		ctx := context.Background()
		st, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "board.db"))
		So(err, ShouldBeNil)
		defer st.Close()
		seedUsers(ctx, st, map[int64]string{1: "alice"})

		s := st.(*SQLStore)
		So(s.rdb, ShouldNotEqual, s.db)
		tx, err := s.db.BeginTxx(ctx, nil)
		So(err, ShouldBeNil)
		_, err = tx.ExecContext(ctx, `UPDATE users SET handle = 'alicia' WHERE id = 1`)
		So(err, ShouldBeNil)
		defer func() { _ = tx.Rollback() }()

		Convey("When the API reads meanwhile", func() {
			rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			u, ok, err := st.GetUser(rctx, 1)
			stats, statsErr := st.Stats(rctx)

			Convey("Then it sees the last committed state without waiting", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(u.Handle, ShouldEqual, "alice")
				So(statsErr, ShouldBeNil)
				So(stats.Users, ShouldEqual, 1)
			})
		})
	})
}

func TestMemoryStoreConcurrentNominations(t *testing.T) {
	Convey("Given a memory store hit by concurrent duplicate nominations", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		seedUsers(ctx, s, map[int64]string{1: "alice", 3: "carol"})
		_, err := s.UpsertPost(ctx, post("p1", 1, "alice", 10, t0))
		So(err, ShouldBeNil)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			recorded int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := s.RecordNomination(ctx, model.Nomination{NominatorID: 3, NomineeID: 1, PostID: "p1", CreatedAt: t0})
				if err == nil && out == model.NominationRecorded {
					mu.Lock()
					recorded++
					mu.Unlock()
				}
				_, _ = s.Leaderboard(ctx, 10)
			}()
		}
		wg.Wait()

		Convey("Then exactly one is recorded", func() {
			So(recorded, ShouldEqual, 1)
			st, _ := s.Stats(ctx)
			So(st.Nominations, ShouldEqual, 1)
		})
	})
}

func TestAssignRanksWithTies(t *testing.T) {
	Convey("Given sorted leaderboard entries", t, func() {
		entries := []model.LeaderboardEntry{
			{UserID: 4, Points: 1}, {UserID: 1, Points: 5}, {UserID: 3, Points: 5}, {UserID: 2, Points: 2},
		}
		sortLeaderboard(entries)
		assignRanksWithTies(entries)

		Convey("Then equal points share a rank and ranks stay consecutive", func() {
			got := make([][2]int64, 0, len(entries))
			for _, e := range entries {
				got = append(got, [2]int64{e.UserID, int64(e.Rank)})
			}
			So(got, ShouldResemble, [][2]int64{{1, 1}, {3, 1}, {2, 2}, {4, 3}})
		})
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	Convey("Given an unsupported driver name", t, func() {
		_, err := Open(context.Background(), "mongo", "")
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}
