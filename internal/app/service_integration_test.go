package service_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/creatorboard/internal/app"
	"github.com/okian/creatorboard/internal/config"
	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/clock"
)

func TestServiceIntegration(t *testing.T) {
	configs := map[string]func() *config.Config{
		"memory": memoryConfig,
		"sqlite": func() *config.Config {
			cfg := memoryConfig()
			cfg.StoreDriver = "sqlite"
			cfg.StoreDSN = ":memory:"
			return cfg
		},
	}

	for driver, newConfig := range configs {
		Convey("Given a service over the "+driver+" store and a scripted feed", t, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			pub := &recordingPublisher{}
			svc, err := service.New(ctx, newConfig(),
				service.WithFeed(newScriptedFeed()),
				service.WithPublisher(pub),
				service.WithClock(clock.NewFake(noon)))
			So(err, ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("When one ingestion cycle runs", func() {
				report, err := svc.RunIngestionCycle(ctx)
				So(err, ShouldBeNil)

				Convey("Then the nomination, winner and announcements are all recorded", func() {
					So(report.Result.PostsUpserted, ShouldEqual, 1)
					So(report.Result.PostsSkipped, ShouldEqual, 1)
					So(report.Result.Nominations, ShouldEqual, 1)
					So(report.Result.Winner, ShouldNotBeNil)
					So(report.Leaderboard, ShouldBeTrue)
					So(report.Highlight, ShouldBeFalse)

					board, err := svc.GetLeaderboard(ctx, 0)
					So(err, ShouldBeNil)
					So(board, ShouldResemble, []model.LeaderboardEntry{
						{Rank: 1, UserID: 1, Handle: "alice", Points: 1},
					})

					h, ok, err := svc.DailyWinner(ctx, "2026-10-14")
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(h.Winner.UserID, ShouldEqual, 1)
					So(h.Post.ID, ShouldEqual, "0xa1")

					posts, err := svc.GetHighlights(ctx, noon.Add(-24*time.Hour), 10)
					So(err, ShouldBeNil)
					So(posts, ShouldHaveLength, 1)

					stats, err := svc.GetStats(ctx)
					So(err, ShouldBeNil)
					So(stats.Store, ShouldResemble, model.Stats{Users: 2, Posts: 1, Nominations: 1, DailyWinners: 1})
					So(stats.Scheduler.PostCursor, ShouldEqual, "c1")
					So(stats.Dedupe, ShouldEqual, 1)

					So(svc.Stop(ctx), ShouldBeNil)
					texts := pub.published()
					So(texts, ShouldHaveLength, 3)
					So(texts[0], ShouldEqual, "Thanks for the nomination, @bob! I've recorded it.")
					So(texts[1], ShouldStartWith, "🎉 Based Creator of the Day! 🎉")
					So(texts[1], ShouldContainSubstring, "@alice")
					So(texts[2], ShouldContainSubstring, "1. @alice - 1 point")
				})
			})

			Convey("When the same cycle runs twice", func() {
				_, err := svc.RunIngestionCycle(ctx)
				So(err, ShouldBeNil)
				second, err := svc.RunIngestionCycle(ctx)
				So(err, ShouldBeNil)

				Convey("Then the second pass changes nothing and sends nothing new", func() {
					So(second.Result.Nominations, ShouldEqual, 0)
					So(second.Result.MentionsIgnored, ShouldEqual, 1)
					So(second.Result.Winner, ShouldBeNil)
					So(second.Leaderboard, ShouldBeFalse)
					So(second.Highlight, ShouldBeFalse)

					stats, err := svc.GetStats(ctx)
					So(err, ShouldBeNil)
					So(stats.Store, ShouldResemble, model.Stats{Users: 2, Posts: 1, Nominations: 1, DailyWinners: 1})

					So(svc.Stop(ctx), ShouldBeNil)
					So(pub.published(), ShouldHaveLength, 4)
				})
			})

			Reset(func() { _ = svc.Stop(ctx) })
		})
	}
}
