package simfeed_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creatorboard/internal/adapters/feed"
	"github.com/okian/creatorboard/internal/adapters/http/api"
	service "github.com/okian/creatorboard/internal/app"
	"github.com/okian/creatorboard/internal/config"
	"github.com/okian/creatorboard/internal/simfeed"
	"github.com/okian/creatorboard/pkg/clock"
)

var noon = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func dataset(t *testing.T) *simfeed.Dataset {
	t.Helper()
	cfg := simfeed.DefaultConfig()
	cfg.Now = noon
	ds, err := simfeed.Generate(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return ds
}

func TestServerSpeaksTheFeedProtocol(t *testing.T) {
	Convey("Given a simulated platform and the real feed client", t, func() {
		ctx := context.Background()
		ds := dataset(t)
		sim := simfeed.NewServer(ds)
		srv := httptest.NewServer(sim.Handler())
		defer srv.Close()
		client := feed.NewClient(feed.WithBaseURL(srv.URL), feed.WithSignerUUID("sim-signer"))

		Convey("Campaign search returns only tagged posts", func() {
			posts, cursor, err := client.FetchCampaignPosts(ctx, ds.Config.Tag, "")
			So(err, ShouldBeNil)
			So(posts, ShouldNotBeEmpty)
			So(cursor, ShouldNotBeEmpty)
			for _, p := range posts {
				c, ok := ds.Cast(p.ID)
				So(ok, ShouldBeTrue)
				So(ds.Tagged(c), ShouldBeTrue)
			}
		})

		Convey("Mentions are only served to the bot account", func() {
			mentions, _, err := client.FetchMentions(ctx, ds.Config.BotFID, "")
			So(err, ShouldBeNil)
			So(mentions, ShouldHaveLength, len(ds.Mentions))
			So(mentions[0].ParentID, ShouldNotBeEmpty)

			other, _, err := client.FetchMentions(ctx, ds.Config.BotFID+1, "")
			So(err, ShouldBeNil)
			So(other, ShouldBeEmpty)
		})

		Convey("Lookups resolve known posts and users", func() {
			want := ds.Posts[0]
			p, err := client.FetchPost(ctx, want.Hash)
			So(err, ShouldBeNil)
			So(p.AuthorID, ShouldEqual, want.Author.FID)
			So(p.Engagement, ShouldEqual, want.Likes)

			_, err = client.FetchPost(ctx, "0xnope")
			So(feed.IsNotFound(err), ShouldBeTrue)

			u, err := client.FetchUser(ctx, ds.Users[0].FID)
			So(err, ShouldBeNil)
			So(u.Handle, ShouldEqual, ds.Users[0].Username)

			_, err = client.FetchUser(ctx, 1)
			So(feed.IsNotFound(err), ShouldBeTrue)
		})

		Convey("Publishing is recorded", func() {
			hash, err := client.PublishMessage(ctx, "hello", "0xparent")
			So(err, ShouldBeNil)
			So(hash, ShouldEqual, "0xsim0001")
			So(sim.Published(), ShouldResemble, []simfeed.Published{{Hash: hash, Text: "hello", Parent: "0xparent"}})

			unsigned := feed.NewClient(feed.WithBaseURL(srv.URL))
			_, err = unsigned.PublishMessage(ctx, "hello", "")
			So(errors.Is(err, feed.ErrPublish), ShouldBeTrue)
			So(sim.Published(), ShouldHaveLength, 1)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given the bot pointed at a simulated platform", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		ds := dataset(t)
		sim := simfeed.NewServer(ds)
		feedSrv := httptest.NewServer(sim.Handler())
		defer feedSrv.Close()

		cfg := config.New()
		cfg.StoreDriver = "memory"
		cfg.FeedBaseURL = feedSrv.URL
		cfg.BotFID = ds.Config.BotFID
		cfg.DryRun = false
		cfg.SignerUUID = "sim-signer"
		svc, err := service.New(ctx, cfg, service.WithClock(clock.NewFake(noon)))
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When two cycles run and the outbox drains", func() {
			first, err := svc.RunIngestionCycle(ctx)
			So(err, ShouldBeNil)
			second, err := svc.RunIngestionCycle(ctx)
			So(err, ShouldBeNil)

			apiSrv := httptest.NewServer(api.NewServer(svc).Handler())
			defer apiSrv.Close()
			verifyErr := simfeed.Verify(ctx, apiSrv.Client(), apiSrv.URL, ds, 100)

			winner, ok, winnerErr := svc.DailyWinner(ctx, "")
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the live leaderboard matches the dataset", func() {
				So(verifyErr, ShouldBeNil)
			})

			Convey("Then the creator of the day is the most liked tagged post", func() {
				want, found := ds.ExpectedWinner(noon.Truncate(24*time.Hour), noon.Truncate(24*time.Hour).Add(24*time.Hour))
				So(found, ShouldBeTrue)
				So(winnerErr, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(winner.Post.ID, ShouldEqual, want.Hash)
			})

			Convey("Then every recorded nomination was acknowledged once", func() {
				So(first.Result.Nominations, ShouldBeGreaterThan, 0)
				So(second.Result.Nominations, ShouldEqual, 0)
				So(second.Leaderboard, ShouldBeFalse)

				var acks, boards, highlights int
				for _, p := range sim.Published() {
					switch {
					case strings.HasPrefix(p.Parent, "0xm"):
						acks++
					case strings.Contains(p.Text, "Leaderboard"):
						boards++
					case strings.Contains(p.Text, "Creator of the Day"):
						highlights++
					}
				}
				So(acks, ShouldEqual, first.Result.Nominations)
				So(boards, ShouldEqual, 1)
				So(highlights, ShouldEqual, 1)
			})
		})

		Reset(func() { _ = svc.Stop(ctx) })
	})
}

func TestVerifyReportsDifferences(t *testing.T) {
	Convey("Given an API serving the wrong board", t, func() {
		ctx := context.Background()
		ds := dataset(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/leaderboard" {
				http.NotFound(w, r)
				return
			}
			_, _ = io.WriteString(w, `[{"rank":1,"user_id":1,"handle":"nobody","points":99}]`)
		}))
		defer srv.Close()

		Convey("Then Verify returns a mismatch", func() {
			err := simfeed.Verify(ctx, nil, srv.URL, ds, 10)
			So(errors.Is(err, simfeed.ErrMismatch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "nobody")
		})

		Convey("Then an unreachable API is an API error", func() {
			err := simfeed.Verify(ctx, nil, srv.URL+"/missing", ds, 10)
			So(errors.Is(err, simfeed.ErrAPI), ShouldBeTrue)
		})
	})
}
