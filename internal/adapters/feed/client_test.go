package feed_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creatorboard/internal/adapters/feed"
	"github.com/okian/creatorboard/internal/domain/model"
)

const castsJSON = `{"result":{"casts":[
 {"hash":"0xa","text":"Today on Base I created... a song","timestamp":"2026-10-14T10:00:00Z",
  "author":{"fid":7,"username":"alice"},"reactions":{"likes_count":12},"parent_hash":null},
 {"hash":"0xb","text":"Today on Base I created... a zine","timestamp":"2026-10-12T09:00:00Z",
  "author":{"fid":8,"username":"bob"},"reactions":{"likes_count":3},"parent_hash":null}
],"next":{"cursor":"abc"}}}`

const notificationsJSON = `{"notifications":[
 {"type":"mention","cast":{"hash":"0xm1","text":"@theo nominate","timestamp":"2026-10-14T11:00:00Z",
  "author":{"fid":9,"username":"carol"},"reactions":{"likes_count":0},"parent_hash":"0xa"}},
 {"type":"mention","cast":{"hash":"0xm0","text":"@theo hi","timestamp":"2026-10-13T11:00:00Z",
  "author":{"fid":9,"username":"carol"},"reactions":{"likes_count":0},"parent_hash":null}},
 {"type":"follows"}
]}`

func newServer(t *testing.T, h http.HandlerFunc) (*feed.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := feed.NewClient(
		feed.WithBaseURL(srv.URL),
		feed.WithAPIKey("k-123"),
		feed.WithSignerUUID("signer-1"),
		feed.WithTimeout(2*time.Second),
	)
	return c, srv
}

func TestFetchCampaignPosts(t *testing.T) {
	Convey("Given a feed returning two campaign posts", t, func() {
		var gotQuery, gotKey string
		c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			gotKey = r.Header.Get("x-api-key")
			_, _ = io.WriteString(w, castsJSON)
		})

		Convey("When fetching without a cursor", func() {
			posts, next, err := c.FetchCampaignPosts(context.Background(), "Today on Base I created...", "")

			Convey("Then every post is mapped and the cursor is the newest time", func() {
				So(err, ShouldBeNil)
				So(posts, ShouldHaveLength, 2)
				So(posts[0].ID, ShouldEqual, "0xa")
				So(posts[0].AuthorID, ShouldEqual, 7)
				So(posts[0].AuthorHandle, ShouldEqual, "alice")
				So(posts[0].Engagement, ShouldEqual, 12)
				So(posts[0].ParentID, ShouldBeEmpty)
				So(next, ShouldEqual, "2026-10-14T10:00:00Z")
				So(gotKey, ShouldEqual, "k-123")
				So(gotQuery, ShouldContainSubstring, "channel_id=base")
				So(gotQuery, ShouldContainSubstring, "limit=100")
			})
		})

		Convey("When the cursor is past the lookback of the older post", func() {
			posts, next, err := c.FetchCampaignPosts(context.Background(), "tag", "2026-10-14T10:00:00Z")

			Convey("Then only the recent post is returned and the cursor holds", func() {
				So(err, ShouldBeNil)
				So(posts, ShouldHaveLength, 1)
				So(posts[0].ID, ShouldEqual, "0xa")
				So(next, ShouldEqual, "2026-10-14T10:00:00Z")
			})
		})

		Convey("When the cursor is malformed", func() {
			_, next, err := c.FetchCampaignPosts(context.Background(), "tag", "yesterday")

			Convey("Then a transport error is returned and the cursor is kept", func() {
				So(errors.Is(err, feed.ErrTransport), ShouldBeTrue)
				So(next, ShouldEqual, "yesterday")
			})
		})
	})
}

func TestFetchMentions(t *testing.T) {
	Convey("Given a notification feed", t, func() {
		var gotFID string
		c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotFID = r.URL.Query().Get("fid")
			_, _ = io.WriteString(w, notificationsJSON)
		})

		Convey("When fetching after the older mention", func() {
			mentions, next, err := c.FetchMentions(context.Background(), 42, "2026-10-14T00:00:00Z")

			Convey("Then only the newer reply comes back", func() {
				So(err, ShouldBeNil)
				So(mentions, ShouldHaveLength, 1)
				So(mentions[0].ID, ShouldEqual, "0xm1")
				So(mentions[0].ParentID, ShouldEqual, "0xa")
				So(mentions[0].IsReply(), ShouldBeTrue)
				So(next, ShouldEqual, "2026-10-14T11:00:00Z")
				So(gotFID, ShouldEqual, "42")
			})
		})
	})
}

func TestLookups(t *testing.T) {
	Convey("Given a feed that knows one post and one user", t, func() {
		c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/v2/farcaster/cast" && r.URL.Query().Get("identifier") == "0xa":
				_, _ = io.WriteString(w, `{"cast":{"hash":"0xa","text":"hi","timestamp":"2026-10-14T10:00:00Z","author":{"fid":7,"username":"alice"},"reactions":{"likes_count":4}}}`)
			case r.URL.Path == "/v2/farcaster/user/bulk" && r.URL.Query().Get("fids") == "7":
				_, _ = io.WriteString(w, `{"users":[{"fid":7,"username":"alice"}]}`)
			case r.URL.Path == "/v2/farcaster/user/bulk":
				_, _ = io.WriteString(w, `{"users":[]}`)
			case r.URL.Path == "/v2/farcaster/cast":
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"code":"NotFound","message":"cast not found"}`)
			default:
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"code":"Boom","message":"upstream down"}`)
			}
		})
		ctx := context.Background()

		Convey("Known entities resolve", func() {
			p, err := c.FetchPost(ctx, "0xa")
			So(err, ShouldBeNil)
			So(p.AuthorID, ShouldEqual, 7)
			So(p.Engagement, ShouldEqual, 4)

			u, err := c.FetchUser(ctx, 7)
			So(err, ShouldBeNil)
			So(u, ShouldResemble, model.RawUser{ID: 7, Handle: "alice"})
		})

		Convey("Unknown entities are not-found errors the pipeline can skip", func() {
			_, err := c.FetchPost(ctx, "0xdead")
			So(feed.IsNotFound(err), ShouldBeTrue)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = c.FetchUser(ctx, 99)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a failing feed", t, func() {
		c, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		Convey("Lookups report transport errors, not not-found", func() {
			_, err := c.FetchPost(context.Background(), "0xa")
			So(errors.Is(err, feed.ErrTransport), ShouldBeTrue)
			So(feed.IsNotFound(err), ShouldBeFalse)
		})
	})
}

func TestPublishMessage(t *testing.T) {
	Convey("Given a platform accepting posts", t, func() {
		var body map[string]string
		var method string
		c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			body = nil
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["text"] == "reject" {
				_, _ = io.WriteString(w, `{"success":false}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":true,"cast":{"hash":"0xnew"}}`)
		})

		Convey("A reply carries the signer and parent", func() {
			id, err := c.PublishMessage(context.Background(), "thanks", "0xm1")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "0xnew")
			So(method, ShouldEqual, http.MethodPost)
			So(body["signer_uuid"], ShouldEqual, "signer-1")
			So(body["parent"], ShouldEqual, "0xm1")
		})

		Convey("An unconfirmed post is a publish error", func() {
			_, err := c.PublishMessage(context.Background(), "reject", "")
			So(errors.Is(err, feed.ErrPublish), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable platform", t, func() {
		c := feed.NewClient(feed.WithBaseURL("http://127.0.0.1:1"), feed.WithTimeout(time.Second))

		Convey("Publishing fails with both publish and transport errors", func() {
			_, err := c.PublishMessage(context.Background(), "hello", "")
			So(errors.Is(err, feed.ErrPublish), ShouldBeTrue)
			So(errors.Is(err, feed.ErrTransport), ShouldBeTrue)
		})
	})
}

func TestLogPublisher(t *testing.T) {
	Convey("The dry-run publisher returns synthetic ids", t, func() {
		p := feed.NewLogPublisher(nil)
		id, err := p.PublishMessage(context.Background(), "hello", "")
		So(err, ShouldBeNil)
		So(id, ShouldStartWith, "dry-run-")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.PublishMessage(ctx, "hello", "")
		So(err, ShouldNotBeNil)
	})
}
