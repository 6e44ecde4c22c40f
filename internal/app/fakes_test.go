package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/okian/creatorboard/internal/adapters/feed"
	"github.com/okian/creatorboard/internal/domain/model"
)

var noon = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// scriptedFeed serves a fixed campaign: alice posts, bob nominates her
// by replying to her post, carol posts without the tag.
type scriptedFeed struct {
	posts    []model.RawPost
	mentions []model.RawMention
	byID     map[string]model.RawPost
}

func newScriptedFeed() *scriptedFeed {
	alice := model.RawPost{
		ID: "0xa1", AuthorID: 1, AuthorHandle: "alice", Engagement: 12,
		Body: "Today on Base I created... a song", CreatedAt: noon.Add(-2 * time.Hour),
	}
	carol := model.RawPost{
		ID: "0xc1", AuthorID: 3, AuthorHandle: "carol", Engagement: 40,
		Body: "gm", CreatedAt: noon.Add(-time.Hour),
	}
	return &scriptedFeed{
		posts: []model.RawPost{alice, carol},
		mentions: []model.RawMention{{
			ID: "0xm1", AuthorID: 2, AuthorHandle: "bob", ParentID: "0xa1",
			Body: "@theo nominating this", CreatedAt: noon.Add(-30 * time.Minute),
		}},
		byID: map[string]model.RawPost{alice.ID: alice, carol.ID: carol},
	}
}

func (f *scriptedFeed) FetchCampaignPosts(_ context.Context, _, cursor string) ([]model.RawPost, string, error) {
	return f.posts, "c1", nil
}

func (f *scriptedFeed) FetchMentions(_ context.Context, _ int64, cursor string) ([]model.RawMention, string, error) {
	return f.mentions, "m1", nil
}

func (f *scriptedFeed) FetchPost(_ context.Context, id string) (model.RawPost, error) {
	p, ok := f.byID[id]
	if !ok {
		return model.RawPost{}, feed.ErrNotFound
	}
	return p, nil
}

func (f *scriptedFeed) FetchUser(_ context.Context, id int64) (model.RawUser, error) {
	return model.RawUser{}, feed.ErrNotFound
}

type recordingPublisher struct {
	mu    sync.Mutex
	texts []string
}

func (p *recordingPublisher) PublishMessage(_ context.Context, text, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return "0xout", nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}
