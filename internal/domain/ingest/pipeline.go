// Package ingest turns fetched posts and mentions into store mutations.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/internal/domain/dedupe"
	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

const defaultCampaignTag = "Today on Base I created..."

// Store is the write side of the entity store.
type Store interface {
	UpsertUser(ctx context.Context, id int64, handle string) (model.User, error)
	UpsertPost(ctx context.Context, p model.Post) (model.Post, error)
	RecordNomination(ctx context.Context, n model.Nomination) (model.NominationOutcome, error)
	MarkDailyWinner(ctx context.Context, w model.DailyWinner) (model.WinnerOutcome, error)
	DailyWinner(ctx context.Context, day model.Day) (model.DailyWinner, bool, error)
	UserByHandle(ctx context.Context, handle string) (model.User, bool, error)
}

// Scorer picks the daily candidate.
type Scorer interface {
	Today(now time.Time) model.Day
	DailyCandidate(ctx context.Context, day model.Day) (model.Post, bool, error)
}

// Resolver looks up feed entities not embedded in a batch.
type Resolver interface {
	FetchPost(ctx context.Context, id string) (model.RawPost, error)
	FetchUser(ctx context.Context, id int64) (model.RawUser, error)
}

// Outbox accepts messages for asynchronous publishing.
type Outbox interface {
	Enqueue(ctx context.Context, msg model.Message) bool
}

// Batch is one fetch worth of records.
type Batch struct {
	Posts    []model.RawPost
	Mentions []model.RawMention
}

// Result counts what a batch did.
type Result struct {
	PostsUpserted    int                `json:"posts_upserted"`
	PostsSkipped     int                `json:"posts_skipped"`
	Nominations      int                `json:"nominations"`
	MentionsRejected int                `json:"mentions_rejected"` // self-nominations and duplicates
	MentionsSkipped  int                `json:"mentions_skipped"`
	MentionsIgnored  int                `json:"mentions_ignored"` // not replies or already delivered
	Winner           *model.DailyWinner `json:"winner,omitempty"`
	Queued           int                `json:"queued"`
}

// Pipeline applies batches to the store. It is not safe for concurrent
// Ingest calls; the scheduler runs one pass at a time.
type Pipeline struct {
	store       Store
	scorer      Scorer
	resolver    Resolver
	outbox      Outbox
	dedupe      dedupe.Deduper
	formatter   *announce.Formatter
	tags        *TagMatcher
	clock       clock.Clock
	callTimeout time.Duration
	log         logger.Logger
}

// NewPipeline wires a pipeline.
func NewPipeline(store Store, scorer Scorer, resolver Resolver, outbox Outbox, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		scorer:      scorer,
		resolver:    resolver,
		outbox:      outbox,
		dedupe:      dedupe.NewInMemoryDeduper(),
		formatter:   announce.NewFormatter(),
		tags:        NewTagMatcher(defaultCampaignTag),
		clock:       clock.Real(),
		callTimeout: 30 * time.Second,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes campaign posts, then mentions, then the daily winner.
// Invalid records are skipped; store and transport failures abort the batch
// and leave already applied records in place, so a retry is safe.
func (p *Pipeline) Ingest(ctx context.Context, batch Batch) (Result, error) {
	var res Result
	for _, raw := range batch.Posts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.ingestPost(ctx, raw, &res); err != nil {
			return res, fmt.Errorf("%w: post %s: %w", ErrAborted, raw.ID, err)
		}
	}
	for _, m := range batch.Mentions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.ingestMention(ctx, m, &res); err != nil {
			return res, fmt.Errorf("%w: mention %s: %w", ErrAborted, m.ID, err)
		}
	}
	metrics.UpdateDedupeSize(p.dedupe.Size())
	if err := p.finalizeWinner(ctx, &res); err != nil {
		return res, fmt.Errorf("%w: daily winner: %w", ErrAborted, err)
	}
	return res, nil
}

func (p *Pipeline) ingestPost(ctx context.Context, raw model.RawPost, res *Result) error {
	if !p.tags.Match(raw.Body) {
		metrics.RecordPostIngested("untagged")
		res.PostsSkipped++
		return nil
	}
	err := p.savePost(ctx, raw, true)
	switch {
	case err == nil:
		metrics.RecordPostIngested("upserted")
		res.PostsUpserted++
		return nil
	case skippable(err):
		p.log.Warn(ctx, "campaign post skipped", logger.String("post_id", raw.ID), logger.Error(err))
		metrics.RecordPostIngested("skipped")
		res.PostsSkipped++
		return nil
	default:
		return err
	}
}

// savePost upserts the author, then the post with the author's stored handle.
func (p *Pipeline) savePost(ctx context.Context, raw model.RawPost, campaign bool) error {
	if err := model.ValidatePost(raw); err != nil {
		return err
	}
	author, err := p.ensureUser(ctx, raw.AuthorID, raw.AuthorHandle)
	if err != nil {
		return err
	}
	_, err = p.store.UpsertPost(ctx, model.Post{
		ID:           raw.ID,
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Body:         raw.Body,
		Engagement:   raw.Engagement,
		Campaign:     campaign,
		CreatedAt:    raw.CreatedAt,
	})
	return err
}

// ensureUser upserts id using the embedded handle, falling back to a lookup
// only when the feed left the handle out.
func (p *Pipeline) ensureUser(ctx context.Context, id int64, handle string) (model.User, error) {
	handle = model.NormalizeHandle(handle)
	if handle == "" {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		raw, err := p.resolver.FetchUser(callCtx, id)
		cancel()
		if err != nil {
			return model.User{}, fmt.Errorf("fetch user %d: %w", id, err)
		}
		handle = model.NormalizeHandle(raw.Handle)
	}
	u, err := p.store.UpsertUser(ctx, id, handle)
	if !errors.Is(err, model.ErrHandleTaken) {
		return u, err
	}
	if !p.releaseHandle(ctx, id, handle) {
		return model.User{}, err
	}
	return p.store.UpsertUser(ctx, id, handle)
}

// releaseHandle refreshes the user holding handle from the feed so a handle
// the platform reassigned to claimant moves off the stale owner. It reports
// whether the handle is now free.
func (p *Pipeline) releaseHandle(ctx context.Context, claimant int64, handle string) bool {
	owner, ok, err := p.store.UserByHandle(ctx, handle)
	if err != nil || !ok {
		return err == nil
	}
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	raw, err := p.resolver.FetchUser(callCtx, owner.ID)
	cancel()
	fresh := ""
	if err == nil {
		fresh = model.NormalizeHandle(raw.Handle)
	}
	if err != nil || fresh == handle || model.ValidateHandle(fresh) != nil {
		p.log.Warn(ctx, "handle held by another user",
			logger.String("handle", handle),
			logger.Int64("user_id", claimant),
			logger.Int64("owner_id", owner.ID),
			logger.Error(err))
		return false
	}
	if _, err := p.store.UpsertUser(ctx, owner.ID, fresh); err != nil {
		return false
	}
	if _, ok, err := p.store.UserByHandle(ctx, handle); err != nil || ok {
		p.log.Warn(ctx, "handle held by another user",
			logger.String("handle", handle),
			logger.Int64("user_id", claimant),
			logger.Int64("owner_id", owner.ID))
		return false
	}
	p.log.Info(ctx, "stale handle released",
		logger.String("handle", handle),
		logger.Int64("owner_id", owner.ID),
		logger.String("owner_handle", fresh))
	return true
}

func (p *Pipeline) ingestMention(ctx context.Context, m model.RawMention, res *Result) error {
	if err := model.ValidateMention(m); err != nil {
		p.log.Warn(ctx, "mention skipped", logger.String("mention_id", m.ID), logger.Error(err))
		metrics.RecordMention("skipped")
		res.MentionsSkipped++
		return nil
	}
	if !m.IsReply() {
		metrics.RecordMention("not_reply")
		res.MentionsIgnored++
		return nil
	}
	if p.dedupe.SeenAndRecord(ctx, m.ID) {
		metrics.RecordMention("duplicate_delivery")
		res.MentionsIgnored++
		return nil
	}

	outcome, nominator, err := p.nominate(ctx, m)
	switch {
	case err == nil:
	case skippable(err):
		p.log.Warn(ctx, "mention skipped", logger.String("mention_id", m.ID), logger.Error(err))
		metrics.RecordMention("skipped")
		res.MentionsSkipped++
		return nil
	default:
		p.dedupe.Unrecord(ctx, m.ID)
		return err
	}

	metrics.RecordMention(outcome.String())
	if outcome != model.NominationRecorded {
		p.log.Info(ctx, "nomination not recorded",
			logger.String("mention_id", m.ID),
			logger.String("outcome", outcome.String()))
		res.MentionsRejected++
		return nil
	}
	res.Nominations++
	p.queue(ctx, model.NewMessage(model.MessageAck, p.formatter.Ack(nominator.Handle), m.ID), res)
	return nil
}

// nominate resolves the parent post and records the nomination of its author.
func (p *Pipeline) nominate(ctx context.Context, m model.RawMention) (model.NominationOutcome, model.User, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	parent, err := p.resolver.FetchPost(callCtx, m.ParentID)
	cancel()
	if err != nil {
		return 0, model.User{}, fmt.Errorf("fetch parent %s: %w", m.ParentID, err)
	}
	nominator, err := p.ensureUser(ctx, m.AuthorID, m.AuthorHandle)
	if err != nil {
		return 0, model.User{}, err
	}
	if err := p.savePost(ctx, parent, p.tags.Match(parent.Body)); err != nil {
		return 0, model.User{}, err
	}
	outcome, err := p.store.RecordNomination(ctx, model.Nomination{
		NominatorID: nominator.ID,
		NomineeID:   parent.AuthorID,
		PostID:      parent.ID,
		CreatedAt:   m.CreatedAt,
	})
	return outcome, nominator, err
}

// finalizeWinner marks today's leading campaign post once per day.
func (p *Pipeline) finalizeWinner(ctx context.Context, res *Result) error {
	now := p.clock.Now()
	day := p.scorer.Today(now)
	if _, ok, err := p.store.DailyWinner(ctx, day); err != nil || ok {
		return err
	}
	cand, ok, err := p.scorer.DailyCandidate(ctx, day)
	if err != nil || !ok {
		return err
	}
	w := model.DailyWinner{Day: day, UserID: cand.AuthorID, PostID: cand.ID, CreatedAt: now}
	outcome, err := p.store.MarkDailyWinner(ctx, w)
	if err != nil {
		if skippable(err) {
			p.log.Warn(ctx, "daily winner skipped", logger.String("day", day.String()), logger.Error(err))
			return nil
		}
		return err
	}
	if outcome != model.WinnerRecorded {
		// The day is left open; a later cycle may crown another author.
		p.log.Info(ctx, "daily winner not recorded",
			logger.String("day", day.String()),
			logger.String("outcome", outcome.String()),
			logger.Int64("user_id", cand.AuthorID),
			logger.String("post_id", cand.ID))
		return nil
	}
	metrics.RecordDailyWinner()
	p.log.Info(ctx, "daily winner recorded",
		logger.String("day", day.String()),
		logger.Int64("user_id", cand.AuthorID),
		logger.String("post_id", cand.ID))
	res.Winner = &w
	p.queue(ctx, model.NewMessage(model.MessageHighlight, p.formatter.Highlight(cand.AuthorHandle, cand.Body), ""), res)
	return nil
}

func (p *Pipeline) queue(ctx context.Context, msg model.Message, res *Result) {
	if p.outbox.Enqueue(ctx, msg) {
		res.Queued++
		return
	}
	p.log.Warn(ctx, "outbox full, message dropped",
		logger.String("kind", string(msg.Kind)),
		logger.String("message_id", msg.ID.String()))
}

// IsAborted reports whether err stopped a batch early.
func IsAborted(err error) bool { return errors.Is(err, ErrAborted) }
