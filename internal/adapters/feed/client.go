// Package feed talks to a Neynar-style Farcaster API.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

const (
	defaultBaseURL  = "https://api.neynar.com"
	defaultChannel  = "base"
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second
	defaultLookback = 24 * time.Hour

	apiKeyHeader = "x-api-key"
	maxBodyBytes = 4 << 20
)

// Client implements the fetch and publish side of the bot.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	channel  string
	signer   string
	lookback time.Duration
	pageSize int
	log      logger.Logger
}

// NewClient builds a feed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		baseURL:  defaultBaseURL,
		channel:  defaultChannel,
		lookback: defaultLookback,
		pageSize: defaultPageSize,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCampaignPosts searches the channel for posts containing tag. The
// cursor is the RFC3339 time of the newest post seen so far; posts older
// than the cursor minus the lookback window are dropped. The returned
// cursor never moves backwards.
func (c *Client) FetchCampaignPosts(ctx context.Context, tag, cursor string) ([]model.RawPost, string, error) {
	since, err := parseCursor(cursor)
	if err != nil {
		return nil, cursor, err
	}
	q := url.Values{}
	q.Set("q", tag)
	q.Set("limit", strconv.Itoa(c.pageSize))
	if c.channel != "" {
		q.Set("channel_id", c.channel)
	}
	var resp searchResponse
	if err := c.get(ctx, "/v2/farcaster/cast/search", q, &resp); err != nil {
		return nil, cursor, fmt.Errorf("fetch campaign posts: %w", err)
	}

	floor := since
	if !floor.IsZero() {
		floor = floor.Add(-c.lookback)
	}
	newest := since
	posts := make([]model.RawPost, 0, len(resp.Result.Casts))
	for _, ct := range resp.Result.Casts {
		if ct.Timestamp.Before(floor) {
			continue
		}
		posts = append(posts, ct.post())
		if ct.Timestamp.After(newest) {
			newest = ct.Timestamp
		}
	}
	return posts, formatCursor(newest, cursor), nil
}

// FetchMentions returns mentions of accountID newer than the cursor.
// Mentions stamped exactly at the cursor are returned again.
func (c *Client) FetchMentions(ctx context.Context, accountID int64, cursor string) ([]model.RawMention, string, error) {
	since, err := parseCursor(cursor)
	if err != nil {
		return nil, cursor, err
	}
	q := url.Values{}
	q.Set("fid", strconv.FormatInt(accountID, 10))
	q.Set("type", "mentions")
	q.Set("limit", strconv.Itoa(c.pageSize))
	var resp notificationsResponse
	if err := c.get(ctx, "/v2/farcaster/notifications", q, &resp); err != nil {
		return nil, cursor, fmt.Errorf("fetch mentions: %w", err)
	}

	newest := since
	mentions := make([]model.RawMention, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		if n.Cast == nil || n.Cast.Timestamp.Before(since) {
			continue
		}
		mentions = append(mentions, n.Cast.mention())
		if n.Cast.Timestamp.After(newest) {
			newest = n.Cast.Timestamp
		}
	}
	return mentions, formatCursor(newest, cursor), nil
}

// FetchPost looks a post up by hash.
func (c *Client) FetchPost(ctx context.Context, id string) (model.RawPost, error) {
	q := url.Values{}
	q.Set("identifier", id)
	q.Set("type", "hash")
	var resp castResponse
	if err := c.get(ctx, "/v2/farcaster/cast", q, &resp); err != nil {
		return model.RawPost{}, fmt.Errorf("fetch post %s: %w", id, err)
	}
	return resp.Cast.post(), nil
}

// FetchUser looks an account up by id.
func (c *Client) FetchUser(ctx context.Context, id int64) (model.RawUser, error) {
	q := url.Values{}
	q.Set("fids", strconv.FormatInt(id, 10))
	var resp usersResponse
	if err := c.get(ctx, "/v2/farcaster/user/bulk", q, &resp); err != nil {
		return model.RawUser{}, fmt.Errorf("fetch user %d: %w", id, err)
	}
	for _, u := range resp.Users {
		if u.FID == id {
			return model.RawUser{ID: u.FID, Handle: u.Username}, nil
		}
	}
	return model.RawUser{}, fmt.Errorf("fetch user %d: %w", id, ErrNotFound)
}

// PublishMessage posts text, as a reply when replyTo is set, and returns
// the new post's hash.
func (c *Client) PublishMessage(ctx context.Context, text, replyTo string) (string, error) {
	body, err := json.Marshal(publishRequest{
		SignerUUID: c.signer,
		Text:       text,
		Parent:     replyTo,
		Idem:       uuid.NewString()[:16],
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	var resp publishResponse
	if err := c.do(ctx, http.MethodPost, "/v2/farcaster/cast", nil, bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if !resp.Success || resp.Cast.Hash == "" {
		return "", fmt.Errorf("%w: platform did not confirm the post", ErrPublish)
	}
	return resp.Cast.Hash, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("feed", "transport")
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.RecordErrorByComponent("feed", "status_"+strconv.Itoa(resp.StatusCode))
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		c.log.Warn(ctx, "feed call rejected",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("code", apiErr.Code))
		return fmt.Errorf("%w: %s %s: status %d %s", ErrTransport, method, path, resp.StatusCode, apiErr.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTransport, path, err)
	}
	return nil
}

func parseCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad cursor %q", ErrTransport, cursor)
	}
	return t, nil
}

func formatCursor(newest time.Time, previous string) string {
	if newest.IsZero() {
		return previous
	}
	return newest.UTC().Format(time.RFC3339Nano)
}

// IsNotFound reports whether err means the feed had no such entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
