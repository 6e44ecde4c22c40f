package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/logger"
)

type userRow struct {
	ID     int64  `db:"id"`
	Handle string `db:"handle"`
}

type postRow struct {
	ID           string `db:"id"`
	AuthorID     int64  `db:"author_id"`
	AuthorHandle string `db:"author_handle"`
	Body         string `db:"body"`
	Engagement   int64  `db:"engagement_count"`
	Campaign     bool   `db:"campaign"`
	CreatedAt    int64  `db:"created_at"`
}

func (r postRow) toModel() model.Post {
	return model.Post{
		ID:           r.ID,
		AuthorID:     r.AuthorID,
		AuthorHandle: r.AuthorHandle,
		Body:         r.Body,
		Engagement:   r.Engagement,
		Campaign:     r.Campaign,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

type winnerRow struct {
	Day       string `db:"day"`
	UserID    int64  `db:"user_id"`
	PostID    string `db:"post_id"`
	CreatedAt int64  `db:"created_at"`
}

type leaderboardRow struct {
	UserID int64  `db:"user_id"`
	Handle string `db:"handle"`
	Points int    `db:"points"`
}

const postColumns = `id, author_id, author_handle, body, engagement_count, campaign, created_at`

// SQLStore persists entities through sqlx. Uniqueness is enforced by the
// schema and writes use ON CONFLICT so replays are no-ops.
type SQLStore struct {
	db *sqlx.DB
	// rdb serves reads. It is db unless a separate read pool was given.
	rdb *sqlx.DB
	log logger.Logger
}

// NewSQLStore wraps an open connection. Call Migrate before first use.
func NewSQLStore(db *sqlx.DB, opts ...Option) *SQLStore {
	cfg := newSettings(opts)
	rdb := cfg.readDB
	if rdb == nil {
		rdb = db
	}
	return &SQLStore{db: db, rdb: rdb, log: cfg.log}
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", ErrStore, err)
		}
	}
	return nil
}

func (s *SQLStore) q(query string) string { return s.db.Rebind(query) }

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *SQLStore) UpsertUser(ctx context.Context, id int64, handle string) (u model.User, err error) {
	defer observe("upsert_user", &err)()
	err = s.withTx(ctx, "upsert_user", func(tx *sqlx.Tx) error {
		var row userRow
		getErr := tx.GetContext(ctx, &row, s.q(`SELECT id, handle FROM users WHERE id = ?`), id)
		switch {
		case getErr == nil:
			u = model.User{ID: row.ID, Handle: row.Handle}
			if handle == row.Handle || model.ValidateHandle(handle) != nil {
				return nil
			}
			taken, err := s.handleOwned(ctx, tx, handle)
			if err != nil || taken {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE users SET handle = ? WHERE id = ?`), handle, id); err != nil {
				return storeErr("upsert_user", err)
			}
			s.log.Debug(ctx, "user handle refreshed", logger.Int64("user_id", id), logger.String("handle", handle))
			u.Handle = handle
			return nil
		case !errors.Is(getErr, sql.ErrNoRows):
			return storeErr("upsert_user", getErr)
		}

		if err := model.ValidateHandle(handle); err != nil {
			return err
		}
		taken, err := s.handleOwned(ctx, tx, handle)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", model.ErrHandleTaken, handle)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO users (id, handle) VALUES (?, ?)`), id, handle); err != nil {
			return storeErr("upsert_user", err)
		}
		u = model.User{ID: id, Handle: handle}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *SQLStore) handleOwned(ctx context.Context, tx *sqlx.Tx, handle string) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM users WHERE handle = ?`), handle); err != nil {
		return false, storeErr("handle_owned", err)
	}
	return n > 0, nil
}

func (s *SQLStore) UpsertPost(ctx context.Context, p model.Post) (out model.Post, err error) {
	defer observe("upsert_post", &err)()
	if p.ID == "" {
		return model.Post{}, fmt.Errorf("%w: empty post id", model.ErrInvalidRecord)
	}
	err = s.withTx(ctx, "upsert_post", func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM users WHERE id = ?`), p.AuthorID); err != nil {
			return storeErr("upsert_post", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: post %s author %d", model.ErrUnknownReference, p.ID, p.AuthorID)
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO posts (`+postColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET engagement_count = CASE
				WHEN excluded.engagement_count > posts.engagement_count THEN excluded.engagement_count
				ELSE posts.engagement_count END`),
			p.ID, p.AuthorID, p.AuthorHandle, p.Body, p.Engagement, p.Campaign, p.CreatedAt.UTC().UnixMilli())
		if err != nil {
			return storeErr("upsert_post", err)
		}
		var row postRow
		if err := tx.GetContext(ctx, &row, s.q(`SELECT `+postColumns+` FROM posts WHERE id = ?`), p.ID); err != nil {
			return storeErr("upsert_post", err)
		}
		out = row.toModel()
		return nil
	})
	if err != nil {
		return model.Post{}, err
	}
	return out, nil
}

func (s *SQLStore) RecordNomination(ctx context.Context, n model.Nomination) (out model.NominationOutcome, err error) {
	defer observe("record_nomination", &err)()
	if n.NominatorID == n.NomineeID {
		return model.NominationSelf, nil
	}
	out = model.NominationDuplicate
	err = s.withTx(ctx, "record_nomination", func(tx *sqlx.Tx) error {
		var users, posts int
		if err := tx.GetContext(ctx, &users, s.q(`SELECT COUNT(*) FROM users WHERE id IN (?, ?)`), n.NominatorID, n.NomineeID); err != nil {
			return storeErr("record_nomination", err)
		}
		if err := tx.GetContext(ctx, &posts, s.q(`SELECT COUNT(*) FROM posts WHERE id = ?`), n.PostID); err != nil {
			return storeErr("record_nomination", err)
		}
		if users != 2 || posts != 1 {
			return fmt.Errorf("%w: nomination %d->%d on %s", model.ErrUnknownReference, n.NominatorID, n.NomineeID, n.PostID)
		}
		res, err := tx.ExecContext(ctx, s.q(`INSERT INTO nominations (nominator_id, nominee_id, post_id, created_at)
			VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			n.NominatorID, n.NomineeID, n.PostID, n.CreatedAt.UTC().UnixMilli())
		if err != nil {
			return storeErr("record_nomination", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storeErr("record_nomination", err)
		}
		if affected == 1 {
			out = model.NominationRecorded
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

func (s *SQLStore) MarkDailyWinner(ctx context.Context, w model.DailyWinner) (out model.WinnerOutcome, err error) {
	defer observe("mark_daily_winner", &err)()
	out = model.WinnerAlreadySet
	err = s.withTx(ctx, "mark_daily_winner", func(tx *sqlx.Tx) error {
		var users, posts int
		if err := tx.GetContext(ctx, &users, s.q(`SELECT COUNT(*) FROM users WHERE id = ?`), w.UserID); err != nil {
			return storeErr("mark_daily_winner", err)
		}
		if err := tx.GetContext(ctx, &posts, s.q(`SELECT COUNT(*) FROM posts WHERE id = ?`), w.PostID); err != nil {
			return storeErr("mark_daily_winner", err)
		}
		if users != 1 || posts != 1 {
			return fmt.Errorf("%w: winner %d post %s", model.ErrUnknownReference, w.UserID, w.PostID)
		}
		res, err := tx.ExecContext(ctx, s.q(`INSERT INTO daily_winners (day, user_id, post_id, created_at)
			VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			string(w.Day), w.UserID, w.PostID, w.CreatedAt.UTC().UnixMilli())
		if err != nil {
			return storeErr("mark_daily_winner", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storeErr("mark_daily_winner", err)
		}
		if affected == 1 {
			out = model.WinnerRecorded
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (model.User, bool, error) {
	var row userRow
	err := s.rdb.GetContext(ctx, &row, s.q(`SELECT id, handle FROM users WHERE id = ?`), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.User{}, false, nil
	case err != nil:
		return model.User{}, false, storeErr("get_user", err)
	}
	return model.User{ID: row.ID, Handle: row.Handle}, true, nil
}

func (s *SQLStore) UserByHandle(ctx context.Context, handle string) (model.User, bool, error) {
	var row userRow
	err := s.rdb.GetContext(ctx, &row, s.q(`SELECT id, handle FROM users WHERE handle = ?`), handle)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.User{}, false, nil
	case err != nil:
		return model.User{}, false, storeErr("user_by_handle", err)
	}
	return model.User{ID: row.ID, Handle: row.Handle}, true, nil
}

func (s *SQLStore) GetPost(ctx context.Context, id string) (model.Post, bool, error) {
	var row postRow
	err := s.rdb.GetContext(ctx, &row, s.q(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Post{}, false, nil
	case err != nil:
		return model.Post{}, false, storeErr("get_post", err)
	}
	return row.toModel(), true, nil
}

func (s *SQLStore) Leaderboard(ctx context.Context, limit int) (out []model.LeaderboardEntry, err error) {
	defer observe("leaderboard", &err)()
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	var rows []leaderboardRow
	err = s.rdb.SelectContext(ctx, &rows, s.q(`SELECT n.nominee_id AS user_id, u.handle AS handle, COUNT(*) AS points
		FROM nominations n JOIN users u ON u.id = n.nominee_id
		GROUP BY n.nominee_id, u.handle
		ORDER BY points DESC, n.nominee_id ASC
		LIMIT ?`), limit)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	out = make([]model.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LeaderboardEntry{UserID: r.UserID, Handle: r.Handle, Points: r.Points})
	}
	assignRanksWithTies(out)
	return out, nil
}

func (s *SQLStore) DailyWinner(ctx context.Context, day model.Day) (model.DailyWinner, bool, error) {
	var row winnerRow
	err := s.rdb.GetContext(ctx, &row, s.q(`SELECT day, user_id, post_id, created_at FROM daily_winners WHERE day = ?`), string(day))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.DailyWinner{}, false, nil
	case err != nil:
		return model.DailyWinner{}, false, storeErr("daily_winner", err)
	}
	return model.DailyWinner{
		Day:       model.Day(row.Day),
		UserID:    row.UserID,
		PostID:    row.PostID,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
	}, true, nil
}

func (s *SQLStore) TopPostsSince(ctx context.Context, since time.Time, limit int) (out []model.Post, err error) {
	defer observe("top_posts_since", &err)()
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	var rows []postRow
	err = s.rdb.SelectContext(ctx, &rows, s.q(`SELECT `+postColumns+` FROM posts
		WHERE created_at >= ?
		ORDER BY engagement_count DESC, created_at DESC, id ASC
		LIMIT ?`), since.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, storeErr("top_posts_since", err)
	}
	return toPosts(rows), nil
}

func (s *SQLStore) CampaignPostsBetween(ctx context.Context, start, end time.Time) (out []model.Post, err error) {
	defer observe("campaign_posts_between", &err)()
	var rows []postRow
	err = s.rdb.SelectContext(ctx, &rows, s.q(`SELECT `+postColumns+` FROM posts
		WHERE campaign = ? AND created_at >= ? AND created_at < ?
		ORDER BY engagement_count DESC, created_at ASC, id ASC`),
		true, start.UTC().UnixMilli(), end.UTC().UnixMilli())
	if err != nil {
		return nil, storeErr("campaign_posts_between", err)
	}
	return toPosts(rows), nil
}

func toPosts(rows []postRow) []model.Post {
	out := make([]model.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func (s *SQLStore) Stats(ctx context.Context) (st model.Stats, err error) {
	defer observe("stats", &err)()
	counts := []struct {
		table string
		dst   *int
	}{
		{"users", &st.Users},
		{"posts", &st.Posts},
		{"nominations", &st.Nominations},
		{"daily_winners", &st.DailyWinners},
	}
	for _, c := range counts {
		if err := s.rdb.GetContext(ctx, c.dst, `SELECT COUNT(*) FROM `+c.table); err != nil {
			return model.Stats{}, storeErr("stats", err)
		}
	}
	recordStats(st)
	return st, nil
}

func (s *SQLStore) Close() error {
	if s.rdb != s.db {
		if err := s.rdb.Close(); err != nil {
			_ = s.db.Close()
			return err
		}
	}
	return s.db.Close()
}
