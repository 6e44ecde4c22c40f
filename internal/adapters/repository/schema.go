package repository

// schema is portable between sqlite and postgres. Timestamps are unix
// milliseconds in UTC.
var schema = []string{ //nolint:gochecknoglobals // static DDL
	`CREATE TABLE IF NOT EXISTS users (
		id     BIGINT PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id               TEXT PRIMARY KEY,
		author_id        BIGINT NOT NULL REFERENCES users (id),
		author_handle    TEXT NOT NULL,
		body             TEXT NOT NULL,
		engagement_count BIGINT NOT NULL DEFAULT 0,
		campaign         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at)`,
	`CREATE TABLE IF NOT EXISTS nominations (
		nominator_id BIGINT NOT NULL REFERENCES users (id),
		nominee_id   BIGINT NOT NULL REFERENCES users (id),
		post_id      TEXT NOT NULL REFERENCES posts (id),
		created_at   BIGINT NOT NULL,
		PRIMARY KEY (nominator_id, post_id),
		CHECK (nominator_id <> nominee_id)
	)`,
	`CREATE INDEX IF NOT EXISTS nominations_nominee_idx ON nominations (nominee_id)`,
	`CREATE TABLE IF NOT EXISTS daily_winners (
		day        TEXT PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id),
		post_id    TEXT NOT NULL REFERENCES posts (id),
		created_at BIGINT NOT NULL
	)`,
	// A user is creator of the day at most once.
	`CREATE UNIQUE INDEX IF NOT EXISTS daily_winners_user_idx ON daily_winners (user_id)`,
}
