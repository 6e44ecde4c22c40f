package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/okian/creatorboard/pkg/logger"
)

type settings struct {
	log    logger.Logger
	readDB *sqlx.DB
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReadDB gives a SQL store a separate pool for queries. The store
// closes it on Close.
func WithReadDB(db *sqlx.DB) Option {
	return func(s *settings) { s.readDB = db }
}

func newSettings(opts []Option) settings {
	s := settings{log: logger.Discard()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
