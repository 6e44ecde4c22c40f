package api

import (
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithAllowedOrigins sets the CORS origins; empty allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithClock sets the time source for default query windows.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
