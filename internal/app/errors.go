package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidDay marks a malformed day parameter.
	ErrInvalidDay = errors.New("invalid day")
)
