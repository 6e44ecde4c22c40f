package model

import "errors"

var (
	// ErrInvalidHandle indicates a handle failing the syntax rule.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrHandleTaken indicates the handle belongs to another user.
	ErrHandleTaken = errors.New("handle taken by another user")
	// ErrInvalidRecord indicates a malformed feed record.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnknownReference indicates a record pointing at a missing entity.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrNotFound indicates the feed has no such post or user.
	ErrNotFound = errors.New("not found")
)

// IsValidation reports whether err should skip the record rather than abort the batch.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidHandle) ||
		errors.Is(err, ErrHandleTaken) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrUnknownReference)
}
