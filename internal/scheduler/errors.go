package scheduler

import "errors"

var (
	// ErrFetch marks a cycle that failed while reading the feed.
	ErrFetch = errors.New("fetch failed")
	// ErrIngest marks a cycle that failed while applying a batch.
	ErrIngest = errors.New("ingest failed")
	// ErrStopped is returned for requests made after the loop exited.
	ErrStopped = errors.New("scheduler stopped")
)
