package repository

import "errors"

var (
	// ErrStore wraps failures of the underlying persistence layer.
	ErrStore = errors.New("store failure")
	// ErrInvalidLimit indicates a non-positive query limit.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrUnknownDriver indicates an unsupported store driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)
