package simfeed

import "errors"

var (
	// ErrInvalidConfig is returned for datasets that cannot be generated.
	ErrInvalidConfig = errors.New("simfeed: invalid config")
	// ErrMismatch is returned when a live leaderboard differs from the dataset.
	ErrMismatch = errors.New("simfeed: leaderboard mismatch")
	// ErrAPI is returned when the bot API cannot be queried.
	ErrAPI = errors.New("simfeed: api call failed")
)
