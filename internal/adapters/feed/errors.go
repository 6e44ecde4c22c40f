package feed

import (
	"errors"
	"fmt"

	"github.com/okian/creatorboard/internal/domain/model"
)

var (
	// ErrTransport marks a failed or rejected feed call.
	ErrTransport = errors.New("feed transport error")
	// ErrPublish marks a message the platform did not accept.
	ErrPublish = errors.New("publish failed")
	// ErrNotFound marks a post or user the feed does not know.
	ErrNotFound = fmt.Errorf("feed: %w", model.ErrNotFound)
)
