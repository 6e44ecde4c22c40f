package feed

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/creatorboard/pkg/logger"
)

// LogPublisher logs messages instead of posting them.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher returns a publisher for dry runs.
func NewLogPublisher(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.Discard()
	}
	return &LogPublisher{log: l}
}

// PublishMessage logs text and returns a synthetic id.
func (p *LogPublisher) PublishMessage(ctx context.Context, text, replyTo string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "dry-run-" + uuid.NewString()
	p.log.Info(ctx, "dry run publish",
		logger.String("external_id", id),
		logger.String("reply_to", replyTo),
		logger.String("text", text))
	return id, nil
}
