package ingest

import (
	"errors"

	"github.com/okian/creatorboard/internal/domain/model"
)

// ErrAborted marks a batch stopped by a store or transport failure.
var ErrAborted = errors.New("ingestion aborted")

// skippable reports whether err only invalidates the current record.
func skippable(err error) bool {
	return model.IsValidation(err) || errors.Is(err, model.ErrNotFound)
}
