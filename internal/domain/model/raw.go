package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,14}[a-z0-9])?$`)

var validate = newValidator() //nolint:gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

// RawUser is an account as returned by the feed.
type RawUser struct {
	ID     int64  `validate:"gt=0"`
	Handle string `validate:"required"`
}

// RawPost is a post as returned by the feed, author embedded.
type RawPost struct {
	ID         string    `validate:"required"`
	AuthorID   int64     `validate:"gt=0"`
	Engagement int64     `validate:"gte=0"`
	CreatedAt  time.Time `validate:"required"`

	AuthorHandle string // may be empty when the feed omits it
	Body         string
	ParentID     string // set on replies
}

// RawMention is a post that mentions the bot account.
type RawMention struct {
	ID        string    `validate:"required"`
	AuthorID  int64     `validate:"gt=0"`
	CreatedAt time.Time `validate:"required"`

	AuthorHandle string
	Body         string
	ParentID     string // empty when the mention is not a reply
}

// IsReply reports whether the mention replies to another post.
func (m RawMention) IsReply() bool { return m.ParentID != "" }

// NormalizeHandle trims whitespace and a leading @ and lowercases h.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

// ValidateHandle checks the handle syntax.
func ValidateHandle(h string) error {
	if err := validate.Var(h, "handle"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, h)
	}
	return nil
}

// ValidatePost checks a raw post's required fields.
func ValidatePost(p RawPost) error { return validateRecord(p) }

// ValidateMention checks a raw mention's required fields.
func ValidateMention(m RawMention) error { return validateRecord(m) }

func validateRecord(rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %s", ErrInvalidRecord, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
}
