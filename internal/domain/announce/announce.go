// Package announce renders outbound message texts.
package announce

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/creatorboard/internal/domain/model"
)

const (
	leaderboardHeader = "🏆 Top Creators Leaderboard (Based on Nominations):\n\n"
	highlightHeader   = "🎉 Based Creator of the Day! 🎉\n\n"
	ellipsis          = "…"
)

// Option applies a configuration option to the Formatter.
type Option func(*Formatter)

// WithBotHandle sets the account named in the nomination call to action.
func WithBotHandle(handle string) Option {
	return func(f *Formatter) {
		f.botHandle = strings.TrimPrefix(handle, "@")
	}
}

// WithMaxLength caps message length in bytes. Zero disables the cap.
func WithMaxLength(n int) Option {
	return func(f *Formatter) {
		if n >= 0 {
			f.maxLength = n
		}
	}
}

// Formatter builds message texts.
type Formatter struct {
	botHandle string
	maxLength int
}

// NewFormatter creates a formatter. The default cap matches the platform's long post limit.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{maxLength: 1024}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Leaderboard renders ranked entries with the call to action.
func (f *Formatter) Leaderboard(entries []model.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString(leaderboardHeader)
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. @%s - %d %s\n", e.Rank, e.Handle, e.Points, plural(e.Points))
	}
	if f.botHandle != "" {
		fmt.Fprintf(&b, "\nNominate your favorite creators by tagging @%s in the comments of their posts!", f.botHandle)
	}
	return f.clip(b.String())
}

// Highlight announces the creator of the day. Only the post body is shortened.
func (f *Formatter) Highlight(handle, body string) string {
	head := highlightHeader + fmt.Sprintf("Congratulations to @%s for their awesome creation:\n\n", handle)
	if f.maxLength > 0 && len(head)+len(body) > f.maxLength {
		body = truncate(body, f.maxLength-len(head))
	}
	return head + body
}

// Ack thanks the nominator.
func (f *Formatter) Ack(nominatorHandle string) string {
	return fmt.Sprintf("Thanks for the nomination, @%s! I've recorded it.", nominatorHandle)
}

func (f *Formatter) clip(s string) string {
	if f.maxLength > 0 && len(s) > f.maxLength {
		return truncate(s, f.maxLength)
	}
	return s
}

// truncate cuts s to at most n bytes on a rune boundary, ending with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	n -= len(ellipsis)
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + ellipsis
}

func plural(points int) string {
	if points == 1 {
		return "point"
	}
	return "points"
}
