// Package model contains the campaign entities passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account seen as a post author or nomination participant.
type User struct {
	ID     int64  `json:"id" db:"id"`
	Handle string `json:"handle" db:"handle"`
}

// Post is a piece of external content. Only Engagement changes after insert.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     int64     `json:"author_id"`
	AuthorHandle string    `json:"author_handle"` // snapshot at ingestion time
	Body         string    `json:"body"`
	Engagement   int64     `json:"engagement"`
	Campaign     bool      `json:"campaign"` // body carried the campaign tag when first seen
	CreatedAt    time.Time `json:"created_at"`
}

// Nomination is a reply-based endorsement of a post's author.
type Nomination struct {
	NominatorID int64     `json:"nominator_id"`
	NomineeID   int64     `json:"nominee_id"`
	PostID      string    `json:"post_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyWinner is the finalized creator of the day.
type DailyWinner struct {
	Day       Day       `json:"day"`
	UserID    int64     `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is one ranked nominee.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Handle string `json:"handle"`
	Points int    `json:"points"`
}

// Highlight pairs a recorded daily winner with the winning post.
type Highlight struct {
	Winner DailyWinner `json:"winner"`
	Post   Post        `json:"post"`
}

// Stats summarizes store contents.
type Stats struct {
	Users        int `json:"users"`
	Posts        int `json:"posts"`
	Nominations  int `json:"nominations"`
	DailyWinners int `json:"daily_winners"`
}

// NominationOutcome is the non-error result of recording a nomination.
type NominationOutcome int

const (
	NominationRecorded NominationOutcome = iota
	NominationSelf
	NominationDuplicate
)

func (o NominationOutcome) String() string {
	switch o {
	case NominationRecorded:
		return "recorded"
	case NominationSelf:
		return "self_nomination"
	case NominationDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// WinnerOutcome is the non-error result of marking a daily winner.
type WinnerOutcome int

const (
	WinnerRecorded WinnerOutcome = iota
	WinnerAlreadySet
)

func (o WinnerOutcome) String() string {
	if o == WinnerRecorded {
		return "recorded"
	}
	return "already_set"
}

// MessageKind tags an outbound message.
type MessageKind string

const (
	MessageAck         MessageKind = "ack"
	MessageLeaderboard MessageKind = "leaderboard"
	MessageHighlight   MessageKind = "highlight"
)

// Message is an outbound post waiting in the outbox.
type Message struct {
	ID      uuid.UUID
	Kind    MessageKind
	Text    string
	ReplyTo string // empty for top-level posts
}

// NewMessage returns a message with a fresh id.
func NewMessage(kind MessageKind, text, replyTo string) Message {
	return Message{ID: uuid.New(), Kind: kind, Text: text, ReplyTo: replyTo}
}
