package announce

import (
	"strings"
	"testing"
	"unicode/utf8"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creatorboard/internal/domain/model"
)

func TestLeaderboardText(t *testing.T) {
	Convey("Given a formatter for the bot account", t, func() {
		f := NewFormatter(WithBotHandle("@theo"))

		Convey("When ranked entries are rendered", func() {
			text := f.Leaderboard([]model.LeaderboardEntry{
				{Rank: 1, UserID: 1, Handle: "alice", Points: 3},
				{Rank: 2, UserID: 2, Handle: "bob", Points: 1},
			})

			Convey("Then each line shows position, handle and points", func() {
				So(text, ShouldEqual, "🏆 Top Creators Leaderboard (Based on Nominations):\n\n"+
					"1. @alice - 3 points\n"+
					"2. @bob - 1 point\n"+
					"\nNominate your favorite creators by tagging @theo in the comments of their posts!")
			})
		})

		Convey("When nobody has been nominated yet", func() {
			text := f.Leaderboard(nil)
			So(text, ShouldStartWith, "🏆 Top Creators Leaderboard")
			So(text, ShouldContainSubstring, "@theo")
		})
	})
}

func TestHighlightAndAck(t *testing.T) {
	Convey("Given a formatter", t, func() {
		f := NewFormatter()

		Convey("When the creator of the day is announced", func() {
			text := f.Highlight("bob", "Today on Base I created a mural")
			So(text, ShouldEqual, "🎉 Based Creator of the Day! 🎉\n\nCongratulations to @bob for their awesome creation:\n\nToday on Base I created a mural")
		})

		Convey("When a nomination is acknowledged", func() {
			So(f.Ack("carol"), ShouldEqual, "Thanks for the nomination, @carol! I've recorded it.")
		})

		Convey("When the body exceeds the length cap", func() {
			short := NewFormatter(WithMaxLength(120))
			text := short.Highlight("bob", strings.Repeat("é", 200))

			Convey("Then only the body is cut, on a rune boundary", func() {
				So(len(text), ShouldBeLessThanOrEqualTo, 120)
				So(utf8.ValidString(text), ShouldBeTrue)
				So(text, ShouldStartWith, "🎉 Based Creator of the Day!")
				So(text, ShouldEndWith, "…")
			})
		})

		Convey("When the cap is disabled", func() {
			long := strings.Repeat("x", 5000)
			So(NewFormatter(WithMaxLength(0)).Highlight("bob", long), ShouldEndWith, long)
		})
	})
}
