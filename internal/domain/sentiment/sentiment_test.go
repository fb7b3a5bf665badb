package sentiment_test

import (
	"testing"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/sentiment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTag(t *testing.T) {
	Convey("Given feedback comments", t, func() {
		Convey("Empty and whitespace comments are neutral", func() {
			So(sentiment.Tag(""), ShouldEqual, sentiment.Neutral)
			So(sentiment.Tag("  \n\t"), ShouldEqual, sentiment.Neutral)
		})

		Convey("A positive keyword wins", func() {
			So(sentiment.Tag("I LOVE this workshop"), ShouldEqual, sentiment.Positive)
			So(sentiment.Tag("Good talk"), ShouldEqual, sentiment.Positive)
		})

		Convey("Positive is checked before negative", func() {
			So(sentiment.Tag("good content, bad audio"), ShouldEqual, sentiment.Positive)
		})

		Convey("Negative keywords apply when no positive one matches", func() {
			So(sentiment.Tag("Worst seminar ever"), ShouldEqual, sentiment.Negative)
			So(sentiment.Tag("poor organisation"), ShouldEqual, sentiment.Negative)
		})

		Convey("Matching is by substring", func() {
			So(sentiment.Tag("goodness"), ShouldEqual, sentiment.Positive)
			So(sentiment.Tag("badminton finals"), ShouldEqual, sentiment.Negative)
		})

		Convey("Other text is neutral", func() {
			So(sentiment.Tag("it was fine"), ShouldEqual, sentiment.Neutral)
		})
	})
}

func TestMode(t *testing.T) {
	Convey("Given lists of sentiment labels", t, func() {
		So(sentiment.Mode(nil), ShouldEqual, "neutral")
		So(sentiment.Mode([]string{"", ""}), ShouldEqual, "neutral")
		So(sentiment.Mode([]string{"negative", "positive", "positive"}), ShouldEqual, "positive")

		Convey("Ties go to the label seen first", func() {
			So(sentiment.Mode([]string{"negative", "positive", "positive", "negative"}), ShouldEqual, "negative")
			So(sentiment.Mode([]string{"positive", "", "negative"}), ShouldEqual, "positive")
		})
	})
}
