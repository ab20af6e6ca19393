package tally_test

import (
	"testing"

	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/domain/tally"
	. "github.com/smartystreets/goconvey/convey"
)

func resolved(score int) model.Guess {
	return model.Guess{Status: model.Resolved, Score: &score}
}

func TestTotal(t *testing.T) {
	Convey("Given resolved guesses scored +1, -1, 0, +1 and one pending", t, func() {
		history := []model.Guess{
			resolved(1),
			resolved(-1),
			resolved(0),
			resolved(1),
			{Status: model.Pending},
		}

		Convey("When totalling", func() {
			total := tally.Total(history)

			Convey("Then the pending guess is excluded", func() {
				So(total, ShouldEqual, 1)
			})
		})

		Convey("When summarizing", func() {
			s := tally.Summarize(history)

			Convey("Then outcomes are counted", func() {
				So(s, ShouldResemble, tally.Summary{Total: 1, Wins: 2, Losses: 1, Ties: 1, Pending: 1})
			})
		})
	})

	Convey("Given an empty history or a resolved guess without score", t, func() {
		Convey("Then the total is zero", func() {
			So(tally.Total(nil), ShouldEqual, 0)
			So(tally.Total([]model.Guess{{Status: model.Resolved}}), ShouldEqual, 0)
		})
	})
}
