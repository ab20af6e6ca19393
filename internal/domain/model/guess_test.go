package model_test

import (
	"testing"
	"time"

	"github.com/okian/btcguess/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDirection(t *testing.T) {
	convey.Convey("Given direction strings", t, func() {
		convey.Convey("When parsing known values in any case", func() {
			up, okUp := model.ParseDirection(" up ")
			down, okDown := model.ParseDirection("DOWN")

			convey.Convey("Then they map to UP and DOWN", func() {
				convey.So(okUp, convey.ShouldBeTrue)
				convey.So(up, convey.ShouldEqual, model.Up)
				convey.So(okDown, convey.ShouldBeTrue)
				convey.So(down, convey.ShouldEqual, model.Down)
			})
		})

		convey.Convey("When parsing an unknown value", func() {
			_, ok := model.ParseDirection("sideways")

			convey.Convey("Then it is rejected", func() {
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(model.Direction("").Valid(), convey.ShouldBeFalse)
			})
		})
	})
}

func TestGuessPatch(t *testing.T) {
	convey.Convey("Given a pending guess", t, func() {
		created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		g := model.Guess{
			ID:         "g-1",
			Owner:      "u-1",
			StartPrice: 50000,
			Direction:  model.Up,
			Status:     model.Pending,
			CreatedAt:  created,
			UpdatedAt:  created,
		}

		convey.Convey("When a resolution patch is applied", func() {
			at := created.Add(time.Minute)
			out := g.Apply(model.Resolution(50100, 1, at))

			convey.Convey("Then status, price and score are set together", func() {
				convey.So(out.Status, convey.ShouldEqual, model.Resolved)
				convey.So(*out.ResolvedPrice, convey.ShouldEqual, 50100)
				convey.So(*out.Score, convey.ShouldEqual, 1)
				convey.So(out.UpdatedAt, convey.ShouldEqual, at)
			})

			convey.Convey("Then immutable fields are untouched", func() {
				convey.So(out.StartPrice, convey.ShouldEqual, 50000)
				convey.So(out.Direction, convey.ShouldEqual, model.Up)
				convey.So(out.CreatedAt, convey.ShouldEqual, created)
			})

			convey.Convey("Then the original is not mutated", func() {
				convey.So(g.IsPending(), convey.ShouldBeTrue)
				convey.So(g.ResolvedPrice, convey.ShouldBeNil)
			})
		})

		convey.Convey("When an empty patch is applied", func() {
			out := g.Apply(model.Patch{})

			convey.Convey("Then the guess is unchanged", func() {
				convey.So(out, convey.ShouldResemble, g)
			})
		})

		convey.Convey("When a resolved guess is cloned", func() {
			resolved := g.Apply(model.Resolution(49000, -1, created))
			c := resolved.Clone()
			*c.Score = 0

			convey.Convey("Then the clone does not share pointers", func() {
				convey.So(*resolved.Score, convey.ShouldEqual, -1)
			})
		})
	})
}
