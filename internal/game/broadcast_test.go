package game_test

import (
	"testing"

	"github.com/okian/btcguess/internal/game"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBroadcaster(t *testing.T) {
	Convey("Given a broadcaster with one subscriber", t, func() {
		b := game.NewBroadcaster[int]()
		ch, cancel := b.Subscribe()

		Convey("When values are published faster than they are read", func() {
			b.Publish(1)
			b.Publish(2)

			Convey("Then the subscriber sees only the latest", func() {
				So(<-ch, ShouldEqual, 2)
			})
		})

		Convey("When the subscriber cancels twice", func() {
			cancel()
			cancel()

			Convey("Then its channel is closed and it is dropped", func() {
				_, ok := <-ch
				So(ok, ShouldBeFalse)
				So(b.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the broadcaster is closed", func() {
			b.Close()
			_, ok := <-ch
			So(ok, ShouldBeFalse)

			Convey("Then a late subscriber gets a closed channel", func() {
				late, lateCancel := b.Subscribe()
				_, ok := <-late
				So(ok, ShouldBeFalse)
				So(b.Len(), ShouldEqual, 0)
				So(lateCancel, ShouldNotPanic)
			})

			Convey("Then publishing is a no-op", func() {
				So(func() { b.Publish(3) }, ShouldNotPanic)
			})
		})
	})
}
