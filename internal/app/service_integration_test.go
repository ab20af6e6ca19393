package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
	service "github.com/okian/btcguess/internal/app"
	"github.com/okian/btcguess/internal/domain/model"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
	. "github.com/smartystreets/goconvey/convey"
)

// eventually polls cond until it holds or the timeout passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a short guess duration", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repo := repository.NewMemoryStore()
		src := &stubPrice{price: 50000}
		svc := newService(repo, src,
			service.WithWorkerCount(2),
			service.WithGuessDuration(80*time.Millisecond),
			service.WithCountdownInterval(5*time.Millisecond),
			service.WithResolveRetry(20*time.Millisecond),
			service.WithClearDelay(100*time.Millisecond),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a player places an UP guess", func() {
			g, err := svc.PlaceGuess(ctx, "p1", "up")
			So(err, ShouldBeNil)

			Convey("Then it is pending with a running countdown", func() {
				So(g.Status, ShouldEqual, model.Pending)
				So(g.StartPrice, ShouldEqual, 50000)
				cur, tick, err := svc.Current(ctx, "p1")
				So(err, ShouldBeNil)
				So(cur.ID, ShouldEqual, g.ID)
				So(tick.State, ShouldEqual, countdown.Running)
			})

			Convey("Then a second guess is refused while pending", func() {
				_, err := svc.PlaceGuess(ctx, "p1", "down")
				So(errors.Is(err, game.ErrGuessPending), ShouldBeTrue)
			})

			Convey("Then an early manual resolve is refused", func() {
				_, err := svc.Resolve(ctx, "p1", g.ID)
				So(errors.Is(err, game.ErrInvalidState), ShouldBeTrue)
			})

			Convey("And the price rises before the countdown ends", func() {
				src.set(50100, nil)

				Convey("Then the workers resolve it as a win", func() {
					ok := eventually(2*time.Second, func() bool {
						stored, err := repo.Get(ctx, "p1", g.ID)
						return err == nil && stored.Status == model.Resolved
					})
					So(ok, ShouldBeTrue)

					sum, err := svc.Score(ctx, "p1")
					So(err, ShouldBeNil)
					So(sum.Total, ShouldEqual, 1)
				})

				Convey("Then the resolved guess is cleared after the delay", func() {
					ok := eventually(2*time.Second, func() bool {
						cur, _, _ := svc.Current(ctx, "p1")
						return cur != nil && cur.Status == model.Resolved
					})
					So(ok, ShouldBeTrue)
					cleared := eventually(2*time.Second, func() bool {
						cur, _, _ := svc.Current(ctx, "p1")
						return cur == nil
					})
					So(cleared, ShouldBeTrue)
				})
			})

			Convey("And the price feed fails at expiry", func() {
				src.set(0, &price.UnavailableError{})
				time.Sleep(150 * time.Millisecond)

				Convey("Then the guess stays pending and is retried once prices return", func() {
					stored, err := repo.Get(ctx, "p1", g.ID)
					So(err, ShouldBeNil)
					So(stored.Status, ShouldEqual, model.Pending)

					src.set(49000, nil)
					ok := eventually(2*time.Second, func() bool {
						stored, err := repo.Get(ctx, "p1", g.ID)
						return err == nil && stored.Status == model.Resolved && *stored.Score == -1
					})
					So(ok, ShouldBeTrue)
				})
			})
		})

		Convey("When the direction is invalid", func() {
			_, err := svc.PlaceGuess(ctx, "p1", "sideways")
			So(errors.Is(err, game.ErrInvalidState), ShouldBeTrue)
		})

		Convey("When the price is unavailable at placement", func() {
			src.set(0, errors.New("boom"))
			_, err := svc.PlaceGuess(ctx, "p1", "up")

			Convey("Then no guess is created", func() {
				So(errors.Is(err, game.ErrPriceUnavailable), ShouldBeTrue)
				So(repo.Count(), ShouldEqual, 0)
				sess, _ := svc.Session(ctx, "p1")
				So(sess.Store().Snapshot().Error, ShouldEqual, "Failed to fetch Bitcoin price")
			})
		})

		Convey("When a guess is resolved for an unknown id", func() {
			_, err := svc.Resolve(ctx, "p1", "missing")
			So(errors.Is(err, game.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceResume(t *testing.T) {
	Convey("Given a persisted PENDING guess whose countdown already elapsed", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repo := repository.NewMemoryStore()
		old, err := repo.Create(ctx, model.NewGuess{
			Owner: "p1", StartPrice: 50000, Direction: model.Down,
			Status: model.Pending, CreatedAt: time.Now().Add(-2 * time.Minute),
		})
		So(err, ShouldBeNil)

		src := &stubPrice{price: 49900}
		svc := newService(repo, src,
			service.WithCountdownInterval(5*time.Millisecond),
			service.WithClearDelay(time.Minute),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the player's session is opened", func() {
			sess, err := svc.Session(ctx, "p1")
			So(err, ShouldBeNil)

			Convey("Then the guess becomes current and resolves at once", func() {
				ok := eventually(2*time.Second, func() bool {
					cur := sess.Store().Snapshot().CurrentGuess
					return cur != nil && cur.ID == old.ID && cur.Status == model.Resolved
				})
				So(ok, ShouldBeTrue)
				So(*sess.Store().Snapshot().CurrentGuess.Score, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a persisted PENDING guess with time left", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repo := repository.NewMemoryStore()
		created := time.Now().Add(-20 * time.Second)
		old, err := repo.Create(ctx, model.NewGuess{
			Owner: "p1", StartPrice: 50000, Direction: model.Up,
			Status: model.Pending, CreatedAt: created,
		})
		So(err, ShouldBeNil)

		svc := newService(repo, &stubPrice{price: 50000})
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the player's session is opened", func() {
			_, tick, err := svc.Current(ctx, "p1")
			So(err, ShouldBeNil)

			Convey("Then the countdown continues from createdAt", func() {
				So(tick.GuessID, ShouldEqual, old.ID)
				So(tick.State, ShouldEqual, countdown.Running)
				So(tick.Seconds, ShouldBeBetweenOrEqual, 38, 40)
			})
		})
	})
}
