// Package repotest holds behaviour tests shared by every repository.Store
// implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/domain/model"
)

// Factory returns a fresh, empty store and a cleanup function.
type Factory func(t *testing.T) (repository.Store, func())

// Run exercises the Store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	convey.Convey("Given an empty guess store", t, func() {
		ctx := context.Background()
		store, cleanup := newStore(t)
		defer cleanup()

		owner := "owner-" + time.Now().Format("150405.000000000")
		created := time.Now().UTC().Truncate(time.Millisecond)

		convey.Convey("When a pending guess is created", func() {
			g, err := store.Create(ctx, model.NewGuess{
				Owner:      owner,
				StartPrice: 50000.12,
				Direction:  model.Up,
				Status:     model.Pending,
				CreatedAt:  created,
			})

			convey.Convey("Then it gets an id and keeps its fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(g.ID, convey.ShouldNotBeEmpty)
				convey.So(g.Owner, convey.ShouldEqual, owner)
				convey.So(g.StartPrice, convey.ShouldEqual, 50000.12)
				convey.So(g.Direction, convey.ShouldEqual, model.Up)
				convey.So(g.Status, convey.ShouldEqual, model.Pending)
				convey.So(g.ResolvedPrice, convey.ShouldBeNil)
				convey.So(g.Score, convey.ShouldBeNil)
				convey.So(g.CreatedAt.Equal(created), convey.ShouldBeTrue)
			})

			convey.Convey("Then it is listed and readable by its owner only", func() {
				list, err := store.List(ctx, owner)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(list), convey.ShouldEqual, 1)
				convey.So(list[0].ID, convey.ShouldEqual, g.ID)

				got, err := store.Get(ctx, owner, g.ID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.ID, convey.ShouldEqual, g.ID)

				_, err = store.Get(ctx, owner+"-other", g.ID)
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)

				others, err := store.List(ctx, owner+"-other")
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(others), convey.ShouldEqual, 0)
			})

			convey.Convey("Then a second pending guess for the same owner conflicts", func() {
				_, err := store.Create(ctx, model.NewGuess{
					Owner:      owner,
					StartPrice: 1,
					Direction:  model.Down,
					Status:     model.Pending,
					CreatedAt:  created,
				})
				convey.So(errors.Is(err, repository.ErrConflict), convey.ShouldBeTrue)
			})

			convey.Convey("And it is resolved conditionally", func() {
				at := created.Add(time.Minute)
				out, err := store.Update(ctx, owner, g.ID, model.Resolution(50100, 1, at), model.Pending)

				convey.Convey("Then status, price and score are persisted together", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(out.Status, convey.ShouldEqual, model.Resolved)
					convey.So(*out.ResolvedPrice, convey.ShouldEqual, 50100)
					convey.So(*out.Score, convey.ShouldEqual, 1)

					again, err := store.Get(ctx, owner, g.ID)
					convey.So(err, convey.ShouldBeNil)
					convey.So(again.Status, convey.ShouldEqual, model.Resolved)
					convey.So(*again.Score, convey.ShouldEqual, 1)
				})

				convey.Convey("Then the owner may place a new pending guess", func() {
					next, err := store.Create(ctx, model.NewGuess{
						Owner:      owner,
						StartPrice: 50100,
						Direction:  model.Down,
						Status:     model.Pending,
						CreatedAt:  at,
					})
					convey.So(err, convey.ShouldBeNil)
					convey.So(next.ID, convey.ShouldNotEqual, g.ID)

					list, _ := store.List(ctx, owner)
					convey.So(len(list), convey.ShouldEqual, 2)
				})

				convey.Convey("Then a second conditional update conflicts", func() {
					_, err := store.Update(ctx, owner, g.ID, model.Resolution(40000, -1, at), model.Pending)
					convey.So(errors.Is(err, repository.ErrConflict), convey.ShouldBeTrue)

					again, _ := store.Get(ctx, owner, g.ID)
					convey.So(*again.Score, convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And concurrent conditional updates race", func() {
				const racers = 8
				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					wins int
				)
				for i := 0; i < racers; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := store.Update(ctx, owner, g.ID, model.Resolution(50100, 1, created), model.Pending)
						if err == nil {
							mu.Lock()
							wins++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()

				convey.Convey("Then exactly one update applies", func() {
					convey.So(wins, convey.ShouldEqual, 1)
				})
			})
		})

		convey.Convey("When updating an unknown id", func() {
			_, err := store.Update(ctx, owner, "00000000-0000-0000-0000-000000000000", model.Resolution(1, 0, created), model.Pending)

			convey.Convey("Then ErrNotFound is returned", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}
