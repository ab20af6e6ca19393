package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
	service "github.com/okian/btcguess/internal/app"
	"github.com/okian/btcguess/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type stubPrice struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (s *stubPrice) GetPrice(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price, s.err
}

func (s *stubPrice) set(p float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = p, err
}

func newService(repo repository.Store, src *stubPrice, opts ...service.Option) *service.Service {
	ticker := price.NewTicker(src)
	return service.New(repo, ticker, append([]service.Option{service.WithoutTickerRefresh()}, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := newService(repository.NewMemoryStore(), &stubPrice{price: 1})

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["guessDurationMs"], ShouldEqual, int64(60000))
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := newService(repository.NewMemoryStore(), &stubPrice{price: 1},
			service.WithWorkerCount(8),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["dedupeSize"], ShouldEqual, 25)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService(repository.NewMemoryStore(), &stubPrice{price: 1}, service.WithWorkerCount(2))
		defer svc.Stop()

		Convey("When operations run before Start", func() {
			_, err := svc.Session(context.Background(), "p1")

			Convey("Then they are refused", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
			})
		})

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["sessions"], ShouldEqual, 0)
			})

			Convey("And stopping it marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
				svc.Stop()
			})
		})
	})
}
