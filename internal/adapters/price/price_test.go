package price_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func jsonServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestCoinbaseProviders(t *testing.T) {
	Convey("Given the Coinbase ticker endpoint", t, func() {
		Convey("When it returns a price string", func() {
			srv := jsonServer(http.StatusOK, `{"price":"50123.45","size":"0.1","bid":"50123.4","ask":"50123.5"}`)
			defer srv.Close()

			p, err := price.NewCoinbaseTicker(srv.URL, nil).Quote(context.Background())

			Convey("Then the price is parsed", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 50123.45)
			})
		})

		Convey("When it returns a non-OK status", func() {
			srv := jsonServer(http.StatusServiceUnavailable, `{}`)
			defer srv.Close()

			_, err := price.NewCoinbaseTicker(srv.URL, nil).Quote(context.Background())

			Convey("Then the status is reported", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldEqual, "Coinbase API error: 503")
			})
		})

		Convey("When the price is missing or zero", func() {
			for _, body := range []string{`{}`, `{"price":"0"}`, `{"price":"-1"}`, `{"price":"abc"}`} {
				srv := jsonServer(http.StatusOK, body)
				_, err := price.NewCoinbaseTicker(srv.URL, nil).Quote(context.Background())
				srv.Close()

				So(errors.Is(err, price.ErrBadQuote), ShouldBeTrue)
			}
		})

		Convey("When the body is not JSON", func() {
			srv := jsonServer(http.StatusOK, `<html>`)
			defer srv.Close()

			_, err := price.NewCoinbaseTicker(srv.URL, nil).Quote(context.Background())

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given the Coinbase exchange-rates endpoint", t, func() {
		srv := jsonServer(http.StatusOK, `{"data":{"currency":"BTC","rates":{"USD":"49999.99","EUR":"45000"}}}`)
		defer srv.Close()

		p, err := price.NewCoinbaseRates(srv.URL, nil).Quote(context.Background())

		Convey("Then the USD rate is used", func() {
			So(err, ShouldBeNil)
			So(p, ShouldEqual, 49999.99)
		})
	})
}

func TestChain(t *testing.T) {
	Convey("Given a primary and a fallback provider", t, func() {
		ctx := context.Background()

		Convey("When the primary works", func() {
			primary := jsonServer(http.StatusOK, `{"price":"50000"}`)
			defer primary.Close()
			var fallbackHits atomic.Int32
			fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fallbackHits.Add(1)
			}))
			defer fallback.Close()

			chain := price.NewChain([]price.Provider{
				price.NewCoinbaseTicker(primary.URL, nil),
				price.NewCoinbaseRates(fallback.URL, nil),
			})
			p, err := chain.GetPrice(ctx)

			Convey("Then the fallback is not consulted", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 50000)
				So(fallbackHits.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the primary fails and the fallback works", func() {
			primary := jsonServer(http.StatusInternalServerError, `{}`)
			defer primary.Close()
			fallback := jsonServer(http.StatusOK, `{"data":{"rates":{"USD":"50100.5"}}}`)
			defer fallback.Close()

			chain := price.NewChain([]price.Provider{
				price.NewCoinbaseTicker(primary.URL, nil),
				price.NewCoinbaseRates(fallback.URL, nil),
			})
			p, err := chain.GetPrice(ctx)

			Convey("Then the fallback price is returned", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 50100.5)
			})
		})

		Convey("When both fail", func() {
			primary := jsonServer(http.StatusInternalServerError, `{}`)
			defer primary.Close()
			fallback := jsonServer(http.StatusBadGateway, `{}`)
			defer fallback.Close()

			chain := price.NewChain([]price.Provider{
				price.NewCoinbaseTicker(primary.URL, nil),
				price.NewCoinbaseRates(fallback.URL, nil),
			})
			_, err := chain.GetPrice(ctx)

			Convey("Then one PriceUnavailable error carries both reasons", func() {
				So(errors.Is(err, price.ErrUnavailable), ShouldBeTrue)
				So(err.Error(), ShouldEqual,
					"Failed to fetch Bitcoin price: Coinbase API error: 500. Fallback also failed: Coinbase fallback API error: 502")

				var ue *price.UnavailableError
				So(errors.As(err, &ue), ShouldBeTrue)
				So(len(ue.Attempts), ShouldEqual, 2)
				So(ue.Attempts[0].Provider, ShouldEqual, "coinbase-exchange")
			})
		})

		Convey("When the primary hangs past the attempt timeout", func() {
			release := make(chan struct{})
			primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer primary.Close()
			defer close(release)
			fallback := jsonServer(http.StatusOK, `{"data":{"rates":{"USD":"42000"}}}`)
			defer fallback.Close()

			chain := price.NewChain([]price.Provider{
				price.NewCoinbaseTicker(primary.URL, nil),
				price.NewCoinbaseRates(fallback.URL, nil),
			}, price.WithAttemptTimeout(50*time.Millisecond))

			start := time.Now()
			p, err := chain.GetPrice(ctx)

			Convey("Then the fallback answers within the budget", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 42000)
				So(time.Since(start), ShouldBeLessThan, 2*time.Second)
			})
		})

		Convey("When many callers ask at once", func() {
			var hits atomic.Int32
			primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				time.Sleep(50 * time.Millisecond)
				_, _ = w.Write([]byte(`{"price":"51000"}`))
			}))
			defer primary.Close()

			chain := price.NewChain([]price.Provider{price.NewCoinbaseTicker(primary.URL, nil)})

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = chain.GetPrice(ctx)
				}()
			}
			wg.Wait()

			Convey("Then they share upstream requests", func() {
				So(hits.Load(), ShouldBeLessThan, 10)
			})
		})
	})
}

type stubSource struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (s *stubSource) GetPrice(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price, s.err
}

func (s *stubSource) set(p float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = p, err
}

func TestTicker(t *testing.T) {
	Convey("Given a ticker over a stub source", t, func() {
		src := &stubSource{price: 50000}
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tk := price.NewTicker(src, price.WithClock(func() time.Time { return at }))

		Convey("Then it starts empty", func() {
			s := tk.Snapshot()
			So(s.Price, ShouldBeNil)
			So(s.IsLoading, ShouldBeFalse)
			So(s.LastUpdated, ShouldBeNil)
		})

		Convey("When a fetch succeeds", func() {
			p, err := tk.FetchPrice(context.Background())
			s := tk.Snapshot()

			Convey("Then price and lastUpdated are stored", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 50000)
				So(*s.Price, ShouldEqual, 50000)
				So(*s.LastUpdated, ShouldEqual, at)
				So(s.Error, ShouldBeEmpty)
			})

			Convey("And a later fetch fails", func() {
				src.set(0, errors.New("Failed to fetch Bitcoin price: boom"))
				_, err := tk.GetPrice(context.Background())
				s := tk.Snapshot()

				Convey("Then the old price stays and the error is recorded", func() {
					So(err, ShouldNotBeNil)
					So(*s.Price, ShouldEqual, 50000)
					So(s.Error, ShouldEqual, "Failed to fetch Bitcoin price: boom")
					So(s.IsLoading, ShouldBeFalse)
				})
			})
		})

		Convey("When Run is started with a short interval", func() {
			tk := price.NewTicker(src, price.WithInterval(10*time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				tk.Run(ctx)
				close(done)
			}()
			time.Sleep(30 * time.Millisecond)
			cancel()
			<-done

			Convey("Then it refreshed the price and stopped on cancel", func() {
				So(tk.Snapshot().Price, ShouldNotBeNil)
			})
		})
	})
}
