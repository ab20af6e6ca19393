package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the btcguess namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "btcguess")
				So(manager.subsystem, ShouldEqual, "game")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.guessesCreated.Inc()

			Convey("Then collectors carry the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, mf := range families {
					if mf.GetName() != "test_unit_guesses_created_total" {
						continue
					}
					found = true
					So(mf.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "btcguess")
				So(manager.subsystem, ShouldEqual, "game")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGameMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When guesses are created and resolved", func() {
			before := testutil.ToFloat64(globalManager.guessesCreated)
			winsBefore := testutil.ToFloat64(globalManager.guessesResolved.WithLabelValues("win"))

			RecordGuessCreated()
			RecordGuessCreated()
			RecordGuessResolved("win")
			RecordResolutionLatency(12.5)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.guessesCreated), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.guessesResolved.WithLabelValues("win")), ShouldEqual, winsBefore+1)
			})
		})

		Convey("When countdowns start and stop", func() {
			base := testutil.ToFloat64(globalManager.countdownsRunning)
			CountdownStarted()
			CountdownStarted()
			CountdownStopped()

			Convey("Then the gauge tracks the running loops", func() {
				So(testutil.ToFloat64(globalManager.countdownsRunning), ShouldEqual, base+1)
				CountdownStopped()
			})
		})

		Convey("When the price feed reports", func() {
			okBefore := testutil.ToFloat64(globalManager.priceFetches.WithLabelValues("coinbase-exchange", "ok"))
			RecordPriceFetch("coinbase-exchange", "ok", 42)
			UpdateLastPrice(50000.25)

			Convey("Then fetches and the last price are exported", func() {
				So(testutil.ToFloat64(globalManager.priceFetches.WithLabelValues("coinbase-exchange", "ok")), ShouldEqual, okBefore+1)
				So(testutil.ToFloat64(globalManager.lastPrice), ShouldEqual, 50000.25)
			})
		})

		Convey("When sessions and websocket clients change", func() {
			UpdateActiveSessions(3)
			base := testutil.ToFloat64(globalManager.websocketClients)
			WebsocketConnected()

			Convey("Then gauges follow", func() {
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.websocketClients), ShouldEqual, base+1)
				WebsocketDisconnected()
			})
		})
	})
}

func TestOperationalMetrics(t *testing.T) {
	Convey("Given operational metrics", t, func() {
		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When recording HTTP, auth and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/guesses", "POST", "201")
				RecordHTTPRequestDuration("/guesses", "POST", "201", 5.0)
				RecordErrorByEndpoint("/guesses", "POST", "conflict")
				RecordAuthEvent("sign_in", "ok")
				RecordResolutionError("price_unavailable")
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When gathering the registry", func() {
			_, err := GetRegistry().Gather()

			Convey("Then it succeeds", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
