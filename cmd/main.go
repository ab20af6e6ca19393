package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/btcguess/internal/adapters/http/api"
	"github.com/okian/btcguess/internal/adapters/http/site"
	"github.com/okian/btcguess/internal/adapters/http/swagger"
	"github.com/okian/btcguess/internal/adapters/identity"
	"github.com/okian/btcguess/internal/adapters/price"
	"github.com/okian/btcguess/internal/adapters/repository"
	"github.com/okian/btcguess/internal/adapters/repository/postgres"
	"github.com/okian/btcguess/internal/adapters/repository/redis"
	app "github.com/okian/btcguess/internal/app"
	"github.com/okian/btcguess/internal/config"
	"github.com/okian/btcguess/internal/domain/dedupe"
	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	connectTimeout            = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be available yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing storage failed", logger.Error(err))
		}
	}()

	auth, err := newIdentity(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create identity provider: %w", err)
	}

	svc := newService(cfg, store, newTicker(cfg, log), log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	mux, apiServer := newMux(ctx, svc, auth)
	defer apiServer.Shutdown()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.StorageDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		// Websocket connections are hijacked; srv.Shutdown does not close them.
		apiServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// openStore connects the configured guess repository.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		s, err := postgres.Open(cctx, postgres.ClientConfig{DSN: cfg.PostgresDSN, MaxConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, nil
	case config.StorageRedis:
		s, err := redis.Open(cctx, redis.ClientConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// newTicker builds the price ticker over the primary and fallback providers.
func newTicker(cfg *config.Config, log logger.Logger) *price.Ticker {
	client := &http.Client{Timeout: cfg.PriceTimeout()}
	providers := []price.Provider{price.NewCoinbaseTicker(cfg.PricePrimaryURL, client)}
	if cfg.PriceFallbackURL != "" {
		providers = append(providers, price.NewCoinbaseRates(cfg.PriceFallbackURL, client))
	}
	chain := price.NewChain(providers,
		price.WithAttemptTimeout(cfg.PriceTimeout()),
		price.WithLogger(log.Named("price")),
	)
	return price.NewTicker(chain, price.WithInterval(cfg.TickerInterval()))
}

func newIdentity(cfg *config.Config, log logger.Logger) (*identity.Local, error) {
	l := log.Named("identity")
	if cfg.JWTSecret == config.DevJWTSecret {
		l.Warn(context.Background(), "using the development jwt secret; set BTCGUESS_JWT_SECRET")
	}
	return identity.NewLocal([]byte(cfg.JWTSecret),
		identity.WithTokenTTL(cfg.TokenTTL()),
		identity.WithRevocationSet(dedupe.NewInMemoryDeduper(dedupe.WithTTL(cfg.TokenTTL()))),
		identity.WithCodeSender(identity.LogSender{Logger: l}),
		identity.WithLogger(l),
	)
}

func newService(cfg *config.Config, store repository.Store, ticker *price.Ticker, log logger.Logger) *app.Service {
	return app.New(store, ticker,
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithGuessDuration(cfg.GuessDuration()),
		app.WithCountdownInterval(cfg.CountdownInterval()),
		app.WithResolveRetry(cfg.ResolveRetry()),
		app.WithClearDelay(cfg.ClearDelay()),
	)
}

// newMux registers the API, the API reference and the player page.
func newMux(ctx context.Context, svc *app.Service, auth identity.Provider) (*http.ServeMux, *api.Server) {
	mux := http.NewServeMux()

	apiServer := api.NewServer(svc, auth, svc)
	apiServer.Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	return mux, apiServer
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies service stats into gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if sessions, ok := stats["sessions"].(int); ok {
		metrics.UpdateActiveSessions(sessions)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
