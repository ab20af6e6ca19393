package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/btcguess/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		// Point at a file that does not exist so a stray .env cannot leak in.
		noDotEnv(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.GuessDurationMS, convey.ShouldEqual, 60_000)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("BTCGUESS_ADDR", ":8080")
			t.Setenv("BTCGUESS_QUEUE_SIZE", "64")
			t.Setenv("BTCGUESS_WORKER_COUNT", "3")
			t.Setenv("BTCGUESS_GUESS_DURATION_MS", "1500")
			t.Setenv("BTCGUESS_POSTGRES_MAX_CONNS", "4")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.GuessDurationMS, convey.ShouldEqual, 1500)
				convey.So(cfg.PostgresMaxConns, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, "config.yaml", `
addr: ":9090"
storage_driver: redis
redis_addr: "cache:6379"
clear_delay_ms: 2500
`)
			t.Setenv("BTCGUESS_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
				convey.So(cfg.ClearDelayMS, convey.ShouldEqual, 2500)
				convey.So(cfg.GuessDurationMS, convey.ShouldEqual, 60_000) // default
			})
		})

		convey.Convey("When loading config with a TOML file", func() {
			path := writeConfigFile(t, "config.toml", `
addr = ":7070"
worker_count = 5
price_timeout_ms = 750
`)
			t.Setenv("BTCGUESS_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the TOML parser is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 5)
				convey.So(cfg.PriceTimeoutMS, convey.ShouldEqual, 750)
			})
		})

		convey.Convey("When both a file and env vars are set", func() {
			path := writeConfigFile(t, "config.yaml", `
addr: ":9090"
worker_count: 24
`)
			t.Setenv("BTCGUESS_CONFIG", path)
			t.Setenv("BTCGUESS_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When a .env file is present", func() {
			path := writeConfigFile(t, "test.env", "BTCGUESS_JWT_SECRET=from-dotenv\nBTCGUESS_ADDR=:6060\n")
			t.Setenv("BTCGUESS_ENV_FILE", path)
			t.Setenv("BTCGUESS_ADDR", ":5050")
			defer func() { _ = os.Unsetenv("BTCGUESS_JWT_SECRET") }()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset keys without overriding the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "from-dotenv")
				convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
			})
		})

		convey.Convey("When an explicit .env file is missing", func() {
			t.Setenv("BTCGUESS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			path := writeConfigFile(t, "bad.yaml", `invalid: yaml: content: [`)
			t.Setenv("BTCGUESS_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file has an unknown extension", func() {
			path := writeConfigFile(t, "config.json", `{"addr": ":7070"}`)
			t.Setenv("BTCGUESS_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is refused as an unsupported format", func() {
				convey.So(errors.Is(err, config.ErrUnsupportedFormat), convey.ShouldBeTrue)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			t.Setenv("BTCGUESS_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			t.Setenv("BTCGUESS_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			t.Setenv("BTCGUESS_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func noDotEnv(t *testing.T) {
	t.Helper()
	empty := writeConfigFile(t, "empty.env", "")
	t.Setenv("BTCGUESS_ENV_FILE", empty)
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "BTCGUESS_") {
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
