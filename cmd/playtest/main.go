package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/btcguess/internal/playtest"
)

// Default configuration constants.
const (
	defaultRounds  = 3
	defaultTimeout = 10 * time.Second
	defaultMaxWait = 2 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		username = flag.String("user", os.Getenv("BTCGUESS_PLAYTEST_USER"), "Player email")
		password = flag.String("password", os.Getenv("BTCGUESS_PLAYTEST_PASSWORD"), "Player password")
		signUp   = flag.Bool("signup", false, "Register the player first")
		code     = flag.String("code", "", "Confirmation code of a previous -signup")
		rounds   = flag.Int("rounds", defaultRounds, "Number of guesses to play")
		strategy = flag.String("strategy", playtest.StrategyAlternate, "up, down, alternate or random")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		maxWait  = flag.Duration("max-wait", defaultMaxWait, "Upper bound on waiting for one resolution")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Log every stream frame")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp()
		return 0
	}
	if *username == "" || *password == "" {
		_, _ = os.Stderr.WriteString("-user and -password are required\n")
		return 2
	}

	closeLog, err := playtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &playtest.Config{
		BaseURL:  *baseURL,
		Username: *username,
		Password: *password,
		SignUp:   *signUp,
		Code:     *code,
		Rounds:   *rounds,
		Strategy: *strategy,
		Timeout:  *timeout,
		MaxWait:  *maxWait,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if _, err := playtest.Run(ctx, cfg); err != nil {
		if errors.Is(err, playtest.ErrAwaitingConfirmation) {
			_, _ = os.Stdout.WriteString(err.Error() + "\n")
			return 0
		}
		_, _ = os.Stderr.WriteString("Playtest failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
