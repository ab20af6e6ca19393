package playtest

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/btcguess/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger, teeing to logFile when set. The
// returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	out := io.Writer(os.Stdout)
	closeFn := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the playtest tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`BTC Guess Playtest
==================

Plays rounds against a running btcguess server and checks the score.

Usage:
  go run ./cmd/playtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -user string
        Player email (default $BTCGUESS_PLAYTEST_USER)
  -password string
        Player password (default $BTCGUESS_PLAYTEST_PASSWORD)
  -signup
        Register the player first; without -code the run stops after
        the confirmation code is sent (it appears in the server log)
  -code string
        Confirmation code of a previous -signup
  -rounds int
        Number of guesses to play (default 3)
  -strategy string
        up, down, alternate or random (default "alternate")
  -timeout duration
        HTTP request timeout (default 10s)
  -max-wait duration
        Upper bound on waiting for one resolution (default 2m)
  -log string
        Also write logs to this file
  -verbose
        Log every stream frame
  -help
        Show this help message

Examples:
  # Register, then confirm with the code from the server log
  go run ./cmd/playtest -signup -user me@example.com -password 'Sup3r$ecret'
  go run ./cmd/playtest -signup -code 123456 -user me@example.com -password 'Sup3r$ecret'

  # Play five random rounds
  go run ./cmd/playtest -rounds 5 -strategy random -user me@example.com -password 'Sup3r$ecret'
`)
}
