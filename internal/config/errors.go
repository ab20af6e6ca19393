package config

import "errors"

// Errors returned by Load. Callers match them with errors.Is.
var (
	// ErrInvalidConfig marks a loaded value that fails Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file, .env or environment source that could not be read.
	ErrLoadConfig = errors.New("load config failed")
	// ErrUnsupportedFormat marks a BTCGUESS_CONFIG file that is neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
