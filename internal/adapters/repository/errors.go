package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("guess not found")
	ErrNoData   = errors.New("no data returned")
	ErrConflict = errors.New("guess status changed")
)
