package service

import "errors"

// ErrNotStarted is returned by session operations before Start or after Stop.
var ErrNotStarted = errors.New("game service not started")
