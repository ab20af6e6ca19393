package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("resolve queue full")
	ErrClosed = errors.New("resolve queue closed")
)
