package price

import (
	"errors"
	"strings"
)

// ErrUnavailable reports that no provider produced a usable price.
var ErrUnavailable = errors.New("price unavailable")

// ErrBadQuote marks a response that decoded but carried no positive price.
var ErrBadQuote = errors.New("invalid price in response")

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Err      error
}

// UnavailableError aggregates every failed attempt of a chain. It matches
// ErrUnavailable with errors.Is.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.Err.Error()
	}
	switch len(reasons) {
	case 0:
		return "Failed to fetch Bitcoin price"
	case 2:
		return "Failed to fetch Bitcoin price: " + reasons[0] + ". Fallback also failed: " + reasons[1]
	default:
		return "Failed to fetch Bitcoin price: " + strings.Join(reasons, "; ")
	}
}

// Is lets errors.Is(err, ErrUnavailable) succeed.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Unwrap exposes the individual attempt errors.
func (e *UnavailableError) Unwrap() []error {
	out := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Err
	}
	return out
}
