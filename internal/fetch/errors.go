package fetch

import (
	"errors"
)

// Error taxonomy for fetch attempts. Retryable failures get a fresh
// session and another attempt; the rest surface to the caller
// immediately.
var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrBadStatus         = errors.New("non-2xx response")
	ErrBotBlocked        = errors.New("bot-block page detected")
	ErrSessionBroken     = errors.New("session is no longer usable")
	ErrTooManyRedirects  = errors.New("redirect chain too long")
	ErrUnsupportedSite   = errors.New("no extractor for site")
)

// Retryable reports whether a failed attempt should be retried with a
// fresh session.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNavigationTimeout),
		errors.Is(err, ErrNavigationFailed),
		errors.Is(err, ErrBadStatus),
		errors.Is(err, ErrBotBlocked),
		errors.Is(err, ErrSessionBroken):
		return true
	}
	return false
}
