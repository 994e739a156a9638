package rate

import "errors"

var (
	// ErrThrottled reports that a fixed-window budget is exhausted.
	ErrThrottled = errors.New("request throttled")
	// ErrBackendUnavailable reports that the Redis backend failed.
	ErrBackendUnavailable = errors.New("throttle backend unavailable")
)
