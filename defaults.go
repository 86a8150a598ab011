package genguard

import "time"

const (
	defaultTTL            = 10 * time.Minute
	defaultService        = "upstream"
	defaultAttemptTimeout = 60 * time.Second
)

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, Multiplier: 2}
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
