package genguard

import (
	"time"

	"github.com/unkn0wn-root/genguard/classify"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The guard calls them on hot paths.
type Hooks interface {
	// Cache lookup outcomes for a logical key.
	CacheHit(key string)
	CacheMiss(key string)

	// A cached entry was deleted by the guard on read.
	// reason ∈ {"corrupt", "expired", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A caller attached to an already in-flight call instead of starting
	// its own.
	FlightShared(key string)

	// A failed attempt was classified retryable; the next attempt runs
	// after delay. attempt is 1-based and counts the attempt that failed.
	RetryScheduled(target string, attempt int, delay time.Duration, class classify.Class)

	// A candidate was abandoned and the chain advanced past it.
	CandidateSkipped(target string, class classify.Class)

	// A throttling failure opened (or extended) the shared cooldown window.
	CooldownStarted(service string, retryAfter time.Duration)

	// An attempt was refused before any network call because the shared
	// cooldown window is still active.
	CooldownBlocked(service string, remaining time.Duration)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string)                                           {}
func (NopHooks) CacheMiss(string)                                          {}
func (NopHooks) SelfHeal(string, string)                                   {}
func (NopHooks) FlightShared(string)                                       {}
func (NopHooks) RetryScheduled(string, int, time.Duration, classify.Class) {}
func (NopHooks) CandidateSkipped(string, classify.Class)                   {}
func (NopHooks) CooldownStarted(string, time.Duration)                     {}
func (NopHooks) CooldownBlocked(string, time.Duration)                     {}
func (NopHooks) ProviderSetRejected(string)                                {}
