package genguard

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/genguard/codec"
	cd "github.com/unkn0wn-root/genguard/cooldown"
	pr "github.com/unkn0wn-root/genguard/provider"
)

// Operation is one concrete upstream call against one candidate target.
type Operation[V any] func(ctx context.Context) (V, error)

// Factory builds the Operation for a candidate target. It is invoked once per
// candidate the orchestrator actually reaches; candidates after a terminal
// failure are never built.
type Factory[V any] func(target string) Operation[V]

// SetCostFunc computes the provider Set cost for a stored response.
type SetCostFunc func(key string, raw []byte) int64

// RetryPolicy bounds same-target retries. Static configuration; not mutated
// at runtime.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts per target, >= 1
	InitialDelay time.Duration // delay before the second attempt
	Multiplier   float64       // exponential factor per further attempt
}

// Guard is the high-level entry point: a key-addressed, TTL-cached,
// request-coalescing wrapper around an ordered chain of unreliable upstream
// targets. V is the caller's response type; serialization is handled by a
// pluggable Codec[V].
type Guard[V any] interface {
	Enabled() bool
	Close(ctx context.Context) error

	// Do runs the full path for one logical call: cache lookup, in-flight
	// coalescing, then the fallback chain with per-target retries. targets
	// must be non-empty and is evaluated strictly in order. A successful
	// result is cached under key with the default TTL before any waiter is
	// released.
	Do(ctx context.Context, key string, targets []string, build Factory[V]) (V, error)

	// DoTTL is Do with a per-call TTL override (0 => default).
	DoTTL(ctx context.Context, key string, ttl time.Duration, targets []string, build Factory[V]) (V, error)

	// Cached returns the cached response for key, if fresh.
	Cached(ctx context.Context, key string) (v V, ok bool, err error)

	// Invalidate drops the cached response for key.
	Invalidate(ctx context.Context, key string) error

	// Cooldown exposes the shared rate-limit state for UI observers.
	Cooldown() cd.Store

	// Service returns the cooldown label this guard writes and reads.
	Service() string
}

// Options tune the guard. Only Namespace, Provider and Codec are required;
// others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "diagram", "readme"
	Provider  pr.Provider
	Codec     c.Codec[V]

	// Service labels the upstream this guard talks to for cooldown
	// accounting and user-facing messages ("" => "upstream"). Guards that
	// share a Cooldown store and a Service label share one rate-limit
	// window.
	Service string

	// Cooldown is the shared rate-limit state. nil => a private in-process
	// store (fine for a single guard; pass one store to every guard that
	// calls the same provider).
	Cooldown cd.Store

	Retry          RetryPolicy   // zero value => {3 attempts, 500ms, x2}
	AttemptTimeout time.Duration // per-attempt timeout; 0 => 60s, < 0 => none
	DefaultTTL     time.Duration // 0 => 10m
	Logger         Logger        // nil => NopLogger
	Hooks          Hooks         // nil => NopHooks
	Disabled       bool          // true => bypass cache reads/writes (coalescing, retry and fallback stay active)
	ComputeSetCost SetCostFunc   // nil => constant 1
}

func New[V any](opts Options[V]) (Guard[V], error) {
	return newGuard[V](opts)
}

// FingerprintKey derives a deterministic logical key from the ordered parts
// of a request (prompt, system prompt, parameters...). Two call sites that
// fingerprint the same parts coalesce and share cache entries.
func FingerprintKey(parts ...string) string {
	return fingerprint(parts)
}
