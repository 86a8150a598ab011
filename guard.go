package genguard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/genguard/codec"
	cd "github.com/unkn0wn-root/genguard/cooldown"
	"github.com/unkn0wn-root/genguard/internal/util"
	"github.com/unkn0wn-root/genguard/internal/wire"
	pr "github.com/unkn0wn-root/genguard/provider"
)

type guard[V any] struct {
	ns       string
	provider pr.Provider
	codec    codec.Codec[V]
	log      Logger
	hooks    Hooks
	enabled  bool

	service        string
	cool           cd.Store
	ownCool        bool
	retry          RetryPolicy
	attemptTimeout time.Duration
	defaultTTL     time.Duration
	computeSetCost SetCostFunc

	flight singleflight.Group

	// sleep is the backoff delay primitive; swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func newGuard[V any](opts Options[V]) (*guard[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("genguard: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("genguard: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("genguard: namespace is required")
	}
	if opts.Retry.MaxAttempts < 0 || opts.Retry.Multiplier < 0 {
		return nil, fmt.Errorf("genguard: invalid retry policy")
	}

	g := &guard[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		sleep:    sleepCtx,
	}

	// defaults
	g.log = coalesce[Logger](opts.Logger, NopLogger{})
	g.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	g.service = coalesce(opts.Service, defaultService)
	g.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)

	g.retry = opts.Retry
	if g.retry.MaxAttempts == 0 {
		g.retry = defaultRetryPolicy()
	}
	if g.retry.InitialDelay == 0 {
		g.retry.InitialDelay = defaultRetryPolicy().InitialDelay
	}
	if g.retry.Multiplier == 0 {
		g.retry.Multiplier = defaultRetryPolicy().Multiplier
	}

	switch {
	case opts.AttemptTimeout > 0:
		g.attemptTimeout = opts.AttemptTimeout
	case opts.AttemptTimeout == 0:
		g.attemptTimeout = defaultAttemptTimeout
	default:
		g.attemptTimeout = 0 // explicitly disabled
	}

	if opts.Cooldown != nil {
		g.cool = opts.Cooldown
	} else {
		g.cool = cd.NewLocal()
		g.ownCool = true
	}

	if opts.ComputeSetCost != nil {
		g.computeSetCost = opts.ComputeSetCost
	} else {
		g.computeSetCost = func(_ string, _ []byte) int64 { return 1 }
	}

	return g, nil
}

func (g *guard[V]) Enabled() bool      { return g.enabled }
func (g *guard[V]) Cooldown() cd.Store { return g.cool }
func (g *guard[V]) Service() string    { return g.service }

func (g *guard[V]) Close(ctx context.Context) error {
	if g.ownCool {
		_ = g.cool.Close(ctx)
	}
	if g.provider != nil {
		return g.provider.Close(ctx)
	}
	return nil
}

func (g *guard[V]) Do(ctx context.Context, key string, targets []string, build Factory[V]) (V, error) {
	return g.DoTTL(ctx, key, 0, targets, build)
}

func (g *guard[V]) DoTTL(ctx context.Context, key string, ttl time.Duration, targets []string, build Factory[V]) (V, error) {
	var zero V
	if len(targets) == 0 {
		return zero, fmt.Errorf("genguard: empty fallback chain")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if ttl == 0 {
		ttl = g.defaultTTL
	}

	if v, ok, err := g.Cached(ctx, key); err == nil && ok {
		return v, nil
	}

	// Coalesce: at most one chain execution per key at any instant. The
	// executing goroutine runs detached from this caller's cancellation so
	// that other attached waiters (and the cache write) survive one caller
	// giving up; each waiter still honors its own ctx below.
	execCtx := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		v, err := g.runChain(execCtx, targets, build)
		if err != nil {
			return nil, err
		}
		if g.enabled {
			g.store(execCtx, key, v, ttl)
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			g.hooks.FlightShared(key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("genguard: unexpected flight result type %T", res.Val)
		}
		return v, nil
	case <-ctx.Done():
		// the in-flight call keeps running and will still populate the
		// cache; this caller just stops waiting
		return zero, ctx.Err()
	}
}

func (g *guard[V]) Cached(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !g.enabled {
		return zero, false, nil
	}
	k := g.storageKey(key)
	raw, ok, err := g.provider.Get(ctx, k)
	if err != nil || !ok {
		if err == nil {
			g.hooks.CacheMiss(key)
		}
		return zero, false, err
	}
	expiresAt, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = g.provider.Del(ctx, k) // self-heal corrupt
		g.hooks.SelfHeal(k, "corrupt")
		g.hooks.CacheMiss(key)
		return zero, false, nil
	}
	if time.Now().After(expiresAt) {
		// lazy expiry: deleted on the failed lookup, never swept
		_ = g.provider.Del(ctx, k)
		g.hooks.SelfHeal(k, "expired")
		g.hooks.CacheMiss(key)
		return zero, false, nil
	}
	v, err := g.codec.Decode(payload)
	if err != nil {
		_ = g.provider.Del(ctx, k) // self-heal
		g.hooks.SelfHeal(k, "value_decode")
		g.hooks.CacheMiss(key)
		return zero, false, nil
	}
	g.hooks.CacheHit(key)
	return v, true, nil
}

func (g *guard[V]) Invalidate(ctx context.Context, key string) error {
	if !g.enabled {
		return nil
	}
	k := g.storageKey(key)
	if err := g.provider.Del(ctx, k); err != nil {
		return fmt.Errorf("genguard: invalidate %q: %w", key, err)
	}
	g.log.Debug("invalidated key", Fields{"key": key})
	return nil
}

// store caches a successful response best-effort; a failed write only costs
// a future upstream call.
func (g *guard[V]) store(ctx context.Context, key string, v V, ttl time.Duration) {
	payload, err := g.codec.Encode(v)
	if err != nil {
		g.log.Warn("response encode failed; not cached", Fields{"key": key, "err": err})
		return
	}
	k := g.storageKey(key)
	raw := wire.EncodeEntry(time.Now().Add(ttl), payload)
	ok, err := g.provider.Set(ctx, k, raw, g.computeSetCost(k, raw), ttl)
	if err != nil {
		g.log.Warn("cache write failed", Fields{"key": key, "err": err})
		return
	}
	if !ok {
		g.hooks.ProviderSetRejected(k)
		g.log.Debug("cache write rejected by provider (pressure)", Fields{"key": key})
	}
}

func (g *guard[V]) storageKey(userKey string) string {
	// isolate by namespace
	return "resp:" + g.ns + ":" + userKey
}

func fingerprint(parts []string) string {
	return util.FingerprintKey("req", parts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
