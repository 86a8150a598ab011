package genguard

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/genguard/classify"
)

// execute runs op against one candidate target under the retry policy.
//
// Before the first attempt the shared cooldown is consulted: an active window
// fails the call immediately with the remaining time, no network attempt is
// made. Policy errors (AuthInvalid, ContentBlocked) and throttling errors
// (RateLimited, QuotaExceeded) are never retried here; throttling errors
// additionally write the shared cooldown before propagating, because retrying
// into a known limit wastes a slot and cannot succeed sooner.
// TargetUnavailable propagates so the orchestrator can advance the chain.
// Everything else backs off exponentially until attempts are exhausted.
func (g *guard[V]) execute(ctx context.Context, target string, op Operation[V]) (V, error) {
	var zero V

	if rem, err := g.cool.Remaining(ctx, g.service); err == nil && rem > 0 {
		g.hooks.CooldownBlocked(g.service, rem)
		return zero, &UpstreamError{
			Class:      classify.RateLimited,
			Service:    g.service,
			RetryAfter: rem,
		}
	}

	var lastErr *UpstreamError
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		v, err := g.attempt(ctx, op)
		if err == nil {
			return v, nil
		}

		res := classify.Classify(err)
		service := coalesce(res.Service, g.service)
		lastErr = &UpstreamError{
			Class:      res.Class,
			Service:    service,
			Target:     target,
			StatusCode: res.StatusCode,
			RetryAfter: res.RetryAfter,
			Attempts:   attempt,
			Err:        err,
		}

		switch res.Class {
		case classify.RateLimited, classify.QuotaExceeded:
			ra := coalesce(res.RetryAfter, classify.DefaultRetryAfter)
			lastErr.RetryAfter = ra
			// the window is keyed by the guard's own label, the same one the
			// gate above reads; the classifier's label is display-only
			if err := g.cool.SetLimit(ctx, g.service, ra); err != nil {
				g.log.Error("cooldown write failed", Fields{"service": g.service, "err": err})
			}
			g.hooks.CooldownStarted(g.service, ra)
			g.log.Warn("upstream throttled", Fields{
				"service": service, "target": target, "retry_after": ra, "class": res.Class,
			})
			return zero, lastErr
		case classify.AuthInvalid, classify.ContentBlocked, classify.TargetUnavailable:
			return zero, lastErr
		}

		if attempt == g.retry.MaxAttempts {
			break
		}
		delay := backoffDelay(g.retry, attempt)
		g.hooks.RetryScheduled(target, attempt, delay, res.Class)
		g.log.Debug("retrying after transient failure", Fields{
			"target": target, "attempt": attempt, "delay": delay, "class": res.Class,
		})
		if err := g.sleep(ctx, delay); err != nil {
			// caller gave up mid-backoff; surface the classified failure
			// with the cancellation joined underneath for errors.Is
			lastErr.Err = errors.Join(lastErr.Err, err)
			return zero, lastErr
		}
	}
	return zero, lastErr
}

func (g *guard[V]) attempt(ctx context.Context, op Operation[V]) (V, error) {
	if g.attemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// backoffDelay returns initial * multiplier^(attempt-1); attempt is the
// 1-based attempt that just failed.
func backoffDelay(p RetryPolicy, attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}
