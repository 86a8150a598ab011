package genguard

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/genguard/classify"
)

// runChain trials candidates strictly in order, one retry-controlled
// execution per candidate. Candidates are never raced concurrently: a
// sequential trial preserves cost control and avoids duplicate side effects
// on the shared upstream.
//
// Advancement rules:
//   - TargetUnavailable: try the next candidate; this is exactly what the
//     chain exists for.
//   - RateLimited/QuotaExceeded: try the next candidate only if one remains,
//     so a global limit is never silently swallowed when no fallback exists.
//   - AuthInvalid/ContentBlocked: stop. Another candidate shares the same
//     credentials and policy and cannot do better.
//   - anything else (retries already exhausted): terminal.
func (g *guard[V]) runChain(ctx context.Context, targets []string, build Factory[V]) (V, error) {
	var zero V
	var lastErr error

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := g.execute(ctx, target, build(target))
		if err == nil {
			return v, nil
		}
		lastErr = err

		var ue *UpstreamError
		if !errors.As(err, &ue) {
			return zero, err // ctx cancellation or programmer error; not recoverable by fallback
		}

		last := i == len(targets)-1
		switch ue.Class {
		case classify.TargetUnavailable:
			if last {
				return zero, err
			}
		case classify.RateLimited, classify.QuotaExceeded:
			if last {
				return zero, err
			}
		default:
			return zero, err
		}

		g.hooks.CandidateSkipped(target, ue.Class)
		g.log.Info("advancing fallback chain", Fields{
			"target": target, "next": targets[i+1], "class": ue.Class,
		})
	}
	return zero, lastErr
}
