package genguard

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/genguard/classify"
)

// UpstreamError is the terminal failure of one guarded call. Its text is
// derived from the classification so callers can surface it directly;
// provider-specific wording stays behind Unwrap.
type UpstreamError struct {
	Class      classify.Class
	Service    string        // provider label the failure belongs to
	Target     string        // candidate that produced the failure ("" for pre-attempt cooldown refusals)
	StatusCode int           // HTTP status when one was present
	RetryAfter time.Duration // set for RateLimited/QuotaExceeded
	Attempts   int           // attempts actually made against Target
	Err        error         // underlying failure (may be nil for cooldown refusals)
}

func (e *UpstreamError) Error() string {
	switch e.Class {
	case classify.RateLimited:
		return fmt.Sprintf("%s is rate limited, retry in %ds", e.Service, int(e.RetryAfter.Round(time.Second).Seconds()))
	case classify.QuotaExceeded:
		return fmt.Sprintf("%s usage quota exhausted, check your plan and billing", e.Service)
	case classify.AuthInvalid:
		return fmt.Sprintf("%s rejected the credential, update your settings", e.Service)
	case classify.ContentBlocked:
		return fmt.Sprintf("%s declined to generate this content", e.Service)
	case classify.TargetUnavailable:
		return fmt.Sprintf("model %q is not available on %s", e.Target, e.Service)
	case classify.NetworkUnreachable:
		return fmt.Sprintf("cannot reach %s, check your connection", e.Service)
	case classify.ServerFault:
		return fmt.Sprintf("%s returned an internal error, try again later", e.Service)
	default:
		return fmt.Sprintf("request to %s failed", e.Service)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the same target could be retried for this class.
// Pre-emptive refusals and policy errors are not.
func (e *UpstreamError) Retryable() bool {
	switch e.Class {
	case classify.NetworkUnreachable, classify.ServerFault, classify.Unknown:
		return true
	}
	return false
}
