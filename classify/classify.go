// Package classify maps heterogeneous upstream failures into a fixed
// taxonomy. Every downstream policy decision (retry, fallback, cooldown)
// is a function of the Class produced here and nothing else.
//
// Classify is total: any input, however malformed, yields exactly one Class.
// Absence of a recognizable pattern yields Unknown, never a panic.
package classify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"
	"github.com/sashabaranov/go-openai"
)

// Class is one of the fixed failure categories.
type Class string

const (
	// RateLimited: the server signaled short-term throttling.
	RateLimited Class = "rate_limited"
	// QuotaExceeded: account-level usage/billing limit, distinct from
	// short-term throttling.
	QuotaExceeded Class = "quota_exceeded"
	// AuthInvalid: credential rejected or insufficient permission.
	AuthInvalid Class = "auth_invalid"
	// ContentBlocked: upstream refused to produce output for policy reasons.
	ContentBlocked Class = "content_blocked"
	// TargetUnavailable: the requested candidate/model does not exist or is
	// not reachable, but other candidates might work.
	TargetUnavailable Class = "target_unavailable"
	// NetworkUnreachable: transport-level failure, no response received.
	NetworkUnreachable Class = "network_unreachable"
	// ServerFault: upstream internal error.
	ServerFault Class = "server_fault"
	// Unknown: none of the above matched.
	Unknown Class = "unknown"
)

// DefaultRetryAfter is assumed when a rate-limit failure carries no usable
// retry-after hint.
const DefaultRetryAfter = 60 * time.Second

// Result is an immutable classification of one failure.
type Result struct {
	Class      Class
	Service    string        // human-readable provider label if recognizable ("openai", "github")
	StatusCode int           // HTTP status when one was present, else 0
	RetryAfter time.Duration // set for RateLimited (and QuotaExceeded when the server said so)
}

// Classify inspects err and produces its taxonomy value. Structured fields
// (typed provider errors, HTTP status codes) win over message patterns.
func Classify(err error) Result {
	if err == nil {
		return Result{Class: Unknown}
	}

	// context errors first: a canceled or timed-out attempt produced no
	// response, which is a transport-level outcome.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Result{Class: NetworkUnreachable}
	}

	// go-openai structured errors.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		r := Result{Service: "openai", StatusCode: apiErr.HTTPStatusCode}
		r.Class = classifyOpenAI(apiErr)
		if r.Class == RateLimited {
			r.RetryAfter = retryAfterFromMessage(apiErr.Message)
		}
		return r
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		r := Result{Service: "openai", StatusCode: reqErr.HTTPStatusCode}
		r.Class = classifyStatus(reqErr.HTTPStatusCode)
		if r.Class == Unknown {
			r.Class = classifyMessage(err.Error())
		}
		if r.Class == RateLimited && r.RetryAfter == 0 {
			r.RetryAfter = retryAfterFromMessage(err.Error())
		}
		return r
	}

	// go-github structured errors.
	var ghRate *github.RateLimitError
	if errors.As(err, &ghRate) {
		r := Result{Class: RateLimited, Service: "github", RetryAfter: DefaultRetryAfter}
		if reset := ghRate.Rate.Reset.Time; !reset.IsZero() {
			if until := time.Until(reset); until > 0 {
				r.RetryAfter = until
			}
		}
		if ghRate.Response != nil {
			r.StatusCode = ghRate.Response.StatusCode
		}
		return r
	}
	var ghAbuse *github.AbuseRateLimitError
	if errors.As(err, &ghAbuse) {
		r := Result{Class: RateLimited, Service: "github", RetryAfter: DefaultRetryAfter}
		if ghAbuse.RetryAfter != nil && *ghAbuse.RetryAfter > 0 {
			r.RetryAfter = *ghAbuse.RetryAfter
		}
		if ghAbuse.Response != nil {
			r.StatusCode = ghAbuse.Response.StatusCode
		}
		return r
	}
	var ghResp *github.ErrorResponse
	if errors.As(err, &ghResp) {
		r := Result{Service: "github"}
		if ghResp.Response != nil {
			r.StatusCode = ghResp.Response.StatusCode
		}
		r.Class = classifyStatus(r.StatusCode)
		if r.Class == Unknown {
			r.Class = classifyMessage(ghResp.Message)
		}
		if r.Class == RateLimited && r.RetryAfter == 0 {
			r.RetryAfter = DefaultRetryAfter
		}
		return r
	}

	// transport errors without a response
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Result{Class: NetworkUnreachable}
	}

	r := Result{Class: classifyMessage(err.Error())}
	if r.Class == RateLimited {
		r.RetryAfter = retryAfterFromMessage(err.Error())
	}
	return r
}

func classifyOpenAI(e *openai.APIError) Class {
	// the error type string is more precise than the status code
	switch e.Type {
	case "insufficient_quota":
		return QuotaExceeded
	case "authentication_error", "permission_error":
		return AuthInvalid
	case "rate_limit_error":
		return RateLimited
	case "not_found_error":
		return TargetUnavailable
	}
	if code, ok := e.Code.(string); ok {
		switch code {
		case "insufficient_quota", "billing_hard_limit_reached":
			return QuotaExceeded
		case "invalid_api_key", "account_deactivated":
			return AuthInvalid
		case "model_not_found":
			return TargetUnavailable
		case "content_filter", "content_policy_violation":
			return ContentBlocked
		}
	}
	if c := classifyStatus(e.HTTPStatusCode); c != Unknown {
		return c
	}
	return classifyMessage(e.Message)
}

func classifyStatus(code int) Class {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthInvalid
	case http.StatusPaymentRequired:
		return QuotaExceeded
	case http.StatusNotFound, http.StatusNotImplemented:
		return TargetUnavailable
	case http.StatusTooManyRequests:
		return RateLimited
	case http.StatusRequestTimeout:
		return NetworkUnreachable
	}
	if code >= 500 {
		return ServerFault
	}
	return Unknown
}

// pattern tables are checked in order; quota before rate limit because quota
// failures often arrive with 429-flavored wording.
var patterns = []struct {
	class Class
	subs  []string
}{
	{QuotaExceeded, []string{"quota", "billing", "usage limit", "credit balance"}},
	{RateLimited, []string{"rate limit", "rate_limit", "too many requests", "throttl", "resource exhausted", "resource_exhausted"}},
	{AuthInvalid, []string{"api key", "unauthorized", "invalid authentication", "permission denied", "forbidden", "credential"}},
	{ContentBlocked, []string{"content policy", "content filter", "safety", "blocked by", "prohibited content", "recitation"}},
	{TargetUnavailable, []string{"model not found", "no such model", "does not exist", "is not supported", "unknown model", "not_found"}},
	{NetworkUnreachable, []string{"connection refused", "connection reset", "no such host", "network is unreachable", "dial tcp", "timeout", "timed out", "eof"}},
	{ServerFault, []string{"internal server error", "internal error", "overloaded", "bad gateway", "service unavailable", "server error"}},
}

func classifyMessage(msg string) Class {
	m := strings.ToLower(msg)
	for _, p := range patterns {
		for _, s := range p.subs {
			if strings.Contains(m, s) {
				return p.class
			}
		}
	}
	return Unknown
}

// e.g. "Please try again in 20s", "retry after 30 seconds", "Retry in 7.5s"
var retryAfterRe = regexp.MustCompile(`(?i)(?:try again|retry)\s*(?:in|after)?\s*([0-9]+(?:\.[0-9]+)?)\s*s`)

func retryAfterFromMessage(msg string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(msg)
	if len(m) == 2 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return DefaultRetryAfter
}
