// Package upstream defines a normalized request/response shape for the
// external services a guard fronts, so call sites can fingerprint requests
// and build fallback chains without caring which concrete SDK answers.
package upstream

import (
	"context"
	"strconv"
)

// Request is the provider-agnostic description of one upstream call.
// Fields that a given invoker does not understand are ignored by it.
type Request struct {
	// System and Prompt drive text-generation invokers.
	System string
	Prompt string

	// Resource selects a sub-operation for data-source invokers,
	// e.g. "readme", "languages" or "meta" for a repository.
	Resource string

	MaxTokens   int
	Temperature float32
}

// Response is the normalized result of a successful call.
type Response struct {
	// Text is the primary payload: generated text, file content or a
	// JSON rendering, depending on the invoker.
	Text string

	// Model records which concrete target produced the response.
	Model string

	FinishReason string
}

// Invoker executes a Request against one concrete target. The target string
// is invoker-specific: a model name for generation services, "owner/repo"
// for repository services.
type Invoker interface {
	Invoke(ctx context.Context, target string, req Request) (Response, error)
}

// Fingerprint returns the ordered key parts for req. Pass the result to
// genguard.FingerprintKey so identical requests coalesce and share cache
// entries regardless of which candidate ends up serving them.
func (r Request) Fingerprint() []string {
	return []string{
		r.System,
		r.Prompt,
		r.Resource,
		strconv.Itoa(r.MaxTokens),
		strconv.FormatFloat(float64(r.Temperature), 'g', -1, 32),
	}
}
