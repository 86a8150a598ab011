// Package genguard turns unreliable, rate-limited, multi-variant upstream
// calls (generative-AI providers, source-hosting APIs) into safe, idempotent,
// cacheable operations.
//
// Components:
//   - Provider: byte store with TTL for cached responses (memory, Ristretto,
//     BigCache, Redis).
//   - Codec[V]: (de)serializes the caller's response type V <-> []byte.
//   - classify: maps heterogeneous upstream failures into a fixed taxonomy.
//   - cooldown: process-wide (or Redis-shared) rate-limit window with a
//     per-second countdown for UI observers.
//
// Call path per logical key:
//
//	cache hit            -> return immediately
//	call already pending -> attach to it (exactly one upstream call per burst)
//	otherwise            -> walk the fallback chain; each candidate runs under
//	                        the retry controller; a success is cached before
//	                        any waiter is released
//
// Keys:
//
//	resp:<ns>:<key> - cached responses
//
// Typical use:
//
//	g, _ := genguard.New[Diagram](genguard.Options[Diagram]{
//	    Namespace: "diagram",
//	    Provider:  memory.New(),
//	    Codec:     codec.JSON[Diagram]{},
//	    Service:   "gemini",
//	})
//	key := genguard.FingerprintKey(repoURL, prompt)
//	d, err := g.Do(ctx, key, []string{"gemini-2.0-flash", "gemini-1.5-flash"},
//	    func(target string) genguard.Operation[Diagram] {
//	        return func(ctx context.Context) (Diagram, error) {
//	            return callModel(ctx, target, prompt)
//	        }
//	    })
package genguard
