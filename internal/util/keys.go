package util

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// FingerprintKey returns a deterministic composite key for a logical request:
// the prefix plus a short hash over the ordered parts. Part order is
// significant (a user prompt and a system prompt swapped are different
// requests), so parts are not sorted.
func FingerprintKey(prefix string, parts []string) string {
	joined := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s:%x", prefix, sum)[:len(prefix)+1+16] // prefix + ":" + first 16 hex chars
}
