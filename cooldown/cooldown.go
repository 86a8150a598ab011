// Package cooldown holds the shared rate-limit state: one deadline per
// service label, written whenever a throttling failure is classified and read
// by every subsequent attempt before any network call is made.
//
// Use NewLocal (default) for in-process state, or the Redis store to share a
// cooldown window across replicas. Readers always treat "now >= deadline" as
// not limited; writers may only extend an active window, never shorten it.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Store abstracts where cooldown deadlines live.
type Store interface {
	// SetLimit records that service is limited for the next d. If a longer
	// window is already active, the existing deadline is kept: the longer
	// remaining time always wins.
	SetLimit(ctx context.Context, service string, d time.Duration) error
	// Remaining returns how long service stays limited; 0 when not limited.
	Remaining(ctx context.Context, service string) (time.Duration, error)
	// Limited reports whether service currently has an active window.
	Limited(ctx context.Context, service string) (bool, error)
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}

// Local keeps cooldown deadlines in-process.
type Local struct {
	mu    sync.RWMutex
	until map[string]time.Time
}

var _ Store = (*Local)(nil)

func NewLocal() *Local {
	return &Local{until: make(map[string]time.Time)}
}

func (s *Local) SetLimit(_ context.Context, service string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := time.Now().Add(d)
	s.mu.Lock()
	if cur, ok := s.until[service]; !ok || deadline.After(cur) {
		s.until[service] = deadline
	}
	s.mu.Unlock()
	return nil
}

func (s *Local) Remaining(_ context.Context, service string) (time.Duration, error) {
	s.mu.RLock()
	deadline, ok := s.until[service]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	rem := time.Until(deadline)
	if rem <= 0 {
		// expired; drop it so the map does not accumulate dead services
		s.mu.Lock()
		if cur, ok := s.until[service]; ok && !cur.After(deadline) {
			delete(s.until, service)
		}
		s.mu.Unlock()
		return 0, nil
	}
	return rem, nil
}

func (s *Local) Limited(ctx context.Context, service string) (bool, error) {
	rem, err := s.Remaining(ctx, service)
	return rem > 0, err
}

func (s *Local) Close(_ context.Context) error { return nil }
