package cooldown

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares cooldown windows across processes: one replica hitting a
// provider rate limit suppresses attempts from every replica.
//
// The longer-remaining-wins rule is enforced read-then-write; two concurrent
// writers may race, in which case the later SET wins. That is acceptable per
// the state contract (last-writer-wins, readers only trust the deadline).
type Redis struct {
	rdb redis.UniversalClient
	ns  string // logical namespace to avoid collisions between deployments
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

func (s *Redis) key(service string) string { return "cooldown:" + s.ns + ":" + service }

func (s *Redis) SetLimit(ctx context.Context, service string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	cur, err := s.Remaining(ctx, service)
	if err != nil {
		return err
	}
	if cur >= d {
		return nil // an equal or longer window is already active
	}
	return s.rdb.Set(ctx, s.key(service), "1", d).Err()
}

func (s *Redis) Remaining(ctx context.Context, service string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, s.key(service)).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 { // -1 no expiry (foreign write), -2 missing
		return 0, nil
	}
	return ttl, nil
}

func (s *Redis) Limited(ctx context.Context, service string) (bool, error) {
	rem, err := s.Remaining(ctx, service)
	return rem > 0, err
}

func (s *Redis) Close(context.Context) error { return nil }
