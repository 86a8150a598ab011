package genguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/genguard/codec"
	pr "github.com/unkn0wn-root/genguard/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

type answer struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

func newTestGuard(t *testing.T, ns string, mp pr.Provider, optsOpt func(*Options[answer])) Guard[answer] {
	t.Helper()
	opts := Options[answer]{
		Namespace: ns,
		Provider:  mp,
		Codec:     c.JSON[answer]{},
		Service:   "testsvc",
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	g, err := New[answer](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func mustImpl(t *testing.T, g Guard[answer]) *guard[answer] {
	t.Helper()
	impl, ok := g.(*guard[answer])
	if !ok {
		t.Fatalf("unexpected concrete type for Guard")
	}
	return impl
}

// single upstream that succeeds and counts invocations
func countingFactory(calls *atomic.Int32, v answer) Factory[answer] {
	return func(target string) Operation[answer] {
		return func(ctx context.Context) (answer, error) {
			calls.Add(1)
			return v, nil
		}
	}
}

// ==============================
// Cache path
// ==============================

func TestCacheHitSkipsUpstream(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(ctx)

	var calls atomic.Int32
	want := answer{Text: "hi", Model: "m1"}

	got, err := g.Do(ctx, "k1", []string{"m1"}, countingFactory(&calls, want))
	if err != nil || got != want {
		t.Fatalf("Do: got=%v err=%v", got, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}

	got, err = g.Do(ctx, "k1", []string{"m1"}, countingFactory(&calls, want))
	if err != nil || got != want {
		t.Fatalf("Do (cached): got=%v err=%v", got, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream calls after cache hit = %d, want 1", n)
	}

	// different key misses
	if _, err := g.Do(ctx, "k2", []string{"m1"}, countingFactory(&calls, want)); err != nil {
		t.Fatalf("Do k2: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("upstream calls for second key = %d, want 2", n)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(ctx)

	var calls atomic.Int32
	want := answer{Text: "hi"}

	if _, err := g.DoTTL(ctx, "k", 30*time.Millisecond, []string{"m1"}, countingFactory(&calls, want)); err != nil {
		t.Fatalf("DoTTL: %v", err)
	}
	if _, ok, _ := g.Cached(ctx, "k"); !ok {
		t.Fatalf("expected fresh entry")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok, _ := g.Cached(ctx, "k"); ok {
		t.Fatalf("expected entry to be expired")
	}
	if _, err := g.Do(ctx, "k", []string{"m1"}, countingFactory(&calls, want)); err != nil {
		t.Fatalf("Do after expiry: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2 (expired entry must not be served)", n)
	}
}

func TestSelfHealCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(ctx)

	impl := mustImpl(t, g)
	sk := impl.storageKey("k")
	mp.put(sk, []byte("not a wire entry"))

	if _, ok, err := g.Cached(ctx, "k"); ok || err != nil {
		t.Fatalf("Cached on corrupt entry: ok=%v err=%v", ok, err)
	}
	mp.mu.Lock()
	_, still := mp.m[sk]
	mp.mu.Unlock()
	if still {
		t.Fatalf("corrupt entry not self-healed")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(ctx)

	var calls atomic.Int32
	if _, err := g.Do(ctx, "k", []string{"m1"}, countingFactory(&calls, answer{Text: "v"})); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := g.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := g.Cached(ctx, "k"); ok {
		t.Fatalf("entry survived Invalidate")
	}
}

func TestDisabledBypassesCacheNotChain(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, func(o *Options[answer]) { o.Disabled = true })
	defer g.Close(ctx)

	if g.Enabled() {
		t.Fatalf("Enabled() = true for disabled guard")
	}

	var calls atomic.Int32
	want := answer{Text: "hi"}
	for i := 0; i < 2; i++ {
		got, err := g.Do(ctx, "k", []string{"m1"}, countingFactory(&calls, want))
		if err != nil || got != want {
			t.Fatalf("Do #%d: got=%v err=%v", i, got, err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2 (no caching when disabled)", n)
	}
	mp.mu.Lock()
	stored := len(mp.m)
	mp.mu.Unlock()
	if stored != 0 {
		t.Fatalf("disabled guard wrote %d entries to provider", stored)
	}
}

// ==============================
// Coalescing
// ==============================

func TestCoalescingSingleUpstreamCall(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(ctx)

	const waiters = 16
	var calls atomic.Int32
	gate := make(chan struct{})
	started := make(chan struct{}, 1)

	build := func(target string) Operation[answer] {
		return func(ctx context.Context) (answer, error) {
			calls.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			<-gate
			return answer{Text: "shared"}, nil
		}
	}

	var wg sync.WaitGroup
	results := make([]answer, waiters)
	errs := make([]error, waiters)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = g.Do(ctx, "k", []string{"m1"}, build)
	}()
	<-started // leader is in flight before the rest attach

	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Do(ctx, "k", []string{"m1"}, build)
		}(i)
	}

	// give the waiters a moment to attach, then release the upstream
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		if results[i].Text != "shared" {
			t.Fatalf("waiter %d: got %q", i, results[i].Text)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want exactly 1", n)
	}
}

func TestWaiterCancelDoesNotCancelFlight(t *testing.T) {
	mp := newMemProvider()
	g := newTestGuard(t, "chat", mp, nil)
	defer g.Close(context.Background())

	gate := make(chan struct{})
	build := func(target string) Operation[answer] {
		return func(ctx context.Context) (answer, error) {
			<-gate
			return answer{Text: "late"}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", []string{"m1"}, build)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled waiter: err=%v, want context.Canceled", err)
	}

	// the flight keeps running and still populates the cache
	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if v, ok, _ := g.Cached(context.Background(), "k"); ok {
			if v.Text != "late" {
				t.Fatalf("cached %q, want %q", v.Text, "late")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("flight result never reached the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ==============================
// Options and validation
// ==============================

func TestNewValidation(t *testing.T) {
	mp := newMemProvider()
	cases := []struct {
		name string
		mut  func(*Options[answer])
	}{
		{"missing provider", func(o *Options[answer]) { o.Provider = nil }},
		{"missing codec", func(o *Options[answer]) { o.Codec = nil }},
		{"missing namespace", func(o *Options[answer]) { o.Namespace = "" }},
		{"negative attempts", func(o *Options[answer]) { o.Retry.MaxAttempts = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := Options[answer]{Namespace: "ns", Provider: mp, Codec: c.JSON[answer]{}}
			tc.mut(&opts)
			if _, err := New[answer](opts); err == nil {
				t.Fatalf("New accepted invalid options")
			}
		})
	}
}

func TestEmptyChainRejected(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, "chat", newMemProvider(), nil)
	defer g.Close(ctx)

	if _, err := g.Do(ctx, "k", nil, countingFactory(new(atomic.Int32), answer{})); err == nil {
		t.Fatalf("Do accepted an empty chain")
	}
}

func TestFingerprintKey(t *testing.T) {
	a := FingerprintKey("sys", "prompt", "0.7")
	b := FingerprintKey("sys", "prompt", "0.7")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if a == FingerprintKey("prompt", "sys", "0.7") {
		t.Fatalf("fingerprint ignores part order")
	}
	if a == FingerprintKey("sys", "prompt") {
		t.Fatalf("fingerprint ignores part count")
	}
}
