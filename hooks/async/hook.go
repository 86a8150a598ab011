// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/genguard"
//	"github.com/unkn0wn-root/genguard/codec"
//	"github.com/unkn0wn-root/genguard/hooks/async"
//	"github.com/unkn0wn-root/genguard/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	    RetryEvery:    1,  // log every scheduled retry
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	guard, _ := genguard.New[Answer](genguard.Options[Answer]{
//	    Namespace: "app:prod:chat",
//	    Provider:  provider,
//	    Codec:     codec.JSON[Answer]{},
//	    Service:   "openai",
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/genguard"
	"github.com/unkn0wn-root/genguard/classify"
)

type Hooks struct {
	inner genguard.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ genguard.Hooks = (*Hooks)(nil)

func New(inner genguard.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) CacheHit(k string)            { h.try(func() { h.inner.CacheHit(k) }) }
func (h *Hooks) CacheMiss(k string)           { h.try(func() { h.inner.CacheMiss(k) }) }
func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) FlightShared(k string)        { h.try(func() { h.inner.FlightShared(k) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }

func (h *Hooks) RetryScheduled(t string, a int, d time.Duration, c classify.Class) {
	h.try(func() { h.inner.RetryScheduled(t, a, d, c) })
}

func (h *Hooks) CandidateSkipped(t string, c classify.Class) {
	h.try(func() { h.inner.CandidateSkipped(t, c) })
}

func (h *Hooks) CooldownStarted(s string, ra time.Duration) {
	h.try(func() { h.inner.CooldownStarted(s, ra) })
}

func (h *Hooks) CooldownBlocked(s string, rem time.Duration) {
	h.try(func() { h.inner.CooldownBlocked(s, rem) })
}
