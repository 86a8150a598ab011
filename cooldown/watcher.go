package cooldown

import (
	"context"
	"sync"
	"time"
)

// OnTick receives the remaining whole seconds for the watched service.
// It is called once immediately, then once per interval while the window is
// active, and one final time with 0 when the window expires, after which the
// watcher stops. Implementations must be cheap and non-blocking, and must
// not call Close on the watcher: Close waits for the publishing goroutine,
// so calling it from inside the callback deadlocks. To stop on a condition,
// signal another goroutine and let it close.
type OnTick func(service string, remainingSeconds int)

// Watcher republishes a service's remaining cooldown at a fixed cadence so a
// UI can render a live countdown. Observers can stop watching at any time;
// they can never clear the shared Store ahead of its true expiry.
type Watcher struct {
	store    Store
	service  string
	interval time.Duration
	fn       OnTick

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch starts publishing. interval <= 0 defaults to one second.
func Watch(store Store, service string, interval time.Duration, fn OnTick) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	w := &Watcher{
		store:    store,
		service:  service,
		interval: interval,
		fn:       fn,
		stopCh:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Close stops publishing and waits for the in-progress tick to finish.
// Safe to call multiple times; must not be called from OnTick.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	if done := w.publish(); done {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if done := w.publish(); done {
				return
			}
		case <-w.stopCh:
			return
		}
	}
}

// publish emits one tick and reports whether the countdown reached zero.
func (w *Watcher) publish() bool {
	rem, err := w.store.Remaining(context.Background(), w.service)
	if err != nil {
		// shared store unreachable; keep ticking, the next read may recover
		return false
	}
	if rem <= 0 {
		w.fn(w.service, 0)
		return true
	}
	secs := int((rem + time.Second - 1) / time.Second) // ceil to whole seconds
	w.fn(w.service, secs)
	return false
}
