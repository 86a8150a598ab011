package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/genguard"
	"github.com/unkn0wn-root/genguard/classify"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	CacheEvery    uint64
	RetryEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	cacheCtr    atomic.Uint64
	retryCtr    atomic.Uint64
}

var _ genguard.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(key string) {
	if h.l == nil || !sample(h.opts.CacheEvery, &h.cacheCtr) {
		return
	}
	h.l.Debug("genguard.cache_hit",
		"key", h.redact(key))
}

func (h *Hooks) CacheMiss(key string) {
	if h.l == nil || !sample(h.opts.CacheEvery, &h.cacheCtr) {
		return
	}
	h.l.Debug("genguard.cache_miss",
		"key", h.redact(key))
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("genguard.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) FlightShared(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("genguard.flight_shared",
		"key", h.redact(key))
}

func (h *Hooks) RetryScheduled(target string, attempt int, delay time.Duration, class classify.Class) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Info("genguard.retry_scheduled",
		"target", target,
		"attempt", attempt,
		"delay", delay,
		"class", string(class))
}

func (h *Hooks) CandidateSkipped(target string, class classify.Class) {
	if h.l == nil {
		return
	}
	h.l.Info("genguard.candidate_skipped",
		"target", target,
		"class", string(class))
}

func (h *Hooks) CooldownStarted(service string, retryAfter time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("genguard.cooldown_started",
		"service", service,
		"retry_after", retryAfter)
}

func (h *Hooks) CooldownBlocked(service string, remaining time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("genguard.cooldown_blocked",
		"service", service,
		"remaining", remaining)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("genguard.provider_set_rejected",
		"key", h.redact(storageKey))
}
