package memory

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New()
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("Get: ok=%v err=%v got=%q", ok, err, got)
	}

	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("entry survived Del")
	}
}

func TestLazyExpiry(t *testing.T) {
	ctx := context.Background()
	p := New()
	defer p.Close(ctx)

	if _, err := p.Set(ctx, "k", []byte("v"), 1, 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	if p.Len() != 1 {
		t.Fatalf("Len = %d before lookup, expiry should be lazy", p.Len())
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expired entry served")
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d after lookup, expired entry not removed", p.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	p := New()
	defer p.Close(ctx)

	if _, err := p.Set(ctx, "k", []byte("v"), 1, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "k"); !ok {
		t.Fatalf("entry with no TTL expired")
	}
}

func TestOverwriteResetsTTL(t *testing.T) {
	ctx := context.Background()
	p := New()
	defer p.Close(ctx)

	if _, err := p.Set(ctx, "k", []byte("old"), 1, 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := p.Set(ctx, "k", []byte("new"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	got, ok, _ := p.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte("new")) {
		t.Fatalf("Get after overwrite: ok=%v got=%q", ok, got)
	}
}
