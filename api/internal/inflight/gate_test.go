package inflight

import (
	"context"
	"testing"
	"time"

	"image-to-text/api/internal/ocr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGate(t *testing.T, ttl time.Duration) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGate(rdb, ttl), mr
}

func TestAcquireIsExclusivePerChat(t *testing.T) {
	g, _ := newTestGate(t, time.Minute)
	ctx := context.Background()

	tok, ok, err := g.Acquire(ctx, 1)
	if err != nil || !ok || tok == "" {
		t.Fatalf("first acquire: tok=%q ok=%v err=%v", tok, ok, err)
	}
	if _, ok, _ := g.Acquire(ctx, 1); ok {
		t.Fatal("second acquire for the same chat must fail")
	}
	if _, ok, _ := g.Acquire(ctx, 2); !ok {
		t.Fatal("another chat must not be blocked")
	}
	if err := g.Release(ctx, 1, tok); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := g.Acquire(ctx, 1); !ok {
		t.Fatal("acquire after release must succeed")
	}
}

func TestReleaseWithForeignTokenKeepsLock(t *testing.T) {
	g, _ := newTestGate(t, time.Minute)
	ctx := context.Background()

	if _, ok, _ := g.Acquire(ctx, 5); !ok {
		t.Fatal("acquire failed")
	}
	if err := g.Release(ctx, 5, "someone-else"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := g.Acquire(ctx, 5); ok {
		t.Fatal("lock must survive a release with a foreign token")
	}
}

func TestLockExpires(t *testing.T) {
	g, mr := newTestGate(t, 30*time.Second)
	ctx := context.Background()

	if _, ok, _ := g.Acquire(ctx, 9); !ok {
		t.Fatal("acquire failed")
	}
	mr.FastForward(31 * time.Second)
	if _, ok, _ := g.Acquire(ctx, 9); !ok {
		t.Fatal("expired lock must be acquirable")
	}
}

func TestStateDefaultsToIdle(t *testing.T) {
	g, _ := newTestGate(t, time.Minute)
	rec, err := g.State(context.Background(), 42)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if rec.State != ocr.StateIdle {
		t.Fatalf("state = %q, want idle", rec.State)
	}
}

func TestNotifierRecordsAndForwards(t *testing.T) {
	g, _ := newTestGate(t, time.Minute)
	ctx := context.Background()

	var forwarded []ocr.State
	n := g.Notifier(ctx, 3, "a.png", func(s ocr.State) { forwarded = append(forwarded, s) })
	n(ocr.StateUploading)
	n(ocr.StatePolling)

	rec, err := g.State(ctx, 3)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if rec.State != ocr.StatePolling || rec.FileName != "a.png" {
		t.Fatalf("record = %+v", rec)
	}
	if len(forwarded) != 2 || forwarded[1] != ocr.StatePolling {
		t.Fatalf("forwarded = %v", forwarded)
	}
}
