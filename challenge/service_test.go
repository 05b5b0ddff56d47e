package challenge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aisgo/vlog-gateway/cache/redis"
	"github.com/aisgo/vlog-gateway/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestIssueCodeShape(t *testing.T) {
	svc := New(Config{}, NewMemoryStore(nil), logger.NewNop())
	for range 50 {
		id, code, err := svc.Issue(context.Background())
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if len(id) != 36 {
			t.Fatalf("unexpected id: %s", id)
		}
		if len(code) != DefaultLength {
			t.Fatalf("unexpected code length: %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet", code, r)
			}
		}
	}
}

func TestVerifyCaseInsensitiveSingleUse(t *testing.T) {
	svc := New(Config{}, NewMemoryStore(nil), logger.NewNop())
	ctx := context.Background()

	id, code, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ok, err := svc.Verify(ctx, id, " "+strings.ToLower(code)+" ")
	if err != nil || !ok {
		t.Fatalf("expected verify ok, got %v %v", ok, err)
	}
	if ok, _ := svc.Verify(ctx, id, code); ok {
		t.Fatalf("code must be single-use")
	}
}

func TestVerifyWrongAnswerConsumes(t *testing.T) {
	svc := New(Config{}, NewMemoryStore(nil), logger.NewNop())
	ctx := context.Background()

	id, code, _ := svc.Issue(ctx)
	if ok, _ := svc.Verify(ctx, id, "????"); ok {
		t.Fatalf("wrong answer accepted")
	}
	if ok, _ := svc.Verify(ctx, id, code); ok {
		t.Fatalf("id must be consumed after a wrong answer")
	}
	if ok, _ := svc.Verify(ctx, "", code); ok {
		t.Fatalf("empty id accepted")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore(clock.Now)
	svc := New(Config{TTL: time.Minute}, store, logger.NewNop())
	ctx := context.Background()

	id, code, _ := svc.Issue(ctx)
	clock.Advance(time.Minute)
	if ok, _ := svc.Verify(ctx, id, code); ok {
		t.Fatalf("expired code accepted")
	}

	_, _, _ = svc.Issue(ctx)
	_, _, _ = svc.Issue(ctx)
	clock.Advance(30 * time.Second)
	keep, _, _ := svc.Issue(ctx)
	clock.Advance(40 * time.Second)

	if n := store.Sweep(); n != 2 {
		t.Fatalf("expected 2 swept entries, got %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", store.Len())
	}
	if _, ok, _ := store.Take(ctx, keep); !ok {
		t.Fatalf("live entry was swept")
	}
}

func TestRedisStore(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: server.Addr()}), logger.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	svc := New(Config{Store: StoreRedis, TTL: 5 * time.Minute}, NewRedisStore(client), logger.NewNop())
	ctx := context.Background()

	id, code, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !server.Exists(keyPrefix + id) {
		t.Fatalf("expected key in redis")
	}
	if ok, err := svc.Verify(ctx, id, code); err != nil || !ok {
		t.Fatalf("verify: %v %v", ok, err)
	}
	if server.Exists(keyPrefix + id) {
		t.Fatalf("expected key to be consumed")
	}

	id, code, _ = svc.Issue(ctx)
	server.FastForward(6 * time.Minute)
	if ok, _ := svc.Verify(ctx, id, code); ok {
		t.Fatalf("expired code accepted")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: server.Addr(), MaxRetries: -1}), logger.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	svc := New(Config{}, NewRedisStore(client), logger.NewNop())
	if _, _, err := svc.Issue(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
}
