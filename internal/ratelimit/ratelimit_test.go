package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryEnforcesInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryWithClock(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if ok, _ := limiter.TryAcquire(ctx, "13800138000"); !ok {
		t.Fatal("first acquire should succeed")
	}
	if ok, _ := limiter.TryAcquire(ctx, "13800138000"); ok {
		t.Fatal("second acquire inside interval should fail")
	}
	if ok, _ := limiter.TryAcquire(ctx, "13800138001"); !ok {
		t.Fatal("other key should be independent")
	}

	now = now.Add(59 * time.Second)
	if ok, _ := limiter.TryAcquire(ctx, "13800138000"); ok {
		t.Fatal("acquire at 59s should fail")
	}

	now = now.Add(time.Second)
	if ok, _ := limiter.TryAcquire(ctx, "13800138000"); !ok {
		t.Fatal("acquire at 60s should succeed")
	}
}

func TestMemoryRelease(t *testing.T) {
	limiter := NewMemory(time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.TryAcquire(ctx, "k"); !ok {
		t.Fatal("first acquire should succeed")
	}
	if err := limiter.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := limiter.TryAcquire(ctx, "k"); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestMemorySweepsExpiredKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryWithClock(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		limiter.TryAcquire(ctx, key)
	}
	now = now.Add(2 * time.Minute)
	limiter.TryAcquire(ctx, "d")

	if len(limiter.acquired) != 1 {
		t.Fatalf("acquired keys = %d, want 1", len(limiter.acquired))
	}
}

func TestMemoryConcurrentAcquireGrantsOnce(t *testing.T) {
	limiter := NewMemory(time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.TryAcquire(ctx, "same"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Fatalf("granted = %d, want 1", granted)
	}
}

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := f.keys[key]; ok {
			delete(f.keys, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisAcquireAndRelease(t *testing.T) {
	fake := &fakeRedis{keys: make(map[string]time.Duration)}
	limiter := NewRedis(fake, "send_code:", time.Minute)
	ctx := context.Background()

	ok, err := limiter.TryAcquire(ctx, "13800138000")
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if ttl := fake.keys["send_code:13800138000"]; ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	ok, err = limiter.TryAcquire(ctx, "13800138000")
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v", ok, err)
	}

	if err := limiter.Release(ctx, "13800138000"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := limiter.TryAcquire(ctx, "13800138000"); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestRedisPropagatesErrors(t *testing.T) {
	fake := &fakeRedis{keys: make(map[string]time.Duration), err: errors.New("connection refused")}
	limiter := NewRedis(fake, "send_code:", time.Minute)

	if _, err := limiter.TryAcquire(context.Background(), "k"); err == nil {
		t.Fatal("expected acquire error")
	}
	if err := limiter.Release(context.Background(), "k"); err == nil {
		t.Fatal("expected release error")
	}
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*Redis)(nil)
)
