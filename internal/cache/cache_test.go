package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' becomes the oldest
		_, _ = smallCache.Get(ctx, "a")

		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		if val, _ := smallCache.Get(ctx, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := smallCache.Get(ctx, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("RequiresKey", func(t *testing.T) {
		if err := cache.Set(ctx, "", []byte("value"), time.Minute); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got %v", err)
		}
		if _, err := cache.Get(ctx, ""); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got %v", err)
		}
		if _, err := cache.IncrementCounter(ctx, "", time.Second); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got %v", err)
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, "ratelimit:10.0.0.1", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, "ratelimit:10.0.0.1", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		other, _ := cache.IncrementCounter(ctx, "ratelimit:10.0.0.2", window)
		if other != 1 {
			t.Errorf("expected independent counter to start at 1, got %d", other)
		}

		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, "ratelimit:10.0.0.1", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("IncrementCounterConcurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = cache.IncrementCounter(ctx, "burst", time.Minute)
			}()
		}
		wg.Wait()

		count, _ := cache.IncrementCounter(ctx, "burst", time.Minute)
		if count != 51 {
			t.Errorf("expected count 51, got %d", count)
		}
	})

	t.Run("RegionCache", func(t *testing.T) {
		region := &domain.Region{
			Code:           "kerala",
			Name:           "Kerala",
			RainfallMM:     2800,
			TariffPer1000L: 12,
			Known:          true,
		}

		if err := cache.SetRegion(ctx, region, time.Minute); err != nil {
			t.Fatalf("SetRegion failed: %v", err)
		}

		got, err := cache.GetRegion(ctx, "kerala")
		if err != nil {
			t.Fatalf("GetRegion failed: %v", err)
		}
		if got == nil || got.RainfallMM != 2800 || !got.Known {
			t.Errorf("unexpected cached region: %+v", got)
		}

		miss, err := cache.GetRegion(ctx, "goa")
		if err != nil || miss != nil {
			t.Errorf("expected nil, nil on miss, got %+v, %v", miss, err)
		}

		if err := cache.SetRegion(ctx, &domain.Region{}, time.Minute); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey for region without code, got %v", err)
		}
	})

	t.Run("CorruptRegion", func(t *testing.T) {
		_ = cache.Set(ctx, regionKey("broken"), []byte("{not json"), time.Minute)
		if _, err := cache.GetRegion(ctx, "broken"); err == nil {
			t.Error("expected decode error for corrupt entry")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		if val, _ := testCache.Get(ctx, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestCounterSweep(t *testing.T) {
	cache := NewLRUCache(2)
	ctx := context.Background()

	_, _ = cache.IncrementCounter(ctx, "a", time.Millisecond)
	_, _ = cache.IncrementCounter(ctx, "b", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, _ = cache.IncrementCounter(ctx, "c", time.Minute)

	cache.mu.RLock()
	n := len(cache.counters)
	cache.mu.RUnlock()

	if n != 1 {
		t.Errorf("expected expired counters to be swept, have %d", n)
	}
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestTwoPhaseLocalTTL(t *testing.T) {
	c := newTwoPhase(NewLRUCache(10), nil, 0)

	if c.l1TTL != 5*time.Minute {
		t.Errorf("expected default L1 TTL 5m, got %v", c.l1TTL)
	}
	if got := c.localTTL(time.Second); got != time.Second {
		t.Errorf("expected L1 TTL capped to 1s, got %v", got)
	}
	if got := c.localTTL(time.Hour); got != 5*time.Minute {
		t.Errorf("expected L1 TTL 5m, got %v", got)
	}
}
