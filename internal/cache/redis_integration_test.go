//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// Run with: AQUAHARVEST_TEST_REDIS_ADDR=localhost:6379 go test -tags=integration ./internal/cache/...
func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	addr := os.Getenv("AQUAHARVEST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AQUAHARVEST_TEST_REDIS_ADDR not set")
	}

	c, err := NewRedisCache(addr, os.Getenv("AQUAHARVEST_TEST_REDIS_PASSWORD"), 15)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	t.Run("SetGetDelete", func(t *testing.T) {
		if err := c.Set(ctx, "it:key", []byte("value"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := c.Get(ctx, "it:key")
		if err != nil || string(got) != "value" {
			t.Fatalf("expected value, got %q (%v)", got, err)
		}
		if err := c.Delete(ctx, "it:key"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if got, _ := c.Get(ctx, "it:key"); got != nil {
			t.Errorf("expected miss after delete, got %q", got)
		}
	})

	t.Run("Region", func(t *testing.T) {
		region := &domain.Region{Code: "it-region", RainfallMM: 1500, TariffPer1000L: 16, Known: true}
		if err := c.SetRegion(ctx, region, time.Minute); err != nil {
			t.Fatalf("SetRegion failed: %v", err)
		}
		defer c.Delete(ctx, regionKey("it-region"))

		got, err := c.GetRegion(ctx, "it-region")
		if err != nil || got == nil || got.RainfallMM != 1500 {
			t.Fatalf("unexpected region %+v (%v)", got, err)
		}
	})

	t.Run("Counter", func(t *testing.T) {
		key := "it:counter:" + time.Now().Format("150405.000000")
		for want := int64(1); want <= 3; want++ {
			got, err := c.IncrementCounter(ctx, key, time.Minute)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		}
	})

	t.Run("TwoPhase", func(t *testing.T) {
		tp := newTwoPhase(NewLRUCache(10), c, time.Minute)
		if err := tp.Set(ctx, "it:tp", []byte("both"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		defer c.Delete(ctx, "it:tp")

		remote, _ := c.Get(ctx, "it:tp")
		if string(remote) != "both" {
			t.Errorf("expected value in redis, got %q", remote)
		}
	})
}
