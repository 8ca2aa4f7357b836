package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRistrettoCache(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, err := NewRistrettoCache(&RistrettoConfig{
		Name:        "test",
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	t.Run("set-and-get", func(t *testing.T) {
		success := cache.Set("order-1", "confirmed", time.Hour)
		if !success {
			t.Skip("Ristretto dropped the write under contention")
		}
		cache.Wait()

		retrieved, found := cache.Get("order-1")
		if !found {
			t.Fatal("expected key to be found")
		}
		if retrieved != "confirmed" {
			t.Errorf("expected %q, got %v", "confirmed", retrieved)
		}
	})

	t.Run("get-missing-key", func(t *testing.T) {
		_, found := cache.Get("nonexistent")
		if found {
			t.Error("expected key to not be found")
		}
	})

	t.Run("delete", func(t *testing.T) {
		cache.Set("order-2", "failed", time.Hour)
		cache.Wait()

		cache.Delete("order-2")
		cache.Wait()

		_, found := cache.Get("order-2")
		if found {
			t.Error("expected key to be deleted")
		}
	})

	t.Run("ttl-expiration", func(t *testing.T) {
		cache.Set("order-3", "confirmed", 200*time.Millisecond)
		cache.Wait()

		if _, found := cache.Get("order-3"); !found {
			t.Skip("Ristretto probabilistic admission - key not admitted")
		}

		time.Sleep(300 * time.Millisecond)

		if _, found := cache.Get("order-3"); found {
			t.Error("expected key to be expired after TTL")
		}
	})
}

func TestNewResolvedOrderCache(t *testing.T) {
	cache, err := NewResolvedOrderCache(0, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	if cache.name != "resolved-orders" {
		t.Errorf("expected name resolved-orders, got %s", cache.name)
	}

	var _ Cache = cache
}
