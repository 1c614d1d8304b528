package secrets

import (
	"sync"
	"testing"
	"time"
)

func samplePayee() PayeeConfig {
	return PayeeConfig{
		PayTo:    "0xBAc675C310721717Cd4A37F6cbeA1F081b1C2a07",
		Asset:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Network:  "base-sepolia",
		Decimals: 6,
	}
}

func TestCache_PutAndGet(t *testing.T) {
	cache := NewCache[PayeeConfig](2 * time.Second)
	key := "dev/x402/payee"

	// should miss initially
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Put(key, samplePayee())

	// immediate hit
	if cfg, ok := cache.Get(key); !ok {
		t.Fatal("expected cache hit")
	} else if cfg.Network != "base-sepolia" {
		t.Errorf("expected network base-sepolia, got %s", cfg.Network)
	}
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache[PayeeConfig](100 * time.Millisecond)
	key := "dev/x402/payee"
	cache.Put(key, samplePayee())

	time.Sleep(150 * time.Millisecond)

	if _, ok := cache.Get(key); ok {
		t.Fatal("expected expired cache entry")
	}
}

func TestCache_Bust(t *testing.T) {
	cache := NewCache[PayeeConfig](5 * time.Second)
	key := "dev/x402/payee"
	cache.Put(key, samplePayee())

	cache.Bust(key)
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected cache miss after bust")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache[PayeeConfig](2 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cache.Put("k", samplePayee())
				cache.Get("k")
			}
		}()
	}
	wg.Wait()
}

func TestCache_Cleaner(t *testing.T) {
	cache := NewCache[PayeeConfig](50 * time.Millisecond)
	cache.Put("k", samplePayee())

	stop := make(chan struct{})
	go cache.StartCleaner(20*time.Millisecond, stop)
	defer close(stop)

	time.Sleep(150 * time.Millisecond)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected cleaner to remove expired entry")
	}
}
