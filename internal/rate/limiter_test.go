package rate

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 10,
		Burst:             5,
	})

	// Should allow up to burst count immediately
	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("expected 5 allowed from burst, got %d", allowed)
	}
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 100, // refills fast
		Burst:             2,
	})

	// Drain the bucket
	for lim.Allow() {
	}

	// Wait for tokens to refill
	time.Sleep(50 * time.Millisecond)

	if !lim.Allow() {
		t.Error("expected token to be available after refill period")
	}
}

func TestLimiter_BurstCap(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 1000,
		Burst:             3,
	})

	// Even after a long sleep, tokens should not exceed burst
	time.Sleep(100 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("expected burst cap of 3, got %d", allowed)
	}
}

func TestManager_PerClientIsolation(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	if !m.Allow("client-a") {
		t.Fatal("first request for client-a should pass")
	}
	if m.Allow("client-a") {
		t.Error("second request for client-a should be limited")
	}
	if !m.Allow("client-b") {
		t.Error("client-b has its own bucket and should pass")
	}
}

func TestManager_GetLimiterReuse(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	if m.GetLimiter("c1") != m.GetLimiter("c1") {
		t.Error("expected the same limiter instance per key")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 100, Burst: 100})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.Allow("shared")
			}
		}()
	}
	wg.Wait()
}

func TestManager_NilAllowsEverything(t *testing.T) {
	var m *Manager
	if !m.Allow("anyone") {
		t.Error("nil manager must not limit")
	}
}
