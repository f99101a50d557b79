package lru

import (
	"fmt"
	"sync"
	"testing"
)

// has reports whether key is cached without touching its recency.
func has[V any](c *Cache[string, V], key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func TestNew(t *testing.T) {
	cache := New[string, int](100)
	if cache == nil {
		t.Fatal("expected non-nil cache")
	}
	if cache.capacity != 100 {
		t.Errorf("capacity = %d, want 100", cache.capacity)
	}
	if len(cache.items) != 0 {
		t.Errorf("initial size = %d, want 0", len(cache.items))
	}
}

func TestCache_Add(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		adds     []string
		wantLen  int
	}{
		{
			name:     "add within capacity",
			capacity: 5,
			adds:     []string{"a", "b", "c"},
			wantLen:  3,
		},
		{
			name:     "add exceeds capacity",
			capacity: 3,
			adds:     []string{"a", "b", "c", "d", "e"},
			wantLen:  3,
		},
		{
			name:     "zero capacity",
			capacity: 0,
			adds:     []string{"a", "b", "c"},
			wantLen:  0,
		},
		{
			name:     "negative capacity",
			capacity: -1,
			adds:     []string{"a", "b"},
			wantLen:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := New[string, struct{}](tt.capacity)
			for _, key := range tt.adds {
				cache.Add(key, struct{}{})
			}
			if len(cache.items) != tt.wantLen {
				t.Errorf("size = %d, want %d", len(cache.items), tt.wantLen)
			}
		})
	}
}

func TestCache_AddReturnValue(t *testing.T) {
	cache := New[string, int](10)

	if !cache.Add("key1", 1) {
		t.Error("first Add('key1') should return true")
	}
	if cache.Add("key1", 2) {
		t.Error("duplicate Add('key1') should return false")
	}
	if v, _ := cache.Get("key1"); v != 2 {
		t.Errorf("Get('key1') = %d, want 2 after replace", v)
	}
}

func TestCache_Get(t *testing.T) {
	cache := New[string, int](2)

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get on empty cache should miss")
	}

	cache.Add("a", 1)
	cache.Add("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("Get('a') = %d, %v; want 1, true", v, ok)
	}
	cache.Add("c", 3)

	if has(cache, "b") {
		t.Error("'b' should have been evicted after 'a' was used")
	}
	if !has(cache, "a") || !has(cache, "c") {
		t.Error("'a' and 'c' should be present")
	}
}

func TestCache_EvictionOrder(t *testing.T) {
	cache := New[string, bool](3)

	cache.Add("a", true)
	cache.Add("b", true)
	cache.Add("c", true)
	cache.Add("d", true)

	if has(cache, "a") {
		t.Error("'a' should have been evicted")
	}
	if !has(cache, "b") || !has(cache, "c") || !has(cache, "d") {
		t.Error("'b', 'c', 'd' should still be present")
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache := New[int, int](64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				cache.Add(g*1000+i, i)
				cache.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()

	if len(cache.items) > 64 {
		t.Errorf("size = %d, must not exceed capacity 64", len(cache.items))
	}
}

func BenchmarkCache_Add(b *testing.B) {
	cache := New[string, int](10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Add(fmt.Sprintf("key%d", i), i)
	}
}

func BenchmarkCache_Get(b *testing.B) {
	cache := New[string, int](10000)
	for i := 0; i < 10000; i++ {
		cache.Add(fmt.Sprintf("key%d", i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(fmt.Sprintf("key%d", i%10000))
	}
}
