package cache

import (
	"testing"
	"time"

	"github.com/arbelos/keel/internal/model"
)

func TestNew_FromConfig(t *testing.T) {
	if c := New(model.CacheConfig{Enabled: false}); c != nil {
		t.Error("disabled config should build no cache")
	}
	if _, ok := New(model.CacheConfig{Enabled: true}).(*MemoryCache); !ok {
		t.Error("no dir should build a memory cache")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("dir should build a layered cache")
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, found := c.Get("k")
	if !found || string(got) != "v" {
		t.Errorf("expected v, got %q (found %v)", got, found)
	}

	c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("deleted key should miss")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)
	if err := c.Set("short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, found := c.Get("short"); !found {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(20 * time.Millisecond)
	if _, found := c.Get("short"); found {
		t.Error("expired entry should miss")
	}
}

func TestDiskCache_ArbitraryKeys(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)
	key := "factcheck:v1:some/claim?with strange*chars"
	if err := c.Set(key, []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, found := c.Get(key); !found || string(got) != "v" {
		t.Errorf("expected v, got %q (found %v)", got, found)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	layered := NewLayeredCache(time.Minute, dir, time.Minute)
	if err := layered.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// A fresh layered cache over the same dir has a cold memory layer
	fresh := NewLayeredCache(time.Minute, dir, time.Minute)
	if _, found := fresh.Get("k"); !found {
		t.Fatal("disk layer should serve the cold read")
	}

	// The hit is promoted: clearing disk must not lose the entry
	fresh.disk.Clear()
	if _, found := fresh.Get("k"); !found {
		t.Error("promoted entry should hit memory after disk clear")
	}
}
