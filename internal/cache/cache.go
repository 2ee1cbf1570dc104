package cache

import (
	"time"

	"github.com/arbelos/keel/internal/model"
)

// Cache is the verification cache contract. Implementations store opaque
// serialized values under string keys with per-entry expiry.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// New builds the verification cache from configuration: memory only by
// default, memory+disk layered when a directory is set, nil when disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memoryTTL := cfg.MemoryTTL
	if memoryTTL <= 0 {
		memoryTTL = 15 * time.Minute
	}
	if cfg.Dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}

	diskTTL := cfg.DiskTTL
	if diskTTL <= 0 {
		diskTTL = 24 * time.Hour
	}
	return NewLayeredCache(memoryTTL, cfg.Dir, diskTTL)
}
