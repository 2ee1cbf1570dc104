package timeout

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// FallbackContext carries what a provider needs to produce a substitute result
type FallbackContext struct {
	Operation string
	Input     string
	LastError error
	Metadata  map[string]string
}

// FallbackProvider supplies a substitute result when primary execution is
// exhausted. Providers are tried in registration order.
type FallbackProvider interface {
	Name() string
	CanHandle(operation string) bool
	Provide(ctx context.Context, fc FallbackContext) (string, error)
}

// rememberer is implemented by providers that want to observe good results
type rememberer interface {
	Remember(operation, output string)
}

// CachedResponseProvider replays the last good response for an operation
type CachedResponseProvider struct {
	cache *gocache.Cache
}

// NewCachedResponseProvider creates a cached-last-good-response provider
func NewCachedResponseProvider(ttl time.Duration) *CachedResponseProvider {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedResponseProvider{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Name returns the provider name
func (p *CachedResponseProvider) Name() string {
	return "cached-response"
}

// CanHandle reports whether a last good response exists for the operation
func (p *CachedResponseProvider) CanHandle(operation string) bool {
	_, found := p.cache.Get(operation)
	return found
}

// Provide returns the cached response
func (p *CachedResponseProvider) Provide(ctx context.Context, fc FallbackContext) (string, error) {
	if val, found := p.cache.Get(fc.Operation); found {
		return val.(string), nil
	}
	return "", fmt.Errorf("no cached response for operation %q", fc.Operation)
}

// Remember stores a good result for later replay
func (p *CachedResponseProvider) Remember(operation, output string) {
	p.cache.Set(operation, output, gocache.DefaultExpiration)
}

// DegradedProvider returns a reduced-quality placeholder for any operation
type DegradedProvider struct{}

// NewDegradedProvider creates a graceful-degradation provider
func NewDegradedProvider() *DegradedProvider {
	return &DegradedProvider{}
}

// Name returns the provider name
func (p *DegradedProvider) Name() string {
	return "graceful-degradation"
}

// CanHandle always accepts; this provider is the chain's last resort
func (p *DegradedProvider) CanHandle(operation string) bool {
	return true
}

// Provide returns a placeholder acknowledging the degraded result
func (p *DegradedProvider) Provide(ctx context.Context, fc FallbackContext) (string, error) {
	return fmt.Sprintf("The %q operation is temporarily unavailable. A reduced-quality response was substituted; please retry later for full results.", fc.Operation), nil
}
