package phasespace

import (
	"sync"

	"pdfint/domain/core"
)

// NormalisationCache stores one normalisation integral keyed by the boundary
// fingerprint and the discrete part of the point it was computed for.
// Integrands embed it to satisfy the caching half of the integrand contract.
// It is safe for concurrent use, but clones must get their own cache.
type NormalisationCache struct {
	mu       sync.RWMutex
	disabled bool
	valid    bool
	value    float64
	boundary core.BoundaryHash
	point    core.PointHash
}

// NewNormalisationCache creates an enabled, empty cache
func NewNormalisationCache() *NormalisationCache {
	return &NormalisationCache{}
}

// SetCachingEnabled toggles caching; disabling also drops the stored value
func (c *NormalisationCache) SetCachingEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = !enabled
	if !enabled {
		c.valid = false
	}
}

func (c *NormalisationCache) CachingEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled
}

// CacheValid reports whether the stored value was computed for the same boundary and discrete assignment
func (c *NormalisationCache) CacheValid(point *DataPoint, boundary *Boundary) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.disabled || !c.valid || point == nil || boundary == nil {
		return false
	}
	ph, err := point.Bind(boundary).DiscreteFingerprint()
	if err != nil {
		return false
	}
	return c.boundary == boundary.Fingerprint() && c.point == ph
}

func (c *NormalisationCache) CachedIntegral() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// SetCache stores value for the point and boundary; ignored when caching is disabled
func (c *NormalisationCache) SetCache(value float64, point *DataPoint, boundary *Boundary) {
	if point == nil || boundary == nil {
		return
	}
	ph, err := point.Bind(boundary).DiscreteFingerprint()
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.value = value
	c.boundary = boundary.Fingerprint()
	c.point = ph
	c.valid = true
}

// Invalidate drops the stored value; integrands call it when their parameters change
func (c *NormalisationCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Reset returns a fresh cache with the same enabled setting, for use in Clone implementations
func (c *NormalisationCache) Reset() *NormalisationCache {
	return &NormalisationCache{disabled: !c.CachingEnabled()}
}
