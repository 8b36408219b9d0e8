package core

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// GroundProbe answers "how high is the ground directly below (x, z)?".
// ok is false when the probe did not hit a surface (gap, occlusion, out of range).
type GroundProbe interface {
	Probe(x, z float64) (height float64, ok bool)
}

// GroundProbeFunc adapts a function to GroundProbe.
type GroundProbeFunc func(x, z float64) (float64, bool)

// Probe calls f.
func (f GroundProbeFunc) Probe(x, z float64) (float64, bool) { return f(x, z) }

// FlatGround is a level plane at Height.
type FlatGround struct {
	Height float64
}

// Probe always hits.
func (g FlatGround) Probe(x, z float64) (float64, bool) { return g.Height, true }

// WavyTerrain is a synthetic rolling surface for demos and soak runs.
type WavyTerrain struct {
	BaseHeight float64
	Amplitude1 float64
	Period1    float64
	Amplitude2 float64
	Period2    float64
}

// DefaultWavyTerrain returns gentle hills a few metres high.
func DefaultWavyTerrain() WavyTerrain {
	return WavyTerrain{
		Amplitude1: 4,
		Period1:    200,
		Amplitude2: 1.5,
		Period2:    60,
	}
}

// Probe evaluates the surface height.
func (w WavyTerrain) Probe(x, z float64) (float64, bool) {
	h := w.BaseHeight
	if w.Period1 != 0 {
		h += math.Sin(x/w.Period1) * w.Amplitude1
	}
	if w.Period2 != 0 {
		h += math.Sin((x+z)/w.Period2) * w.Amplitude2
	}
	return h, true
}

// Gap is a circular region where a probe returns no hit.
type Gap struct {
	CenterX float64
	CenterZ float64
	RadiusM float64
}

// GappedProbe wraps a probe and misses inside any of its gaps.
type GappedProbe struct {
	Inner GroundProbe
	Gaps  []Gap
}

// Probe misses inside a gap and delegates elsewhere.
func (g GappedProbe) Probe(x, z float64) (float64, bool) {
	for _, gap := range g.Gaps {
		if math.Hypot(x-gap.CenterX, z-gap.CenterZ) <= gap.RadiusM {
			return 0, false
		}
	}
	if g.Inner == nil {
		return 0, false
	}
	return g.Inner.Probe(x, z)
}

type cellKey struct {
	i, k int64
}

// CachedProbe memoises successful probes per square grid cell. Misses are
// never cached so a transient occlusion does not stick.
type CachedProbe struct {
	inner    GroundProbe
	cellSize float64
	cache    *lru.Cache[cellKey, float64]
}

// NewCachedProbe wraps inner with an LRU of up to size cells of cellSize metres.
func NewCachedProbe(inner GroundProbe, size int, cellSize float64) (*CachedProbe, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached probe: inner probe is nil")
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("cached probe: cell size must be positive, got %f", cellSize)
	}
	c, err := lru.New[cellKey, float64](size)
	if err != nil {
		return nil, fmt.Errorf("cached probe: %w", err)
	}
	return &CachedProbe{inner: inner, cellSize: cellSize, cache: c}, nil
}

// Probe returns the memoised height for the cell, probing inner on a cache miss.
func (c *CachedProbe) Probe(x, z float64) (float64, bool) {
	key := cellKey{
		i: int64(math.Floor(x / c.cellSize)),
		k: int64(math.Floor(z / c.cellSize)),
	}
	if h, ok := c.cache.Get(key); ok {
		return h, true
	}
	h, ok := c.inner.Probe(x, z)
	if ok {
		c.cache.Add(key, h)
	}
	return h, ok
}

// Len returns the number of cached cells.
func (c *CachedProbe) Len() int { return c.cache.Len() }

// Purge drops every cached cell.
func (c *CachedProbe) Purge() { c.cache.Purge() }
