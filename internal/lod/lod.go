// Package lod decides how much rendering effort each enemy gets.
//
// Entities are classified into tiers by their distance to the player. When the
// rolling average frame time exceeds a tier's ceiling, entities in that tier
// are randomly omitted for the frame at the tier's skip ratio. The near tier
// is never skipped. The far tier can additionally be drawn as a small generic
// imposter instead of its real sprite.
package lod

import (
	"fmt"
	"math/rand"
)

// Tier is a level-of-detail class.
type Tier int

const (
	Near Tier = iota
	Mid
	Far
)

func (t Tier) String() string {
	switch t {
	case Near:
		return "near"
	case Mid:
		return "mid"
	case Far:
		return "far"
	default:
		return "unknown"
	}
}

// Config holds the policy thresholds.
type Config struct {
	NearDistance float64 // below this, Near
	FarDistance  float64 // at or beyond this, Far

	MidCeilingMs float64 // average frame time above which Mid entities may be skipped
	FarCeilingMs float64 // average frame time above which Far entities may be skipped
	MidSkipRatio float64 // fraction of Mid entities skipped when over the ceiling
	FarSkipRatio float64 // fraction of Far entities skipped when over the ceiling

	Imposters    bool    // substitute the imposter sprite for Far entities
	FarSizeScale float64 // size multiplier for Far entities drawn as imposters
}

// DefaultConfig returns thresholds tuned for a 60 FPS target.
func DefaultConfig() Config {
	return Config{
		NearDistance: 600,
		FarDistance:  1400,
		MidCeilingMs: 22,
		FarCeilingMs: 18,
		MidSkipRatio: 0.3,
		FarSkipRatio: 0.7,
		Imposters:    true,
		FarSizeScale: 0.6,
	}
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.NearDistance < 0 || c.FarDistance < c.NearDistance {
		return fmt.Errorf("lod: distances must satisfy 0 <= near (%v) <= far (%v)", c.NearDistance, c.FarDistance)
	}
	for _, r := range []float64{c.MidSkipRatio, c.FarSkipRatio} {
		if r < 0 || r > 1 {
			return fmt.Errorf("lod: skip ratio %v outside [0, 1]", r)
		}
	}
	if c.Imposters && (c.FarSizeScale <= 0 || c.FarSizeScale > 1) {
		return fmt.Errorf("lod: far size scale %v outside (0, 1]", c.FarSizeScale)
	}
	return nil
}

// Policy applies a Config. It owns its random source so that skip decisions
// are fresh per entity per frame yet reproducible for a fixed seed.
type Policy struct {
	cfg Config
	rng *rand.Rand
}

// NewPolicy creates a policy drawing randomness from rng.
func NewPolicy(cfg Config, rng *rand.Rand) *Policy {
	return &Policy{cfg: cfg, rng: rng}
}

// Config returns the policy's configuration.
func (p *Policy) Config() Config { return p.cfg }

// SetImposters toggles far-tier imposter substitution.
func (p *Policy) SetImposters(on bool) { p.cfg.Imposters = on }

// Classify returns the tier for an entity at distance from the player.
func (p *Policy) Classify(distance float64) Tier {
	switch {
	case distance < p.cfg.NearDistance:
		return Near
	case distance < p.cfg.FarDistance:
		return Mid
	default:
		return Far
	}
}

// ShouldSkip reports whether an entity of the given tier is omitted this
// frame. Every call makes an independent random draw when the tier is over
// its frame-time ceiling.
func (p *Policy) ShouldSkip(t Tier, avgFrameMs float64) bool {
	var ceiling, ratio float64
	switch t {
	case Mid:
		ceiling, ratio = p.cfg.MidCeilingMs, p.cfg.MidSkipRatio
	case Far:
		ceiling, ratio = p.cfg.FarCeilingMs, p.cfg.FarSkipRatio
	default:
		return false // near entities are always drawn
	}
	if avgFrameMs <= ceiling || ratio <= 0 {
		return false
	}
	return p.rng.Float64() < ratio
}

// Degrade returns whether an entity of the given tier should be drawn as the
// imposter and the factor to scale its size by.
func (p *Policy) Degrade(t Tier) (imposter bool, sizeScale float64) {
	if t == Far && p.cfg.Imposters {
		return true, p.cfg.FarSizeScale
	}
	return false, 1
}
