package app

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/irfansharif/horde/internal/geom"
	"github.com/irfansharif/horde/internal/render"
)

const (
	// eliteChance is the fraction of spawns that are elite.
	eliteChance = 0.05
	// separation is how close, in radii, an enemy gets to the player before
	// it stops.
	separation    = 1.2
	flashDuration = 180 * time.Millisecond
)

// hitFlash is the tint of a struck enemy.
var hitFlash = colorful.Color{R: 1, G: 0.15, B: 0.1}

// EnemyID identifies an enemy for the lifetime of a swarm.
type EnemyID int

// Enemy is one simulated member of the horde.
type Enemy struct {
	ID     EnemyID
	Pos    geom.Point // world position
	Vel    geom.Point // world units per second
	Speed  float64
	Radius float64
	HP     float64
	Kind   string // base sprite key
	Elite  string // elite variant, empty for regular enemies
	Flags  render.AnimationFlags
	Flash  *render.Flash
}

// Swarm simulates enemies chasing the player.
type Swarm struct {
	enemies map[EnemyID]*Enemy
	kinds   []string
	elites  []string
	rng     *rand.Rand
	nextID  EnemyID

	snapshots []render.EntitySnapshot // reused across frames
}

// NewSwarm creates an empty swarm spawning the given enemy kinds and elite
// variants.
func NewSwarm(seed int64, kinds, elites []string) *Swarm {
	return &Swarm{
		enemies: make(map[EnemyID]*Enemy),
		kinds:   kinds,
		elites:  elites,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Len returns the number of live enemies.
func (s *Swarm) Len() int { return len(s.enemies) }

// AddKind makes a new enemy kind available to subsequent spawns.
func (s *Swarm) AddKind(kind string) { s.kinds = append(s.kinds, kind) }

// Spawn adds n enemies on a ring of the given radius around center.
func (s *Swarm) Spawn(n int, center geom.Point, radius float64) []*Enemy {
	if len(s.kinds) == 0 {
		return nil
	}
	spawned := make([]*Enemy, 0, n)
	for i := 0; i < n; i++ {
		theta := s.rng.Float64() * 2 * math.Pi
		dist := radius * (0.6 + 0.4*s.rng.Float64())
		e := &Enemy{
			ID:     s.nextID,
			Pos:    geom.MakePoint(center.X+dist*math.Cos(theta), center.Y+dist*math.Sin(theta)),
			Speed:  40 + 80*s.rng.Float64(),
			Radius: 10 + 14*s.rng.Float64(),
			HP:     10,
			Kind:   s.kinds[s.rng.Intn(len(s.kinds))],
		}
		if len(s.elites) > 0 && s.rng.Float64() < eliteChance {
			e.Elite = s.elites[s.rng.Intn(len(s.elites))]
			e.Radius *= 1.5
			e.HP *= 4
			e.Flags |= render.Pulse
		}
		switch s.rng.Intn(4) {
		case 0:
			e.Flags |= render.Spin
		case 1:
			e.Flags |= render.Wobble
		}
		s.enemies[e.ID] = e
		s.nextID++
		spawned = append(spawned, e)
	}
	return spawned
}

// Update advances every enemy by dt, steering toward the player.
func (s *Swarm) Update(dt time.Duration, player geom.Point) {
	secs := dt.Seconds()
	for _, e := range s.Enemies() {
		toPlayer := player.Sub(e.Pos)
		dist := math.Hypot(toPlayer.X, toPlayer.Y)
		if dist > e.Radius*separation {
			dir := toPlayer.Scale(1 / dist)
			jitter := geom.MakePoint(s.rng.Float64()-0.5, s.rng.Float64()-0.5).Scale(0.6)
			e.Vel = dir.Add(jitter).Scale(e.Speed)
		} else {
			e.Vel = geom.Point{}
		}
		e.Pos = e.Pos.Add(e.Vel.Scale(secs))

		if e.Flash != nil {
			e.Flash.Remaining -= dt
			if e.Flash.Remaining <= 0 {
				e.Flash = nil
			}
		}
	}
}

// Strike damages every enemy within radius of center, flashing it, and
// returns how many were hit.
func (s *Swarm) Strike(center geom.Point, radius, damage float64) int {
	hit := 0
	for _, e := range s.enemies {
		if geom.Dist(e.Pos, center) > radius+e.Radius {
			continue
		}
		e.HP -= damage
		e.Flash = &render.Flash{Color: hitFlash, Remaining: flashDuration, Duration: flashDuration}
		hit++
	}
	return hit
}

// Reap removes dead enemies and returns how many were removed.
func (s *Swarm) Reap() int {
	removed := 0
	for id, e := range s.enemies {
		if e.HP <= 0 {
			delete(s.enemies, id)
			removed++
		}
	}
	return removed
}

// Remove removes an enemy by ID.
func (s *Swarm) Remove(id EnemyID) bool {
	if _, ok := s.enemies[id]; ok {
		delete(s.enemies, id)
		return true
	}
	return false
}

// Enemies returns all enemies sorted by ID (ascending).
func (s *Swarm) Enemies() []*Enemy {
	enemies := make([]*Enemy, 0, len(s.enemies))
	for _, e := range s.enemies {
		enemies = append(enemies, e)
	}
	sort.Slice(enemies, func(i, j int) bool { return enemies[i].ID < enemies[j].ID })
	return enemies
}

// FindClosest returns all enemies sorted by distance to p (closest first).
// Enemies at equal distance are ordered by ID (highest first).
func (s *Swarm) FindClosest(p geom.Point) []*Enemy {
	type sortKey struct {
		distance float64
		id       EnemyID
	}

	keys := make([]sortKey, 0, len(s.enemies))
	for _, e := range s.enemies {
		keys = append(keys, sortKey{geom.Dist(e.Pos, p), e.ID})
	}
	sort.Slice(keys, func(i, j int) bool {
		if math.Abs(keys[i].distance-keys[j].distance) < 1e-4 {
			return keys[i].id > keys[j].id
		}
		return keys[i].distance < keys[j].distance
	})

	result := make([]*Enemy, len(keys))
	for i, k := range keys {
		result[i] = s.enemies[k.id]
	}
	return result
}

// Snapshots returns the renderer's view of every enemy, in ID order. The
// returned slice is reused by the next call.
func (s *Swarm) Snapshots() []render.EntitySnapshot {
	s.snapshots = s.snapshots[:0]
	for _, e := range s.Enemies() {
		var flash *render.Flash
		if e.Flash != nil {
			f := *e.Flash
			flash = &f
		}
		s.snapshots = append(s.snapshots, render.EntitySnapshot{
			X:            e.Pos.X,
			Y:            e.Pos.Y,
			Radius:       e.Radius,
			Active:       true,
			HitPoints:    e.HP,
			TypeKey:      e.Kind,
			EliteVariant: e.Elite,
			Facing:       e.Vel.X,
			Flags:        e.Flags,
			Flash:        flash,
		})
	}
	return s.snapshots
}
