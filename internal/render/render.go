// Package render draws the enemy horde.
//
// Every frame it:
// 1. Keeps a texture atlas of all enemy sprites up to date, rebuilding it
// (throttled) whenever the sprite provider changes or a sprite is missing.
// 2. Culls entities against the camera and sheds distant ones under load.
// 3. Writes one instance record per surviving entity and uploads them.
// 4. Issues a single instanced draw into an off-screen target.
package render

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/horde/internal/atlas"
	"github.com/irfansharif/horde/internal/geom"
	"github.com/irfansharif/horde/internal/gpu"
	"github.com/irfansharif/horde/internal/lod"
	"github.com/irfansharif/horde/internal/memory"
	"github.com/irfansharif/horde/internal/palette"
	"github.com/irfansharif/horde/internal/shader"
)

var renderLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("HORDE_DEBUG_RENDER") == "1" {
		renderLogger = log.New(os.Stdout, "[render] ", log.Ltime|log.Lmsgprefix)
	}
}

// Config tunes the renderer.
type Config struct {
	RebuildInterval    time.Duration // minimum time between atlas build attempts
	MissingKeyCooldown time.Duration // a missing key is logged and re-flagged at most once per window
	CullPadding        float64       // design units beyond the view still drawn

	Atlas       atlas.Builder
	LOD         lod.Config
	FrameWindow int   // frames averaged for the load signal
	Seed        int64 // seeds LOD skip decisions

	// Now is the clock; it defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default renderer configuration.
func DefaultConfig() Config {
	return Config{
		RebuildInterval:    250 * time.Millisecond,
		MissingKeyCooldown: 5 * time.Second,
		CullPadding:        64,
		Atlas:              atlas.NewBuilder(),
		LOD:                lod.DefaultConfig(),
		FrameWindow:        lod.DefaultWindow,
		Seed:               1,
	}
}

// Renderer draws the horde into an off-screen target. It is not safe for
// concurrent use and must be driven from the thread holding the GL context.
type Renderer struct {
	device gpu.Device
	cfg    Config
	now    func() time.Time

	target    gpu.Target
	pipeline  *shader.Pipeline
	instances *memory.InstanceBuffer
	texture   gpu.Texture
	atlas     *atlas.Atlas

	policy *lod.Policy
	timer  *lod.FrameTimer

	// Atlas state. The renderer is Ready when ready is set; dirty requests a
	// rebuild.
	ready       bool
	dirty       bool
	attempted   bool
	lastAttempt time.Time
	versionSeen uint64
	versionSet  bool
	atlasBuilds int

	missing    map[string]time.Time // key → when it was last flagged
	flagged    map[string]struct{}  // keys to request on the next build
	dirtyMarks int

	started   time.Time
	lastFrame time.Time
	stats     Stats
}

// New creates a renderer drawing into a width×height off-screen target. It
// fails with gpu.ErrNoContext if there is no device, and with a wrapped error
// if the target or the sprite program cannot be created.
func New(device gpu.Device, width, height int, cfg Config) (*Renderer, error) {
	if device == nil {
		return nil, fmt.Errorf("creating renderer: %w", gpu.ErrNoContext)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("creating renderer: invalid target dimensions %dx%d", width, height)
	}
	if err := cfg.LOD.Validate(); err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	target, err := device.NewTarget(width, height)
	if err != nil {
		return nil, fmt.Errorf("creating renderer target: %w", err)
	}
	pipeline, err := shader.New(device)
	if err != nil {
		device.DeleteTarget(target)
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	instances := memory.NewInstanceBuffer(device)
	pipeline.Attach(instances.Buffer())

	r := &Renderer{
		device:    device,
		cfg:       cfg,
		now:       now,
		target:    target,
		pipeline:  pipeline,
		instances: instances,
		policy:    lod.NewPolicy(cfg.LOD, rand.New(rand.NewSource(cfg.Seed))),
		timer:     lod.NewFrameTimer(cfg.FrameWindow),
		dirty:     true,
		missing:   make(map[string]time.Time),
		flagged:   make(map[string]struct{}),
		started:   now(),
	}
	renderLogger.Printf("renderer created: %dx%d target", width, height)
	return r, nil
}

// Output returns the off-screen target the horde is drawn into.
func (r *Renderer) Output() gpu.Target { return r.target }

// Stats returns the diagnostic snapshot of the last frame.
func (r *Renderer) Stats() Stats { return r.stats }

// MemoryStats returns the instance buffer statistics.
func (r *Renderer) MemoryStats() memory.Stats { return r.instances.Stats() }

// PrintMemoryStats logs the instance buffer statistics to the memory debug
// logger.
func (r *Renderer) PrintMemoryStats() { r.instances.PrintStats() }

// Policy returns the LOD policy, e.g. to toggle imposters at runtime.
func (r *Renderer) Policy() *lod.Policy { return r.policy }

// Resize recreates the off-screen target at the given pixel size.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}
	if width == r.target.Width && height == r.target.Height {
		return nil
	}
	target, err := r.device.NewTarget(width, height)
	if err != nil {
		return fmt.Errorf("resizing target to %dx%d: %w", width, height, err)
	}
	r.device.DeleteTarget(r.target)
	r.target = target
	renderLogger.Printf("target resized to %dx%d", width, height)
	return nil
}

// Dispose releases every GPU resource owned by the renderer.
func (r *Renderer) Dispose() {
	r.pipeline.Delete()
	r.instances.Delete()
	if r.texture != 0 {
		r.device.DeleteTexture(r.texture)
		r.texture = 0
	}
	if r.target.FBO != 0 {
		r.device.DeleteTarget(r.target)
		r.target = gpu.Target{}
	}
	r.atlas, r.ready = nil, false
}

// Render draws one frame and returns its stats.
func (r *Renderer) Render(f Frame) (stats Stats) {
	now := r.now()
	if !r.lastFrame.IsZero() {
		r.timer.Observe(now.Sub(r.lastFrame))
	}
	r.lastFrame = now

	defer func() {
		stats.AtlasReady = r.ready
		stats.AtlasBuilds = r.atlasBuilds
		stats.Capacity = r.instances.Capacity()
		stats.AvgFrameMs = r.timer.AverageMs()
		if r.atlas != nil && r.ready {
			stats.AtlasSize = r.atlas.Layout.Width
		}
		r.stats = stats
	}()

	if f.Camera.PixelW > 0 && f.Camera.PixelH > 0 {
		if err := r.Resize(f.Camera.PixelW, f.Camera.PixelH); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}

	if f.Sprites == nil {
		r.device.BeginPass(r.target)
		return stats
	}
	if v := f.Sprites.SpriteVersion(); !r.versionSet || v != r.versionSeen {
		changed := r.versionSet
		r.versionSeen, r.versionSet = v, true
		if changed {
			renderLogger.Printf("sprite version changed to %d, atlas pending", v)
			r.ready, r.dirty = false, true
			r.device.BeginPass(r.target)
			return stats
		}
	}

	if r.dirty {
		r.rebuild(f.Sprites, now)
	}
	if !r.ready {
		r.device.BeginPass(r.target)
		return stats
	}

	prepareStart := time.Now()
	used, demote := r.prepare(f, now, &stats)
	stats.LastPrepareTimeMs = float64(time.Since(prepareStart).Microseconds()) / 1000.0

	drawStart := time.Now()
	r.draw(used, f.Camera)
	stats.Instances = used
	stats.LastDrawTimeUs = float64(time.Since(drawStart).Microseconds())

	if demote {
		r.ready = false
	}
	return stats
}

// rebuild attempts an atlas build if the provider is ready and the throttle
// interval has passed. On success the renderer becomes Ready; on failure it
// stays pending and retries on a later frame.
func (r *Renderer) rebuild(p SpriteProvider, now time.Time) {
	if !p.Ready() {
		return
	}
	if r.attempted && now.Sub(r.lastAttempt) < r.cfg.RebuildInterval {
		return
	}
	r.attempted, r.lastAttempt = true, now
	startTime := time.Now()

	keys := p.Keys()
	seen := make(map[string]struct{}, len(keys)+len(r.flagged))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	var extra []string
	for k := range r.flagged {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys[:len(keys):len(keys)], extra...)

	sources := make([]atlas.Source, 0, len(keys))
	for _, k := range keys {
		img, ok := p.Sprite(k)
		if !ok || img == nil {
			renderLogger.Printf("sprite %q unavailable, not packed", k)
			// Requested again after its cooldown if still missing.
			delete(r.flagged, k)
			continue
		}
		b := img.Bounds()
		sources = append(sources, atlas.Source{Key: k, Bitmap: img, Side: max(b.Dx(), b.Dy())})
	}

	a, err := r.cfg.Atlas.Build(sources)
	if err != nil {
		if !errors.Is(err, atlas.ErrEmpty) {
			log.Printf("WARNING: atlas build failed: %v", err)
		}
		renderLogger.Printf("atlas build attempt: %v; staying pending", err)
		return
	}

	if r.texture == 0 {
		r.texture = r.device.NewTexture()
	}
	r.device.UploadTexture(r.texture, a.Image)
	r.atlas = a
	r.ready, r.dirty = true, false
	r.atlasBuilds++
	for k := range r.flagged {
		if _, ok := a.Lookup(k); ok {
			delete(r.flagged, k)
		}
	}
	r.pruneMissing(now)
	w, h := a.Size()
	renderLogger.Printf("atlas built: %d sprites, %dx%d, %d skipped (%.2fms)",
		a.Len(), w, h, len(a.Layout.Skipped), float64(time.Since(startTime).Microseconds())/1000.0)
}

// prepare writes instance records for the surviving entities and returns how
// many were written, and whether a missing key requires going pending after
// this frame.
func (r *Renderer) prepare(f Frame, now time.Time, stats *Stats) (used int, demote bool) {
	r.instances.EnsureCapacity(len(f.Entities))

	cam := f.Camera
	designW, designH := float64(cam.DesignW), float64(cam.DesignH)
	if designW <= 0 || designH <= 0 {
		designW, designH = float64(r.target.Width), float64(r.target.Height)
	}
	view := geom.MakeBox(0, 0, designW, designH)
	worldToScreen := geom.Translate(-cam.X, -cam.Y)
	worldToNDC := geom.ScreenToNDC(designW, designH).Mul(worldToScreen)
	pxPerUnit := float64(r.target.Width) / designW
	avgMs := r.timer.AverageMs()
	elapsed := now.Sub(r.started).Seconds()

	for i := range f.Entities {
		e := &f.Entities[i]
		if !e.Active || e.HitPoints <= 0 {
			continue
		}
		pos := geom.MakePoint(e.X, e.Y)
		if !view.Expand(r.cfg.CullPadding + e.Radius).Contains(worldToScreen.MulPoint(pos)) {
			stats.Culled++
			continue
		}

		tier := r.policy.Classify(geom.Dist(pos, f.Player))
		if r.policy.ShouldSkip(tier, avgMs) {
			stats.SkippedLOD++
			continue
		}

		key := e.TypeKey
		if e.EliteVariant != "" {
			key = atlas.EliteKey(e.EliteVariant)
		}
		sizeScale := 1.0
		if imposter, scale := r.policy.Degrade(tier); imposter {
			if _, ok := r.atlas.Lookup(atlas.ImposterKey); ok {
				key, sizeScale = atlas.ImposterKey, scale
				stats.Imposters++
			}
		}

		rect, ok := r.atlas.Lookup(key)
		if !ok {
			rect = atlas.FullRect
			stats.MissingKeys++
			if r.flagMissing(key, now) {
				demote = true
			}
		}

		angle, pulse := animate(e, elapsed, i)
		center := worldToNDC.MulPoint(pos)
		flip := float32(1)
		if e.Facing < 0 {
			flip = -1
		}
		r.instances.Write(used, memory.Record{
			Center: mgl32.Vec2{float32(center.X), float32(center.Y)},
			SizePx: float32(2 * e.Radius * pxPerUnit * sizeScale * pulse),
			Angle:  float32(angle),
			UV:     mgl32.Vec4{rect.U0, rect.V0, rect.U1, rect.V1},
			Flip:   flip,
			Tint:   flashTint(e.Flash),
		})
		used++
	}
	return used, demote
}

// flagMissing records that key was requested but is not in the atlas. At most
// once per cooldown window per key, it logs, flags the key for the next build
// and marks the atlas dirty; it reports whether it did so.
func (r *Renderer) flagMissing(key string, now time.Time) bool {
	if last, ok := r.missing[key]; ok && now.Sub(last) < r.cfg.MissingKeyCooldown {
		return false
	}
	log.Printf("WARNING: sprite %q missing from atlas, drawing fallback and rebuilding", key)
	r.missing[key] = now
	r.flagged[key] = struct{}{}
	r.dirty = true
	r.dirtyMarks++
	return true
}

// pruneMissing forgets missing keys whose cooldown has passed, so that keys
// requested once and never again do not accumulate. A key that is still
// missing is simply flagged again on its next request.
func (r *Renderer) pruneMissing(now time.Time) {
	for k, last := range r.missing {
		if now.Sub(last) >= r.cfg.MissingKeyCooldown {
			delete(r.missing, k)
		}
	}
}

// draw uploads the written records and submits one instanced draw. Nothing
// is drawn, only cleared, when no records were written.
func (r *Renderer) draw(used int, cam Camera) {
	if err := r.instances.Upload(used); err != nil {
		log.Printf("WARNING: instance upload: %v", err)
		used = 0
	}
	r.device.BeginPass(r.target)
	if used == 0 {
		return
	}

	r.pipeline.Use()
	r.device.BindTexture(0, r.texture)
	r.pipeline.SetViewport(r.target.Width, r.target.Height)
	tint := palette.White
	if cam.Tint != nil {
		tint = *cam.Tint
	}
	r.pipeline.SetGlobalTint(tint)
	if err := r.pipeline.Draw(used); err != nil {
		log.Printf("WARNING: draw failed: %v", err)
	}
}

// animate returns the rotation and size multiplier for an entity's animation
// flags at the given time. The entity index offsets the phase so that a crowd
// does not move in lockstep.
func animate(e *EntitySnapshot, t float64, index int) (angle, pulse float64) {
	phase := float64(index) * 0.37
	pulse = 1
	if e.Flags&Spin != 0 {
		angle += math.Mod(t*math.Pi+phase, 2*math.Pi)
	}
	if e.Flags&Wobble != 0 {
		angle += 0.2 * math.Sin(t*6+phase)
	}
	if e.Flags&Pulse != 0 {
		pulse = 1 + 0.08*math.Sin(t*8+phase)
	}
	return angle, pulse
}

func flashTint(f *Flash) mgl32.Vec4 {
	if f == nil || f.Duration <= 0 || f.Remaining <= 0 {
		return palette.White
	}
	return palette.FlashTint(f.Color, float64(f.Remaining)/float64(f.Duration))
}
