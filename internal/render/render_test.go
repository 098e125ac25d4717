package render

import (
	"errors"
	"fmt"
	"image"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/irfansharif/horde/internal/atlas"
	"github.com/irfansharif/horde/internal/geom"
	"github.com/irfansharif/horde/internal/gpu"
	"github.com/irfansharif/horde/internal/gpu/gputest"
	"github.com/irfansharif/horde/internal/memory"
)

type fakeProvider struct {
	ready     bool
	version   uint64
	keys      []string
	sprites   map[string]image.Image
	requested map[string]int
}

func newFakeProvider(keys ...string) *fakeProvider {
	p := &fakeProvider{
		ready:     true,
		version:   1,
		sprites:   make(map[string]image.Image),
		requested: make(map[string]int),
	}
	for _, k := range keys {
		p.add(k, 32)
	}
	return p
}

func (p *fakeProvider) add(key string, side int) {
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	p.keys = append(p.keys, key)
	p.sprites[key] = img
}

func (p *fakeProvider) Ready() bool           { return p.ready }
func (p *fakeProvider) SpriteVersion() uint64 { return p.version }
func (p *fakeProvider) Keys() []string        { return p.keys }
func (p *fakeProvider) Sprite(key string) (image.Image, bool) {
	p.requested[key]++
	img, ok := p.sprites[key]
	return img, ok
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

const frameTime = 16 * time.Millisecond

var testCamera = Camera{DesignW: 800, DesignH: 600, PixelW: 800, PixelH: 600}

func newTestRenderer(t *testing.T, mutate func(*Config)) (*Renderer, *gputest.Recorder, *clock) {
	t.Helper()
	clk := &clock{t: time.Unix(1000, 0)}
	cfg := DefaultConfig()
	cfg.Now = clk.now
	if mutate != nil {
		mutate(&cfg)
	}
	dev := gputest.New()
	r, err := New(dev, 800, 600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return r, dev, clk
}

func enemy(x, y float64, key string) EntitySnapshot {
	return EntitySnapshot{X: x, Y: y, Radius: 16, Active: true, HitPoints: 10, TypeKey: key, Facing: 1}
}

// frame renders one frame, advancing the clock first.
func frame(r *Renderer, clk *clock, p SpriteProvider, entities ...EntitySnapshot) Stats {
	clk.advance(frameTime)
	return r.Render(Frame{
		Entities: entities,
		Sprites:  p,
		Camera:   testCamera,
		Player:   geom.MakePoint(400, 300),
	})
}

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestNewWithoutDevice(t *testing.T) {
	_, err := New(nil, 800, 600, DefaultConfig())
	if !errors.Is(err, gpu.ErrNoContext) {
		t.Fatalf("New(nil) error = %v, want ErrNoContext", err)
	}
}

func TestNewShaderFailure(t *testing.T) {
	dev := gputest.New()
	dev.CompileErr = errors.New("link failed")
	_, err := New(dev, 800, 600, DefaultConfig())
	if !errors.Is(err, dev.CompileErr) {
		t.Fatalf("New() error = %v, want wrapped compile error", err)
	}
	if dev.Deleted != 1 {
		t.Fatalf("deleted = %d, want the target released", dev.Deleted)
	}
}

func TestNewTargetFailure(t *testing.T) {
	dev := gputest.New()
	dev.TargetErr = errors.New("incomplete framebuffer")
	if _, err := New(dev, 800, 600, DefaultConfig()); !errors.Is(err, dev.TargetErr) {
		t.Fatalf("New() error = %v, want wrapped target error", err)
	}
}

func TestNewInvalidLOD(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LOD.FarSkipRatio = 2
	if _, err := New(gputest.New(), 800, 600, cfg); err == nil {
		t.Fatal("expected error for invalid LOD config")
	}
}

func TestPendingUntilProviderReady(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")
	p.ready = false

	s := frame(r, clk, p, enemy(400, 300, "grunt"))
	if s.AtlasReady || len(dev.Draws) != 0 || len(dev.Uploads) != 0 {
		t.Fatalf("drew or built while provider not ready: %+v", s)
	}
	if len(dev.Passes) != 1 {
		t.Fatalf("passes = %d, want the target cleared", len(dev.Passes))
	}

	p.ready = true
	s = frame(r, clk, p, enemy(400, 300, "grunt"))
	if !s.AtlasReady || s.Instances != 1 || len(dev.Draws) != 1 {
		t.Fatalf("stats = %+v, draws = %d", s, len(dev.Draws))
	}
	if s.AtlasBuilds != 1 || s.AtlasSize == 0 {
		t.Fatalf("stats = %+v, want one build", s)
	}
	if d := dev.Draws[0]; d.Texture == 0 || d.Target != r.Output() || d.Instances != 1 {
		t.Fatalf("draw = %+v", d)
	}
	if r.Stats() != s {
		t.Fatal("Stats() differs from Render's return value")
	}
}

func TestVersionChangeGoesPending(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")

	if s := frame(r, clk, p, enemy(400, 300, "grunt")); !s.AtlasReady {
		t.Fatalf("first frame not ready: %+v", s)
	}

	p.version = 2
	s := frame(r, clk, p, enemy(400, 300, "grunt"))
	if s.AtlasReady || s.Instances != 0 {
		t.Fatalf("version change frame: %+v, want pending", s)
	}
	if len(dev.Draws) != 1 {
		t.Fatalf("draws = %d, want no draw on the version change frame", len(dev.Draws))
	}

	clk.advance(DefaultConfig().RebuildInterval)
	s = frame(r, clk, p, enemy(400, 300, "grunt"))
	if !s.AtlasReady || s.AtlasBuilds != 2 || len(dev.Draws) != 2 {
		t.Fatalf("after rebuild: %+v, draws = %d", s, len(dev.Draws))
	}
}

func TestMissingKeyFallbackAndCooldown(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")

	s := frame(r, clk, p, enemy(400, 300, "ghost"))
	if s.Instances != 1 || s.MissingKeys != 1 {
		t.Fatalf("stats = %+v, want one fallback instance", s)
	}
	rec := r.instances.Record(0)
	if rec.UV != (mgl32.Vec4{0, 0, 1, 1}) {
		t.Fatalf("fallback UV = %v, want full texture", rec.UV)
	}
	if s.AtlasReady {
		t.Fatal("missing key should leave the atlas pending after the frame")
	}
	if r.dirtyMarks != 1 {
		t.Fatalf("dirty marks = %d, want 1", r.dirtyMarks)
	}

	// Keep requesting the key well within the cooldown window, across
	// several rebuilds.
	for i := 0; i < 100; i++ {
		frame(r, clk, p, enemy(400, 300, "ghost"))
	}
	if r.dirtyMarks != 1 {
		t.Fatalf("dirty marks = %d within cooldown, want 1", r.dirtyMarks)
	}
	if p.requested["ghost"] == 0 {
		t.Fatal("rebuild did not request the missing key")
	}
	if !r.Stats().AtlasReady {
		t.Fatal("renderer should be ready again after the rebuild")
	}
	if r.Stats().MissingKeys != 1 || r.Stats().Instances != 1 {
		t.Fatalf("stats = %+v", r.Stats())
	}
	draws := len(dev.Draws)

	clk.advance(DefaultConfig().MissingKeyCooldown)
	frame(r, clk, p, enemy(400, 300, "ghost"))
	if r.dirtyMarks != 2 {
		t.Fatalf("dirty marks = %d after cooldown, want 2", r.dirtyMarks)
	}
	if len(dev.Draws) != draws+1 {
		t.Fatal("fallback instance should still be drawn")
	}
}

func TestMissingKeyResolvedByRebuild(t *testing.T) {
	r, _, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")
	p.sprites["late"] = image.NewNRGBA(image.Rect(0, 0, 16, 16))

	frame(r, clk, p, enemy(400, 300, "late"))
	clk.advance(DefaultConfig().RebuildInterval)
	s := frame(r, clk, p, enemy(400, 300, "late"))
	if !s.AtlasReady || s.MissingKeys != 0 {
		t.Fatalf("stats = %+v, want flagged key packed", s)
	}
	if _, ok := r.atlas.Lookup("late"); !ok {
		t.Fatal("flagged key not in rebuilt atlas")
	}
	if len(r.flagged) != 0 {
		t.Fatalf("flagged = %v, want cleared", r.flagged)
	}
}

func TestMissingKeysForgottenAfterCooldown(t *testing.T) {
	r, _, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")
	cfg := DefaultConfig()

	var ghosts []EntitySnapshot
	for i := 0; i < 10; i++ {
		ghosts = append(ghosts, enemy(400, 300, fmt.Sprintf("ghost-%d", i)))
	}
	frame(r, clk, p, ghosts...)
	if len(r.missing) != 10 || len(r.flagged) != 10 {
		t.Fatalf("missing = %d, flagged = %d, want 10 each", len(r.missing), len(r.flagged))
	}

	// The provider cannot supply any of them; the rebuild stops asking.
	clk.advance(cfg.RebuildInterval)
	if s := frame(r, clk, p); !s.AtlasReady {
		t.Fatalf("stats = %+v, want ready after rebuild", s)
	}
	if len(r.flagged) != 0 {
		t.Fatalf("flagged = %v, want unavailable keys dropped", r.flagged)
	}

	// A later rebuild forgets keys whose cooldown has passed.
	clk.advance(cfg.MissingKeyCooldown)
	frame(r, clk, p, enemy(400, 300, "other"))
	clk.advance(cfg.RebuildInterval)
	frame(r, clk, p)
	if _, ok := r.missing["other"]; !ok || len(r.missing) != 1 {
		t.Fatalf("missing = %v, want only the recent key", r.missing)
	}
}

func TestFarImposter(t *testing.T) {
	r, _, clk := newTestRenderer(t, func(c *Config) {
		c.LOD.NearDistance, c.LOD.FarDistance = 50, 150
		c.LOD.FarSkipRatio = 0
		c.LOD.FarSizeScale = 0.5
	})
	p := newFakeProvider("grunt")

	near := enemy(400, 300, "grunt")
	far := enemy(750, 550, "grunt")
	s := frame(r, clk, p, near, far)
	if s.Instances != 2 || s.Imposters != 1 {
		t.Fatalf("stats = %+v", s)
	}

	imposter, _ := r.atlas.Lookup(atlas.ImposterKey)
	grunt, _ := r.atlas.Lookup("grunt")
	if got := r.instances.Record(0); got.UV != (mgl32.Vec4{grunt.U0, grunt.V0, grunt.U1, grunt.V1}) || !approx(got.SizePx, 32) {
		t.Fatalf("near record = %+v", got)
	}
	if got := r.instances.Record(1); got.UV != (mgl32.Vec4{imposter.U0, imposter.V0, imposter.U1, imposter.V1}) || !approx(got.SizePx, 16) {
		t.Fatalf("far record = %+v, want imposter at half size", got)
	}

	r.Policy().SetImposters(false)
	s = frame(r, clk, p, near, far)
	if s.Imposters != 0 {
		t.Fatalf("imposters = %d with substitution disabled", s.Imposters)
	}
	if got := r.instances.Record(1); got.UV[0] != grunt.U0 || !approx(got.SizePx, 32) {
		t.Fatalf("far record = %+v, want native sprite", got)
	}
}

func TestZeroInstancesNoDraw(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")

	dead := enemy(400, 300, "grunt")
	dead.HitPoints = 0
	inactive := enemy(400, 300, "grunt")
	inactive.Active = false
	offscreen := enemy(-1000, -1000, "grunt")

	s := frame(r, clk, p, dead, inactive, offscreen)
	if !s.AtlasReady || s.Instances != 0 || s.Culled != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if len(dev.Draws) != 0 {
		t.Fatalf("draws = %d, want none", len(dev.Draws))
	}
	if got := dev.Writes[r.instances.Buffer()]; len(got) != 0 {
		t.Fatalf("writes = %v, want no upload", got)
	}
	if len(dev.Passes) != 1 {
		t.Fatal("target should still be cleared")
	}
}

func TestCullingPadding(t *testing.T) {
	r, _, clk := newTestRenderer(t, func(c *Config) { c.CullPadding = 64 })
	p := newFakeProvider("grunt")

	s := frame(r, clk, p,
		enemy(800+64+16, 300, "grunt"),   // exactly on the padded edge
		enemy(800+64+16+1, 300, "grunt"), // just outside
		enemy(-70, -70, "grunt"),         // inside the padding
	)
	if s.Instances != 2 || s.Culled != 1 {
		t.Fatalf("stats = %+v, want 2 drawn and 1 culled", s)
	}
}

func TestRecordMapping(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")

	e := enemy(500, 350, "grunt")
	e.Facing = -1
	e.Flash = &Flash{Color: colorful.Color{R: 1}, Remaining: time.Second, Duration: time.Second}

	clk.advance(frameTime)
	s := r.Render(Frame{
		Entities: []EntitySnapshot{e},
		Sprites:  p,
		Camera:   Camera{X: 100, Y: 50, DesignW: 800, DesignH: 600, PixelW: 1600, PixelH: 1200},
		Player:   geom.MakePoint(500, 350),
	})
	if s.Instances != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if out := r.Output(); out.Width != 1600 || out.Height != 1200 {
		t.Fatalf("target = %+v, want resized to the pixel size", out)
	}

	rec := r.instances.Record(0)
	if !approx(rec.Center[0], 0) || !approx(rec.Center[1], 0) {
		t.Fatalf("center = %v, want view center at the origin", rec.Center)
	}
	if !approx(rec.SizePx, 64) {
		t.Fatalf("size = %v, want 2×radius at 2 px per design unit", rec.SizePx)
	}
	if rec.Flip != -1 {
		t.Fatalf("flip = %v, want -1", rec.Flip)
	}
	if rec.Angle != 0 {
		t.Fatalf("angle = %v, want 0 without animation flags", rec.Angle)
	}
	if rec.Tint[1] > 0.01 || !approx(rec.Tint[0], 1) {
		t.Fatalf("tint = %v, want red flash", rec.Tint)
	}
	if got := dev.Uniform(r.pipeline.Program(), "uViewport"); got[0] != 1600 || got[1] != 1200 {
		t.Fatalf("viewport = %v", got)
	}
	if got := dev.Writes[r.instances.Buffer()]; len(got) != 1 || got[0] != memory.Stride {
		t.Fatalf("writes = %v, want one record uploaded", got)
	}
}

func TestGlobalTint(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt")

	clk.advance(frameTime)
	tint := mgl32.Vec4{0.2, 0.3, 0.4, 1}
	cam := testCamera
	cam.Tint = &tint
	r.Render(Frame{Entities: []EntitySnapshot{enemy(400, 300, "grunt")}, Sprites: p, Camera: cam})
	if got := dev.Uniform(r.pipeline.Program(), "uGlobalTint"); len(got) != 4 || got[2] != 0.4 {
		t.Fatalf("global tint = %v", got)
	}

	frame(r, clk, p, enemy(400, 300, "grunt"))
	if got := dev.Uniform(r.pipeline.Program(), "uGlobalTint"); got[0] != 1 || got[3] != 1 {
		t.Fatalf("global tint = %v, want white by default", got)
	}
}

func TestEliteKey(t *testing.T) {
	r, _, clk := newTestRenderer(t, nil)
	p := newFakeProvider("grunt", atlas.EliteKey("brute"))

	e := enemy(400, 300, "grunt")
	e.EliteVariant = "brute"
	s := frame(r, clk, p, e)
	if s.MissingKeys != 0 {
		t.Fatalf("stats = %+v", s)
	}
	rect, _ := r.atlas.Lookup(atlas.EliteKey("brute"))
	if got := r.instances.Record(0).UV; got[0] != rect.U0 || got[3] != rect.V1 {
		t.Fatalf("UV = %v, want elite rect %+v", got, rect)
	}
}

func TestEmptyAtlasStaysPendingAndThrottles(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	p := newFakeProvider()

	if s := frame(r, clk, p, enemy(400, 300, "grunt")); s.AtlasReady || s.AtlasBuilds != 0 {
		t.Fatalf("empty provider: %+v, want pending", s)
	}

	p.add("grunt", 32)
	s := frame(r, clk, p, enemy(400, 300, "grunt"))
	if s.AtlasReady {
		t.Fatal("rebuild attempted before the throttle interval passed")
	}
	if p.requested["grunt"] != 0 {
		t.Fatal("sprite read during a throttled frame")
	}

	clk.advance(DefaultConfig().RebuildInterval)
	s = frame(r, clk, p, enemy(400, 300, "grunt"))
	if !s.AtlasReady || len(dev.Draws) != 1 {
		t.Fatalf("stats = %+v, want ready after the interval", s)
	}
}

func TestLoadSheddingSkipsDistantEntities(t *testing.T) {
	r, _, clk := newTestRenderer(t, func(c *Config) {
		c.LOD.NearDistance, c.LOD.FarDistance = 50, 150
		c.LOD.FarCeilingMs = 20
		c.LOD.FarSkipRatio = 1
		c.LOD.Imposters = false
	})
	p := newFakeProvider("grunt")
	near, far := enemy(400, 300, "grunt"), enemy(750, 550, "grunt")

	frame(r, clk, p, near, far)
	var s Stats
	for i := 0; i < 5; i++ {
		clk.advance(50 * time.Millisecond) // a slow frame
		s = r.Render(Frame{
			Entities: []EntitySnapshot{near, far},
			Sprites:  p,
			Camera:   testCamera,
			Player:   geom.MakePoint(400, 300),
		})
	}
	if s.AvgFrameMs <= 20 {
		t.Fatalf("average frame time %v, want above the ceiling", s.AvgFrameMs)
	}
	if s.Instances != 1 || s.SkippedLOD != 1 {
		t.Fatalf("stats = %+v, want far entity shed and near kept", s)
	}
}

func TestAnimationFlags(t *testing.T) {
	e := EntitySnapshot{Flags: Spin | Pulse}
	angle, pulse := animate(&e, 0.5, 0)
	if !approx(float32(angle), float32(0.5*math.Pi)) {
		t.Fatalf("spin angle = %v", angle)
	}
	if pulse == 1 {
		t.Fatal("pulse should scale size")
	}
	if a, p := animate(&EntitySnapshot{}, 3, 7); a != 0 || p != 1 {
		t.Fatalf("no flags: angle %v, pulse %v", a, p)
	}
}

func TestDispose(t *testing.T) {
	r, dev, clk := newTestRenderer(t, nil)
	frame(r, clk, newFakeProvider("grunt"), enemy(400, 300, "grunt"))
	r.Dispose()
	// vertex array, quad, program, instance buffer, atlas texture, target
	if dev.Deleted != 6 {
		t.Fatalf("deleted = %d, want 6", dev.Deleted)
	}
	r.Dispose()
	if dev.Deleted != 6 {
		t.Fatal("second Dispose released resources again")
	}
}
