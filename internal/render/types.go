package render

import (
	"image"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/irfansharif/horde/internal/geom"
)

// AnimationFlags select procedural motion applied to a sprite.
type AnimationFlags uint8

const (
	// Spin rotates the sprite continuously.
	Spin AnimationFlags = 1 << iota
	// Wobble rocks the sprite back and forth.
	Wobble
	// Pulse breathes the sprite's size.
	Pulse
)

// Flash is a transient tint window, e.g. the red flash of a hit. The tint
// fades from Color to white as Remaining runs down to zero.
type Flash struct {
	Color     colorful.Color
	Remaining time.Duration
	Duration  time.Duration
}

// EntitySnapshot is the renderer's read-only view of one enemy for one frame.
type EntitySnapshot struct {
	X, Y         float64 // world position
	Radius       float64 // world units; the sprite is 2×Radius across
	Active       bool
	HitPoints    float64
	TypeKey      string
	EliteVariant string  // empty for regular enemies
	Facing       float64 // negative faces left and mirrors the sprite
	Flags        AnimationFlags
	Flash        *Flash
}

// SpriteProvider supplies the bitmaps packed into the atlas.
type SpriteProvider interface {
	// Ready reports whether bitmaps can be read; atlas builds are deferred
	// until it does.
	Ready() bool
	// SpriteVersion increments whenever any bitmap changes.
	SpriteVersion() uint64
	// Keys lists the sprites to pack.
	Keys() []string
	// Sprite returns the bitmap for key.
	Sprite(key string) (image.Image, bool)
}

// Camera maps the world onto the output target. X and Y are the world
// coordinates of the top-left corner of the view; DesignW×DesignH is the
// logical resolution and PixelW×PixelH the physical one.
type Camera struct {
	X, Y             float64
	DesignW, DesignH int
	PixelW, PixelH   int
	Tint             *mgl32.Vec4 // optional whole-scene tint
}

// Frame is everything the renderer consumes for one frame.
type Frame struct {
	Entities []EntitySnapshot
	Sprites  SpriteProvider
	Camera   Camera
	Player   geom.Point // world position LOD distances are measured from
}

// Stats is the diagnostic snapshot of the last rendered frame.
type Stats struct {
	AtlasReady  bool
	Instances   int // records drawn
	Culled      int // outside the view
	SkippedLOD  int // omitted by load shedding
	Imposters   int // far entities drawn as the imposter
	MissingKeys int // instances drawn with the fallback rect
	AtlasBuilds int // successful builds so far
	AtlasSize   int // atlas width in pixels, 0 while pending
	Capacity    int // instance buffer capacity in records

	AvgFrameMs        float64
	LastPrepareTimeMs float64 // time spent writing instance records
	LastDrawTimeUs    float64 // time spent uploading and submitting
}
