package app

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/horde/internal/geom"
	"github.com/irfansharif/horde/internal/render"
)

const (
	minZoom = 0.25
	maxZoom = 4.0
)

// View manages the camera: it keeps the player centered, and maps the
// framebuffer onto a logical resolution scaled by zoom.
type View struct {
	Zoom          float64
	Player        geom.Point // world position the camera follows
	Width, Height int        // framebuffer size in physical pixels
	ContentScale  float64    // physical pixels per logical pixel (HiDPI)
	Tint          *mgl32.Vec4
}

// NewView creates a new view state with default values.
func NewView(width, height int, contentScale float64) *View {
	if contentScale <= 0 {
		contentScale = 1
	}
	return &View{
		Zoom:         1.0,
		Width:        width,
		Height:       height,
		ContentScale: contentScale,
	}
}

// SetZoom sets the zoom level, clamping to valid range.
func (vs *View) SetZoom(zoom float64) {
	if zoom < minZoom {
		vs.Zoom = minZoom
	} else if zoom > maxZoom {
		vs.Zoom = maxZoom
	} else {
		vs.Zoom = zoom
	}
}

// MovePlayer moves the followed position by (dx, dy) world units.
func (vs *View) MovePlayer(dx, dy float64) {
	vs.Player = vs.Player.Add(geom.MakePoint(dx, dy))
}

// SetViewport updates the framebuffer dimensions.
func (vs *View) SetViewport(width, height int) {
	vs.Width = width
	vs.Height = height
}

// DesignSize returns the logical resolution: the framebuffer size undone by
// the content scale and zoom.
func (vs *View) DesignSize() (w, h int) {
	s := vs.ContentScale * vs.Zoom
	return max(1, int(float64(vs.Width)/s)), max(1, int(float64(vs.Height)/s))
}

// ScreenToWorld maps a framebuffer position to world coordinates.
func (vs *View) ScreenToWorld(p geom.Point) geom.Point {
	cam := vs.Camera()
	s := float64(cam.DesignW) / float64(vs.Width)
	return geom.MakePoint(cam.X+p.X*s, cam.Y+p.Y*s)
}

// Camera returns the render camera centered on the player.
func (vs *View) Camera() render.Camera {
	dw, dh := vs.DesignSize()
	return render.Camera{
		X:       vs.Player.X - float64(dw)/2,
		Y:       vs.Player.Y - float64(dh)/2,
		DesignW: dw,
		DesignH: dh,
		PixelW:  vs.Width,
		PixelH:  vs.Height,
		Tint:    vs.Tint,
	}
}
