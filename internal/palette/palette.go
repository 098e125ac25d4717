// Package palette provides the colors used by the horde: HSV-based enemy
// palettes with shimmer for elite variants, and tint blending for transient
// status flashes.
package palette

import (
	"image/color"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// Palette holds the colors of one enemy type: an outline, a body fill and
// three accents.
type Palette [5]color.NRGBA

const (
	Outline = 0
	Body    = 1
)

// White is the identity tint.
var White = mgl32.Vec4{1, 1, 1, 1}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hsb(h, s, b float64) color.NRGBA {
	// h in [0, 100) maps onto the hue circle, s and b are percentages.
	c := colorful.Hsv(h*3.6, clamp(s/100.0, 0, 1), clamp(b/100.0, 0, 1))
	red, green, blue := c.RGB255()
	return color.NRGBA{R: red, G: green, B: blue, A: 255}
}

// RandomPalette returns a palette using HSV generation. The body hue is
// saturated and bright enough to read against a dark background.
func RandomPalette(r *rand.Rand) Palette {
	p := Palette{}
	p[Outline] = hsb(r.Float64()*100, r.Float64()*100, r.Float64()*30)
	p[Body] = hsb(r.Float64()*100, r.Float64()*30+60, r.Float64()*25+65)
	for i := 2; i < 5; i++ {
		p[i] = hsb(r.Float64()*100, r.Float64()*50+25, r.Float64()*50+25)
	}
	return p
}

// Shimmered applies a brightness jitter to the body and accent colors when
// shimmer >= 0. Elite variants are drawn with a shimmered copy of their base
// type's palette.
func Shimmered(p Palette, shimmer int, r *rand.Rand) Palette {
	if shimmer < 0 {
		return p
	}

	out := p
	for i := Body; i < 5; i++ {
		c, _ := colorful.MakeColor(out[i])
		h, s, v := c.Hsv()
		v = clamp(v+(r.Float64()-0.5)*0.2*float64(shimmer+1), 0, 1)
		red, green, blue := colorful.Hsv(h, s, v).RGB255()
		out[i] = color.NRGBA{R: red, G: green, B: blue, A: out[i].A}
	}
	return out
}

// Vec4 converts c to a shader tint with the given alpha.
func Vec4(c colorful.Color, alpha float64) mgl32.Vec4 {
	c = c.Clamped()
	return mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), float32(clamp(alpha, 0, 1))}
}

// FlashTint returns the tint for an entity flashing toward c, where strength
// in [0, 1] is the remaining fraction of the flash window. A strength of 0
// yields White; 1 yields c. Blending happens in Lab space so that the fade
// passes through perceptually even steps.
func FlashTint(c colorful.Color, strength float64) mgl32.Vec4 {
	strength = clamp(strength, 0, 1)
	if strength == 0 {
		return White
	}
	white := colorful.Color{R: 1, G: 1, B: 1}
	return Vec4(white.BlendLab(c, strength), 1)
}

// MustParseHex is colorful.Hex for constants known to be valid.
func MustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
