package atlas

import (
	"errors"
	"image"
	"image/color"
	"log"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

// ImposterKey names the synthetic soft disk used in place of real sprites at
// the farthest LOD tier.
const ImposterKey = "IMPOSTER"

// ElitePrefix prefixes the key of every elite variant sprite.
const ElitePrefix = "ELITE:"

// EliteKey returns the atlas key for an elite variant.
func EliteKey(variant string) string { return ElitePrefix + variant }

const (
	defaultPadding      = 2
	defaultMaxSide      = 4096
	defaultImposterSide = 32
)

// ErrEmpty is returned by Build when there is nothing to pack. Callers should
// keep their previous atlas (or stay pending) rather than treat it as fatal.
var ErrEmpty = errors.New("atlas: no sprites to pack")

// Source is one named bitmap to pack. Bitmap is scaled to Side×Side if its
// bounds differ.
type Source struct {
	Key    string
	Bitmap image.Image
	Side   int
}

// Rect is a normalized texture-coordinate rectangle within the atlas.
type Rect struct {
	U0, V0, U1, V1 float32
	Side           int // in pixels
}

// FullRect covers the whole texture. It is the fallback for keys missing from
// the atlas.
var FullRect = Rect{U0: 0, V0: 0, U1: 1, V1: 1}

// Atlas is a packed image plus its key → Rect lookup table.
type Atlas struct {
	Image  *image.NRGBA
	Layout Layout
	rects  map[string]Rect
}

// Lookup returns the rect for key.
func (a *Atlas) Lookup(key string) (Rect, bool) {
	r, ok := a.rects[key]
	return r, ok
}

// Len returns the number of packed keys.
func (a *Atlas) Len() int { return len(a.rects) }

// Size returns the atlas dimensions in pixels.
func (a *Atlas) Size() (w, h int) { return a.Layout.Width, a.Layout.Height }

// Builder renders atlases. The zero value packs without padding, without a
// size cap and without an imposter; use NewBuilder for defaults.
type Builder struct {
	Padding       int
	MaxSide       int            // caps both sides, rounded down to a power of two; 0 means uncapped
	ImposterSide  int            // side of the synthetic imposter; 0 disables it
	ImposterColor colorful.Color // tint of the imposter disk
}

// NewBuilder returns a Builder with default padding, size cap and imposter.
func NewBuilder() Builder {
	return Builder{
		Padding:       defaultPadding,
		MaxSide:       defaultMaxSide,
		ImposterSide:  defaultImposterSide,
		ImposterColor: colorful.Color{R: 1, G: 1, B: 1},
	}
}

// Build packs sources (plus the imposter, if enabled) into a new atlas. It
// has no side effects beyond logging skipped sprites and returns ErrEmpty if
// sources is empty or nothing could be placed. When a key appears more than
// once the first source wins; a caller-supplied ImposterKey replaces the
// synthetic imposter.
func (b Builder) Build(sources []Source) (*Atlas, error) {
	if len(sources) == 0 {
		return nil, ErrEmpty
	}

	byKey := make(map[string]Source, len(sources)+1)
	unique := make([]Source, 0, len(sources)+1)
	for _, s := range sources {
		if _, ok := byKey[s.Key]; ok {
			log.Printf("WARNING: duplicate sprite %q, keeping the first", s.Key)
			continue
		}
		byKey[s.Key] = s
		unique = append(unique, s)
	}
	if _, ok := byKey[ImposterKey]; !ok && b.ImposterSide > 0 {
		imposter := Source{
			Key:    ImposterKey,
			Bitmap: Imposter(b.ImposterSide, b.ImposterColor),
			Side:   b.ImposterSide,
		}
		byKey[ImposterKey] = imposter
		unique = append(unique, imposter)
	}

	layout := Pack(unique, b.Padding, b.MaxSide)
	if len(layout.Placements) == 0 {
		return nil, ErrEmpty
	}

	img := image.NewNRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	rects := make(map[string]Rect, len(layout.Placements))
	fw, fh := float32(layout.Width), float32(layout.Height)
	for _, p := range layout.Placements {
		src := byKey[p.Key]
		x0, y0 := p.X+layout.Padding, p.Y+layout.Padding
		dst := image.Rect(x0, y0, x0+p.Side, y0+p.Side)
		blit(img, dst, src.Bitmap)
		rects[p.Key] = Rect{
			U0:   float32(dst.Min.X) / fw,
			V0:   float32(dst.Min.Y) / fh,
			U1:   float32(dst.Max.X) / fw,
			V1:   float32(dst.Max.Y) / fh,
			Side: p.Side,
		}
	}
	return &Atlas{Image: img, Layout: layout, rects: rects}, nil
}

// blit draws src into dst, scaling when the sizes differ.
func blit(img *image.NRGBA, dst image.Rectangle, src image.Image) {
	if src == nil {
		return
	}
	sb := src.Bounds()
	if sb.Dx() == dst.Dx() && sb.Dy() == dst.Dy() {
		xdraw.Copy(img, dst.Min, src, sb, xdraw.Src, nil)
		return
	}
	xdraw.ApproxBiLinear.Scale(img, dst, src, sb, xdraw.Src, nil)
}

// Imposter renders a soft radial disk of the given side: opaque at the
// center, fading quadratically to transparent at the rim.
func Imposter(side int, c colorful.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	r, g, bl := c.Clamped().RGB255()
	radius := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx := float64(x) + 0.5 - radius
			dy := float64(y) + 0.5 - radius
			t := 1 - math.Sqrt(dx*dx+dy*dy)/radius
			if t <= 0 {
				continue
			}
			alpha := t * (2 - t) // ease-out falloff
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: uint8(math.Round(alpha * 255))})
		}
	}
	return img
}
