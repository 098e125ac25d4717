package sprites

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/irfansharif/horde/internal/geom"
)

// subsamples per pixel axis used for coverage anti-aliasing.
const subsamples = 4

// Silhouette returns a star-like polygon centered in a side×side square.
// points is the number of outer vertices; spikiness in [0, 1) pulls the inner
// vertices toward the center. Radii are jittered by r.
func Silhouette(side, points int, spikiness float64, r *rand.Rand) []geom.Point {
	if points < 3 {
		points = 3
	}
	c := float64(side) / 2
	outer := c * 0.92
	inner := outer * (1 - spikiness)
	poly := make([]geom.Point, 0, points*2)
	for i := 0; i < points*2; i++ {
		rad := outer
		if i%2 == 1 {
			rad = inner
		}
		rad *= 0.9 + 0.1*r.Float64()
		theta := float64(i)*math.Pi/float64(points) - math.Pi/2
		poly = append(poly, geom.MakePoint(c+rad*math.Cos(theta), c+rad*math.Sin(theta)))
	}
	return poly
}

// scaleAbout scales poly toward (cx, cy) by s.
func scaleAbout(poly []geom.Point, cx, cy, s float64) []geom.Point {
	center := geom.MakePoint(cx, cy)
	out := make([]geom.Point, len(poly))
	for i, p := range poly {
		out[i] = p.Sub(center).Scale(s).Add(center)
	}
	return out
}

// Fill rasterizes the triangles of one polygon onto img in col, compositing
// over existing pixels with alpha weighted by per-pixel coverage. The
// triangles must not overlap, as is the case for a triangulation.
func Fill(img *image.NRGBA, tris []Triangle, col color.NRGBA) {
	b := img.Bounds()
	cov := make([]float64, b.Dx()*b.Dy())
	for _, t := range tris {
		if t.area() == 0 {
			continue
		}
		tb := t.bounds()
		x0 := max(b.Min.X, int(math.Floor(tb.X)))
		y0 := max(b.Min.Y, int(math.Floor(tb.Y)))
		x1 := min(b.Max.X, int(math.Ceil(tb.X+tb.W)))
		y1 := min(b.Max.Y, int(math.Ceil(tb.Y+tb.H)))
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				cov[(y-b.Min.Y)*b.Dx()+(x-b.Min.X)] += coverage(t, x, y)
			}
		}
	}
	for i, c := range cov {
		if c == 0 {
			continue
		}
		x, y := b.Min.X+i%b.Dx(), b.Min.Y+i/b.Dx()
		img.SetNRGBA(x, y, over(col, math.Min(c, 1), img.NRGBAAt(x, y)))
	}
}

// over composites src, with its alpha scaled by k, over dst.
func over(src color.NRGBA, k float64, dst color.NRGBA) color.NRGBA {
	sa := float64(src.A) / 255 * k
	da := float64(dst.A) / 255
	oa := sa + da*(1-sa)
	if oa == 0 {
		return color.NRGBA{}
	}
	mix := func(s, d uint8) uint8 {
		v := (float64(s)*sa + float64(d)*da*(1-sa)) / oa
		return uint8(math.Round(math.Min(v, 255)))
	}
	return color.NRGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: uint8(math.Round(oa * 255)),
	}
}

func coverage(t Triangle, x, y int) float64 {
	hits := 0
	for sy := 0; sy < subsamples; sy++ {
		for sx := 0; sx < subsamples; sx++ {
			p := geom.MakePoint(
				float64(x)+(float64(sx)+0.5)/subsamples,
				float64(y)+(float64(sy)+0.5)/subsamples,
			)
			if t.contains(p) {
				hits++
			}
		}
	}
	return float64(hits) / (subsamples * subsamples)
}
