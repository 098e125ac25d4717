package sprites

import (
	"fmt"

	"github.com/rclancey/earcut"

	"github.com/irfansharif/horde/internal/geom"
)

// Triangle is three polygon vertices.
type Triangle [3]geom.Point

// Triangulate splits a simple polygon into triangles using the earcut
// algorithm.
func Triangulate(polygon []geom.Point) ([]Triangle, error) {
	if len(polygon) < 3 {
		return nil, fmt.Errorf("degenerate polygon (%d vertices < 3)", len(polygon))
	}

	// Flat coordinate array: [x0, y0, x1, y1, ..., xn, yn].
	coords := make([]float64, len(polygon)*2)
	for i, pt := range polygon {
		coords[i*2] = pt.X
		coords[i*2+1] = pt.Y
	}

	indices, err := earcut.Earcut(coords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, fmt.Errorf("triangulating %d-vertex polygon: %w", len(polygon), err)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("invalid triangle index count %d", len(indices))
	}

	tris := make([]Triangle, len(indices)/3)
	for i := range tris {
		for j := 0; j < 3; j++ {
			v := indices[i*3+j]
			tris[i][j] = geom.Point{X: coords[v*2], Y: coords[v*2+1]}
		}
	}
	return tris, nil
}

// area returns the unsigned area of t.
func (t Triangle) area() float64 {
	a := (t[1].X-t[0].X)*(t[2].Y-t[0].Y) - (t[2].X-t[0].X)*(t[1].Y-t[0].Y)
	if a < 0 {
		a = -a
	}
	return a / 2
}

// contains reports whether p lies inside t (edges inclusive), for either
// winding.
func (t Triangle) contains(p geom.Point) bool {
	edge := func(a, b geom.Point) float64 {
		return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	}
	d0, d1, d2 := edge(t[0], t[1]), edge(t[1], t[2]), edge(t[2], t[0])
	neg := d0 < 0 || d1 < 0 || d2 < 0
	pos := d0 > 0 || d1 > 0 || d2 > 0
	return !(neg && pos)
}

// bounds returns the triangle's bounding box.
func (t Triangle) bounds() geom.Box {
	minX, maxX := min(t[0].X, t[1].X, t[2].X), max(t[0].X, t[1].X, t[2].X)
	minY, maxY := min(t[0].Y, t[1].Y, t[2].Y), max(t[0].Y, t[1].Y, t[2].Y)
	return geom.MakeBox(minX, minY, maxX-minX, maxY-minY)
}
