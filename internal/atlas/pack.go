// Package atlas packs independently sized sprite bitmaps into one square-ish,
// power-of-two texture image and produces a lookup table from sprite key to
// normalized texture coordinates.
//
// Packing is a deterministic shelf (row) algorithm: sources are sorted by side
// length, placed left to right, and a new row is started whenever the current
// one would overflow the atlas width. It is not space-optimal but it is simple,
// fast, and reproducible for a fixed input.
package atlas

import (
	"log"
	"math"
	"sort"
)

// Placement is the position of one packed source. X and Y are the origin of
// its padded cell; the bitmap itself starts at (X+pad, Y+pad).
type Placement struct {
	Key  string
	X, Y int
	Side int
}

// Layout is the output of Pack.
type Layout struct {
	Width, Height int
	Padding       int
	Placements    []Placement
	Skipped       []string // keys that did not fit within the size cap
}

// Pack computes a shelf layout for sources. The width is the power of two at
// or above the square root of the total padded area. maxSide caps both sides,
// rounded down to a power of two (0 means uncapped); sources wider than the
// atlas, or that would push the shelves past the cap, are skipped and logged.
// Pack does not render anything.
func Pack(sources []Source, padding, maxSide int) Layout {
	if len(sources) == 0 {
		return Layout{Padding: padding}
	}

	// Sort descending by side, stable so ties keep input order.
	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sources[order[i]].Side > sources[order[j]].Side
	})

	limit := 0
	if maxSide > 0 {
		limit = prevPow2(maxSide)
	}

	// Estimate a square side from the total padded area.
	totalArea := 0
	for _, s := range sources {
		cell := s.Side + 2*padding
		totalArea += cell * cell
	}
	width := nextPow2(int(math.Ceil(math.Sqrt(float64(totalArea)))))
	if limit > 0 && width > limit {
		width = limit
	}

	layout := Layout{Width: width, Padding: padding}
	x, y, rowHeight := 0, 0, 0
	for _, idx := range order {
		src := sources[idx]
		cell := src.Side + 2*padding
		if cell > width {
			log.Printf("WARNING: sprite %q (%dpx) does not fit %dpx atlas, skipping", src.Key, src.Side, width)
			layout.Skipped = append(layout.Skipped, src.Key)
			continue
		}
		px, py := x, y
		if px+cell > width {
			// Start a new shelf below the tallest item of this one.
			px, py = 0, y+rowHeight
		}
		if limit > 0 && py+cell > limit {
			log.Printf("WARNING: sprite %q (%dpx) overflows %dx%d atlas, skipping", src.Key, src.Side, width, limit)
			layout.Skipped = append(layout.Skipped, src.Key)
			continue
		}
		if py != y {
			y, rowHeight = py, 0
		}
		layout.Placements = append(layout.Placements, Placement{Key: src.Key, X: px, Y: py, Side: src.Side})
		x = px + cell
		if cell > rowHeight {
			rowHeight = cell
		}
	}
	layout.Height = nextPow2(y + rowHeight)
	return layout
}

// nextPow2 returns the smallest power of two >= n (and >= 1).
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// prevPow2 returns the largest power of two <= n, for n >= 1.
func prevPow2(n int) int {
	p := 1
	for p<<1 <= n {
		p <<= 1
	}
	return p
}
