package palette

import (
	"math"
	"math/rand"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestFlashTintEndpoints(t *testing.T) {
	red := colorful.Color{R: 1}
	if got := FlashTint(red, 0); got != White {
		t.Fatalf("FlashTint(strength=0) = %v, want white", got)
	}
	got := FlashTint(red, 1)
	if math.Abs(float64(got[0])-1) > 1e-3 || got[1] > 1e-3 || got[2] > 1e-3 || got[3] != 1 {
		t.Fatalf("FlashTint(strength=1) = %v, want red", got)
	}
	if FlashTint(red, 5) != got {
		t.Fatal("strength above 1 should clamp")
	}
}

func TestFlashTintFades(t *testing.T) {
	red := colorful.Color{R: 1}
	full, half := FlashTint(red, 1), FlashTint(red, 0.5)
	if !(half[1] > full[1] && half[1] < 1) {
		t.Fatalf("half-faded green %v not between %v and 1", half[1], full[1])
	}
}

func TestVec4Clamps(t *testing.T) {
	v := Vec4(colorful.Color{R: 1.4, G: -0.2, B: 0.5}, 2)
	if v[0] != 1 || v[1] != 0 || v[2] != 0.5 || v[3] != 1 {
		t.Fatalf("Vec4 = %v", v)
	}
}

func TestRandomPaletteDeterministic(t *testing.T) {
	a := RandomPalette(rand.New(rand.NewSource(3)))
	b := RandomPalette(rand.New(rand.NewSource(3)))
	if a != b {
		t.Fatal("same seed produced different palettes")
	}
	for i, c := range a {
		if c.A != 255 {
			t.Fatalf("color %d not opaque: %v", i, c)
		}
	}
}

func TestShimmered(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	p := RandomPalette(r)
	if Shimmered(p, -1, r) != p {
		t.Fatal("negative shimmer should leave palette untouched")
	}
	s := Shimmered(p, 2, r)
	if s[Outline] != p[Outline] {
		t.Fatal("shimmer should not touch the outline")
	}
}

func TestMustParseHex(t *testing.T) {
	c := MustParseHex("#ff0000")
	if c.R != 1 || c.G != 0 || c.B != 0 {
		t.Fatalf("MustParseHex = %v", c)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on invalid hex")
		}
	}()
	MustParseHex("nope")
}
