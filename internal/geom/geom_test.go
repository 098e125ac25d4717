package geom

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScreenToNDC(t *testing.T) {
	tf := ScreenToNDC(800, 600)
	for _, tc := range []struct {
		in, want Point
	}{
		{MakePoint(0, 0), MakePoint(-1, 1)},
		{MakePoint(800, 600), MakePoint(1, -1)},
		{MakePoint(400, 300), MakePoint(0, 0)},
	} {
		got := tf.MulPoint(tc.in)
		if !near(got.X, tc.want.X) || !near(got.Y, tc.want.Y) {
			t.Errorf("ScreenToNDC(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAffineInvRoundTrip(t *testing.T) {
	tf := ScreenToNDC(1280, 720).Mul(Translate(-50, 25))
	inv, err := tf.Inv()
	if err != nil {
		t.Fatal(err)
	}
	p := MakePoint(123, 456)
	got := inv.MulPoint(tf.MulPoint(p))
	if !near(got.X, p.X) || !near(got.Y, p.Y) {
		t.Fatalf("round trip = %v, want %v", got, p)
	}

	if _, err := MakeAffine(0, 0, 1, 0, 0, 1).Inv(); err == nil {
		t.Fatal("expected error for singular transform")
	}
}

func TestBoxExpandContains(t *testing.T) {
	b := MakeBox(0, 0, 100, 50).Expand(10)
	if !b.Contains(MakePoint(-10, -10)) || !b.Contains(MakePoint(110, 60)) {
		t.Fatalf("expanded box %v should contain its corners", b)
	}
	if b.Contains(MakePoint(111, 0)) {
		t.Fatalf("expanded box %v should not contain (111, 0)", b)
	}
	if d := Dist(MakePoint(0, 0), MakePoint(3, 4)); !near(d, 5) {
		t.Fatalf("Dist = %v, want 5", d)
	}
}
